package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/cliui"
	"github.com/dabstractor/jin-sub008/internal/repair"
)

var repairCmd = &cobra.Command{
	Use:     "repair",
	GroupID: "maintenance",
	Short:   "Check reference/object integrity and regenerate .jinmap",
	Long: `repair walks the layer reference namespace, verifies each ref resolves
to a well-formed commit whose tree's blobs are all present, recovers any
transaction log left in a non-terminal state, checks the workspace metadata
against on-disk content, and regenerates .jinmap unconditionally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		report, err := repair.Run(e.root, e.s, e.mgr, e.ctx)
		if err != nil {
			return err
		}

		fmt.Printf("checked %d ref(s), %d blob(s)\n", report.RefsChecked, report.BlobsChecked)
		if report.TransactionsUndone > 0 {
			fmt.Printf("%s rolled back %d incomplete transaction(s)\n", cliui.RenderWarn("!"), report.TransactionsUndone)
		}
		if report.JinMapRegenerated {
			fmt.Printf("%s .jinmap regenerated\n", cliui.RenderPass("✓"))
		}
		if !report.WorkspaceOK {
			fmt.Printf("%s workspace drift detected\n", cliui.RenderWarn("!"))
		}
		if report.HasProblems() {
			fmt.Printf("%s %d unresolved problem(s):\n", cliui.RenderFail("✗"), len(report.Problems))
			for _, p := range report.Problems {
				fmt.Printf("  %s\n", p)
			}
			return repair.ExitError(report)
		}
		fmt.Printf("%s no unresolved problems\n", cliui.RenderPass("✓"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)
}
