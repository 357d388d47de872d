package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/apply"
	"github.com/dabstractor/jin-sub008/internal/cliui"
)

var (
	applyDryRun bool
	applyForce  bool
)

var applyCmd = &cobra.Command{
	Use:     "apply",
	GroupID: "core",
	Short:   "Merge every applicable layer into the workspace",
	Long: `apply composes every layer applicable to the current context (in
ascending precedence order), merges contended paths format-aware where
possible and falls back to a three-way text merge otherwise, and writes the
clean result to disk. Paths that can't be merged cleanly get a .jinmerge
sidecar and pause the operation; resolve them with 'jin resolve'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		plan, err := apply.BuildPlan(e.s, e.ctx)
		if err != nil {
			return err
		}
		merged, conflicts, err := apply.Execute(e.root, e.ctx, plan, apply.Options{
			DryRun: applyDryRun,
			Force:  applyForce,
		})
		if err != nil {
			return err
		}

		verb := "applied"
		if applyDryRun {
			verb = "would apply"
		}
		fmt.Printf("%s %s %d file(s) cleanly\n", cliui.RenderPass("✓"), verb, len(merged))
		if len(conflicts) > 0 {
			fmt.Printf("%s %d file(s) paused with conflicts:\n", cliui.RenderWarn("!"), len(conflicts))
			for _, p := range conflicts {
				fmt.Printf("  %s%s\n", p, ".jinmerge")
			}
			if !applyDryRun {
				fmt.Println("resolve each path, then run 'jin resolve --continue'")
			}
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "report what would happen without writing files")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "skip the workspace-dirty check (never bypasses conflict pausing)")
	rootCmd.AddCommand(applyCmd)
}
