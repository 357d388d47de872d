package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/cliui"
	"github.com/dabstractor/jin-sub008/internal/commitpipeline"
	"github.com/dabstractor/jin-sub008/internal/staging"
	"github.com/dabstractor/jin-sub008/internal/workspace"
)

var commitCmd = &cobra.Command{
	Use:     "commit",
	GroupID: "core",
	Short:   "Commit every staged change as one atomic transaction",
	Long: `commit reads the staging index, re-verifies each staged file's content
against its recorded hash, writes one commit per touched layer, and advances
every touched layer reference through a single transaction. On success the
staging index is cleared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		stagingPath := workspace.StagingPath(e.root)
		idx, err := staging.Load(stagingPath)
		if err != nil {
			return err
		}

		result, err := commitpipeline.Commit(e.root, e.s, e.mgr, e.ctx, idx, e.cfg.Author(), e.al)
		if err != nil {
			return err
		}
		if err := idx.Save(stagingPath); err != nil {
			return err
		}

		fmt.Printf("%s committed %d file(s) across %d layer(s)\n",
			cliui.RenderPass("✓"), result.FilesCommitted, len(result.CommitOIDs))
		for ref, oid := range result.CommitOIDs {
			fmt.Printf("  %s -> %s\n", cliui.RenderAccent(ref), oid[:min(12, len(oid))])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}
