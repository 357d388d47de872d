package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/cliui"
	"github.com/dabstractor/jin-sub008/internal/conflict"
	"github.com/dabstractor/jin-sub008/internal/staging"
	"github.com/dabstractor/jin-sub008/internal/workspace"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "core",
	Short:   "Show the active context, staged changes, and any paused operation",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}

		fmt.Printf("context: mode=%s scope=%s project=%s\n", display(e.ctx.Mode), display(e.ctx.Scope), display(e.ctx.Project))

		stagingPath := workspace.StagingPath(e.root)
		idx, err := staging.Load(stagingPath)
		if err != nil {
			return err
		}
		if idx.Len() == 0 {
			fmt.Println("staged: nothing")
		} else {
			fmt.Printf("staged: %d file(s)\n", idx.Len())
			for _, entry := range idx.Entries() {
				fmt.Printf("  %s -> %s\n", entry.Path, cliui.RenderAccent(entry.TargetLayer.String()))
			}
		}

		meta, err := workspace.LoadMetadata(e.root)
		if err != nil {
			return err
		}
		dirty, err := workspace.Dirty(e.root, meta)
		if err != nil {
			return err
		}
		if len(dirty) == 0 {
			fmt.Println("workspace: clean (matches last apply)")
		} else {
			fmt.Printf("%s workspace: %d file(s) diverge from last apply\n", cliui.RenderWarn("!"), len(dirty))
			for _, p := range dirty {
				fmt.Printf("  %s\n", p)
			}
		}

		paused, err := conflict.Load(e.root)
		if err != nil {
			return err
		}
		if paused == nil {
			fmt.Println("paused operation: none")
		} else {
			fmt.Printf("%s paused %s with %d unresolved conflict(s):\n", cliui.RenderWarn("!"), paused.Kind, len(paused.Conflicts))
			for _, c := range paused.Conflicts {
				fmt.Printf("  %s.jinmerge\n", c.Path)
			}
		}
		return nil
	},
}

func display(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
