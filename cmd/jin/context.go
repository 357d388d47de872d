package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/cliui"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/workspace"
)

var contextCmd = &cobra.Command{
	Use:     "context",
	GroupID: "core",
	Short:   "Inspect or change the workspace's active context",
}

var (
	ctxSetMode    string
	ctxSetScope   string
	ctxSetProject string
)

var contextSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the workspace's mode/scope/project and detach stale metadata",
	Long: `set persists the new context to .jin/context. Because a different
context composes a different set of layers, the workspace's last-applied
metadata no longer describes what's on disk under the new context, so set
clears it (detaching the workspace); run 'jin apply' again afterward.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		newCtx := &layer.Context{Mode: ctxSetMode, Scope: ctxSetScope, Project: ctxSetProject}
		if err := workspace.SaveContext(e.root, newCtx); err != nil {
			return err
		}
		if err := workspace.SaveMetadata(e.root, &workspace.Metadata{
			LayerRefs: map[string]string{},
			Files:     map[string]workspace.FileRecord{},
		}); err != nil {
			return err
		}
		fmt.Printf("%s context set to mode=%s scope=%s project=%s (workspace detached, run 'jin apply')\n",
			cliui.RenderPass("✓"), display(newCtx.Mode), display(newCtx.Scope), display(newCtx.Project))
		return nil
	},
}

func init() {
	contextSetCmd.Flags().StringVar(&ctxSetMode, "mode", "", "mode component (e.g. claude, cursor)")
	contextSetCmd.Flags().StringVar(&ctxSetScope, "scope", "", "scope component (category:value form, e.g. language:go)")
	contextSetCmd.Flags().StringVar(&ctxSetProject, "project", "", "project component")
	contextCmd.AddCommand(contextSetCmd)
	rootCmd.AddCommand(contextCmd)
}
