package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/layer"
	"github.com/dabstractor/jin-sub008/internal/staging"
	"github.com/dabstractor/jin-sub008/internal/workspace"
)

var layerNames = map[string]layer.Layer{
	"global":             layer.GlobalBase,
	"mode-base":          layer.ModeBase,
	"mode-scope":         layer.ModeScope,
	"mode-scope-project": layer.ModeScopeProject,
	"mode-project":       layer.ModeProject,
	"scope-base":         layer.ScopeBase,
	"project-base":       layer.ProjectBase,
	"user-local":         layer.UserLocal,
}

func parseLayerFlag(name string) (layer.Layer, error) {
	if l, ok := layerNames[name]; ok {
		return l, nil
	}
	return 0, jinerr.New(jinerr.KindInvalidLayer, "jin.add", name)
}

var addLayerFlag string

var addCmd = &cobra.Command{
	Use:     "add <path>",
	GroupID: "core",
	Short:   "Stage a workspace file against a target layer",
	Long: `add reads the file at <path> from the workspace, validates it (rejects
symlinks, binary content, and files nested inside a submodule), and records
it in the staging index against the layer named by --layer. Nothing is
written to the object store until 'jin commit' runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		l, err := parseLayerFlag(addLayerFlag)
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(e.root, mustAbs(e.root, args[0]))
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		data, err := os.ReadFile(filepath.Join(e.root, relPath))
		if err != nil {
			return jinerr.Wrap(jinerr.KindIO, "jin.add", relPath, err)
		}
		if err := staging.ValidatePath(e.root, relPath, data); err != nil {
			return err
		}

		stagingPath := workspace.StagingPath(e.root)
		idx, err := staging.Load(stagingPath)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		if err := idx.Stage(staging.Entry{
			Path:        relPath,
			TargetLayer: l,
			ContentHash: hex.EncodeToString(sum[:]),
			Size:        int64(len(data)),
			AddedAt:     time.Now(),
		}); err != nil {
			return err
		}
		if err := idx.Save(stagingPath); err != nil {
			return err
		}

		fmt.Printf("staged %s -> %s\n", relPath, l)
		return nil
	},
}

// mustAbs resolves arg relative to the current directory (not root)
// the way a shell path argument is normally interpreted, falling back
// to treating it as already relative to root if that fails.
func mustAbs(root, arg string) string {
	if filepath.IsAbs(arg) {
		return arg
	}
	if abs, err := filepath.Abs(arg); err == nil {
		return abs
	}
	return filepath.Join(root, strings.TrimPrefix(arg, "./"))
}

func init() {
	addCmd.Flags().StringVar(&addLayerFlag, "layer", "", "target layer (global, mode-base, mode-scope, mode-scope-project, mode-project, scope-base, project-base, user-local)")
	addCmd.MarkFlagRequired("layer")
	rootCmd.AddCommand(addCmd)
}
