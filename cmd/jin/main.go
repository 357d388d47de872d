// Command jin is the CLI front end over the core packages under
// internal/: it never contains merge, transaction, or layer logic
// itself, only flag parsing, environment wiring, and user-facing
// rendering, following the cmd/bd split between the cobra command
// tree in cmd/bd and the actual logic in internal/.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
)

var rootCmd = &cobra.Command{
	Use:   "jin",
	Short: "Layered configuration management",
	Long: `jin manages configuration as a stack of precedence-ordered layers
(global, mode, scope, project, user-local) stored in a content-addressed
object store, merged into a workspace on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core commands:"},
		&cobra.Group{ID: "remote", Title: "Remote synchronization:"},
		&cobra.Group{ID: "maintenance", Title: "Maintenance:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jin: %v\n", err)
		os.Exit(jinerr.ExitCode(err))
	}
}
