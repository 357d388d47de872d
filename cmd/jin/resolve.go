package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/cliui"
	"github.com/dabstractor/jin-sub008/internal/conflict"
	"github.com/dabstractor/jin-sub008/internal/jinerr"
)

var (
	resolveContinue bool
	resolveAbort    bool
)

var resolveCmd = &cobra.Command{
	Use:     "resolve [path]",
	GroupID: "core",
	Short:   "Resolve, continue, or abort a paused apply/pull",
	Long: `resolve <path> reads the user-edited .jinmerge sidecar for path, fails
with UnresolvedMarkers if conflict markers remain, and otherwise replaces the
workspace file with the edited content.

resolve --continue finishes the paused operation once every conflict is
resolved; for a paused pull this also advances the affected layer
references.

resolve --abort discards the paused operation and every remaining .jinmerge
sidecar without touching any path apply already wrote cleanly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}

		switch {
		case resolveContinue:
			if err := conflict.Continue(e.root, e.s, e.mgr); err != nil {
				return err
			}
			fmt.Printf("%s operation continued\n", cliui.RenderPass("✓"))
			return nil
		case resolveAbort:
			confirmed, err := confirmAbort()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("aborted nothing")
				return nil
			}
			if err := conflict.Abort(e.root); err != nil {
				return err
			}
			fmt.Printf("%s paused operation discarded\n", cliui.RenderWarn("!"))
			return nil
		default:
			if len(args) != 1 {
				return jinerr.New(jinerr.KindInvalidUsage, "jin.resolve", "expected a path, --continue, or --abort")
			}
			done, err := conflict.Resolve(e.root, args[0])
			if err != nil {
				return err
			}
			if done {
				fmt.Printf("%s %s resolved, no conflicts remain\n", cliui.RenderPass("✓"), args[0])
			} else {
				fmt.Printf("%s %s resolved\n", cliui.RenderPass("✓"), args[0])
			}
			return nil
		}
	},
}

func confirmAbort() (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Discard the paused operation and all remaining .jinmerge sidecars?").
				Affirmative("Abort").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveContinue, "continue", false, "finish the paused operation once every conflict is resolved")
	resolveCmd.Flags().BoolVar(&resolveAbort, "abort", false, "discard the paused operation and remaining sidecars")
	rootCmd.AddCommand(resolveCmd)
}
