package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin-sub008/internal/cliui"
	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/dabstractor/jin-sub008/internal/remote"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	GroupID: "remote",
	Short:   "Synchronize layer references with a remote store",
}

var remoteName string

func remoteTransport(e *env) (*remote.GitTransport, error) {
	if e.cfg.RemoteURL == "" {
		return nil, jinerr.New(jinerr.KindInvalidUsage, "jin.remote", "no remote URL configured (JIN_REMOTE_URL or config remote_url)")
	}
	return &remote.GitTransport{GitDir: e.cfg.StoreHome, RemoteURL: e.cfg.RemoteURL}, nil
}

var remoteFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every layer ref from the remote into the local layer namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		t, err := remoteTransport(e)
		if err != nil {
			return err
		}
		updated, err := t.Fetch(remote.FetchSpec)
		if err != nil {
			return err
		}
		fmt.Printf("%s fetched %d ref(s)\n", cliui.RenderPass("✓"), len(updated))
		return nil
	},
}

var remotePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push every layer ref to the remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		t, err := remoteTransport(e)
		if err != nil {
			return err
		}
		if err := t.Push(remote.FetchSpec); err != nil {
			return err
		}
		fmt.Printf("%s pushed every layer reference\n", cliui.RenderPass("✓"))
		return nil
	},
}

var remotePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch and merge every layer applicable to the current context",
	Long: `pull fetches every layer ref from the remote into a private shadow
namespace, then for each layer applicable to the current context: adopts
the remote commit outright (new layer or fast-forward), three-way merges
diverged histories, or, for any path merge can't resolve, writes a
.jinmerge sidecar and defers that layer's ref update to 'jin resolve
--continue'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		t, err := remoteTransport(e)
		if err != nil {
			return err
		}
		result, err := remote.Pull(e.s, t, e.mgr, e.root, remoteName, e.ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s advanced %d layer(s)\n", cliui.RenderPass("✓"), len(result.Advanced))
		if len(result.Pending) > 0 {
			fmt.Printf("%s %d layer(s) pending conflict resolution, %d file(s) in conflict:\n",
				cliui.RenderWarn("!"), len(result.Pending), len(result.ConflictFiles))
			for _, p := range result.ConflictFiles {
				fmt.Printf("  %s.jinmerge\n", p)
			}
			fmt.Println("resolve each path, then run 'jin resolve --continue'")
		}
		return nil
	},
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteName, "remote", "origin", "remote name, used to namespace the fetched shadow refs")
	remoteCmd.AddCommand(remoteFetchCmd, remotePushCmd, remotePullCmd)
	rootCmd.AddCommand(remoteCmd)
}
