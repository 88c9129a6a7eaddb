package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhugenanbei181/music-frog-sub001/internal/versionmgr"
)

func newCoreCmd() *cobra.Command {
	core := &cobra.Command{
		Use:   "core",
		Short: "Manage installed Mihomo core binaries",
	}
	core.AddCommand(newCoreListCmd())
	core.AddCommand(newCoreInstallCmd())
	core.AddCommand(newCoreActivateCmd())
	core.AddCommand(newCoreUninstallCmd())
	return core
}

func newCoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed core versions and the active default",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newBootstrap("core")
			if err != nil {
				return err
			}
			entries, err := b.versions.ListInstalled()
			if err != nil {
				return err
			}
			def, _ := b.versions.GetDefault()
			for _, e := range entries {
				marker := " "
				if e.Version == def {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, e.Version)
			}
			return nil
		},
	}
}

func newCoreInstallCmd() *cobra.Command {
	var channel string
	var repo string
	cmd := &cobra.Command{
		Use:   "install [version]",
		Short: "Resolve and install the latest tag for a channel; a version argument is rejected",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap("core")
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if len(args) == 1 {
				return fmt.Errorf("installing a specific version requires its download URL; use --channel to resolve one automatically")
			}

			resolver := versionmgr.NewGitHubResolver(repo)
			v, err := b.versions.InstallChannel(ctx, versionmgr.Channel(channel), resolver.Resolve)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", v)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", string(versionmgr.ChannelStable), "release channel to resolve: stable, beta, nightly")
	cmd.Flags().StringVar(&repo, "repo", "MetaCubeX/mihomo", "GitHub owner/repo to resolve releases from")
	return cmd
}

func newCoreActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <version>",
		Short: "Set the default core version used by the next rebuild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap("core")
			if err != nil {
				return err
			}
			if _, err := b.versions.GetBinaryPath(args[0]); err != nil {
				return err
			}
			return b.versions.SetDefault(args[0])
		},
	}
}

func newCoreUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <version>",
		Short: "Remove an installed core version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap("core")
			if err != nil {
				return err
			}
			return b.versions.Uninstall(args[0])
		},
	}
}
