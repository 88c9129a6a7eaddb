package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "profile",
		Short: "Manage local profiles",
	}
	p.AddCommand(newProfileListCmd())
	p.AddCommand(newProfileSwitchCmd())
	p.AddCommand(newProfileImportCmd())
	p.AddCommand(newProfileDeleteCmd())
	return p
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every profile and mark the active one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newBootstrap("profile")
			if err != nil {
				return err
			}
			profiles, err := b.profiles.List()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				marker := " "
				if p.Active {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, p.Name)
			}
			return nil
		},
	}
}

func newProfileSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <name>",
		Short: "Set a profile active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap("profile")
			if err != nil {
				return err
			}
			return b.profiles.SetActive(args[0])
		},
	}
}

func newProfileImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Import a profile from a local YAML file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap("profile")
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return b.profiles.Save(args[0], string(content))
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap("profile")
			if err != nil {
				return err
			}
			return b.profiles.Delete(args[0])
		},
	}
}
