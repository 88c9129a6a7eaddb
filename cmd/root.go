// Package cmd wires the cobra command tree for mihomo-ctl: a thin
// shell around the packages in internal/ that load the on-disk state,
// start the two localhost servers, and otherwise drive the system
// from a terminal instead of a browser.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	homeOverride string
	logLevel     string
)

// NewRootCmd builds the root command. Every subcommand resolves its
// own platform.Paths from the --home flag rather than sharing one
// built here, so that each can be unit tested without a cobra
// Command in the loop.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mihomo-ctl",
		Short:         "Supervise a Mihomo core, its profiles, and its subscriptions",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&homeOverride, "home", "", "override the mihomo-ctl home directory (defaults to $MIHOMO_HOME or the OS config dir)")
	pf.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newCoreCmd())
	root.AddCommand(newProfileCmd())
	root.AddCommand(newDoctorCmd())

	return root
}

func parsedLogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
