// Package cli is the timelock command line. It wires configuration,
// storage, the scheduler engine, the reconciler and the task service
// together and exposes them as cobra commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type app struct {
	cfgPath string
	dbPath  string
	verbose bool

	now    func() time.Time
	stderr io.Writer
}

// NewRootCmd builds the command tree. Every invocation gets fresh flag
// state, which keeps tests independent.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{now: time.Now, stderr: os.Stderr})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "timelock",
		Short: "timelock - deadline countdowns with reminders that stay in sync",
		Long: `timelock tracks tasks against hard deadlines and schedules reminders
ahead of each one. Every edit reconciles the reminders that are live with
what the task now calls for.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default ~/.timelock/config.yaml)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path, overrides database.path")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		a.addCmd(),
		a.editCmd(),
		a.doneCmd(),
		a.rmCmd(),
		a.listCmd(),
		a.categoryCmd(),
		a.diagCmd(),
		a.sweepCmd(),
		a.watchCmd(),
		a.configCmd(),
	)
	return root
}

// Execute runs the root command
func Execute(version string) error {
	root := NewRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
