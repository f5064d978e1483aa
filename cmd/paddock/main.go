package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/paddock-sh/paddock/internal/ops"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagConfig  string
	flagVerbose int
	flagSilent  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var uerr *usageError
		if errors.As(err, &uerr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paddock",
	Short: "Paddock - VM lifecycle management on KVM hypervisors",
	Long: `Paddock provisions, resizes, migrates and decommissions virtual
machines on KVM hypervisors, keeping the server inventory in sync with
what actually runs on the hosts.

VMs are addressed by hostname; unqualified names are matched against
the inventory.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default /etc/paddock.yaml, $PADDOCK_CONFIG)")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "more log output, repeatable")
	rootCmd.PersistentFlags().CountVarP(&flagSilent, "silent", "s", "less log output, repeatable")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(vcpuSetCmd)
	rootCmd.AddCommand(memSetCmd)
	rootCmd.AddCommand(diskSetCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listCmd)
}

// usageError marks command line mistakes, which exit with status 2
// instead of 1.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exactArgs is cobra.ExactArgs with the usage exit status.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// run wires up the application around fn and tears it down afterwards.
func run(fn func(ctx context.Context, a *application) error) error {
	a, err := newApplication()
	if err != nil {
		return err
	}
	defer a.close()

	return fn(context.Background(), a)
}

func printResult(res ops.Result) {
	if res.Outcome == ops.OutcomeNoop {
		fmt.Printf("nothing to do: %s\n", res.Message)
		return
	}

	fmt.Println(color.GreenString("✓ %s", res.Message))
}
