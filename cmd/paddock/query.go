package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <vm>",
	Short: "Sync the inventory from the hypervisor",
	Long: `Read vCPU count, memory and disk size from the hypervisor and
write any drift back to the inventory. The hypervisor wins.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.Sync(ctx, v)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <vm>",
	Short: "Show inventory data and live usage of a VM",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			return a.mgr.Info(ctx, os.Stdout, v)
		})
	},
}
