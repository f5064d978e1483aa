package main

import (
	"context"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <vm>",
	Short: "Power a VM on",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.Start(ctx, v)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var stopForce bool

var stopCmd = &cobra.Command{
	Use:   "stop <vm>",
	Short: "Power a VM off",
	Long: `Power a VM off via ACPI shutdown.

With --force the VM is destroyed immediately, like pulling the plug.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.Stop(ctx, v, stopForce)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var (
	restartForce      bool
	restartNoRedefine bool
)

var restartCmd = &cobra.Command{
	Use:   "restart <vm>",
	Short: "Stop and start a VM",
	Long: `Stop and start a running VM.

The domain definition is refreshed in between unless --no-redefine is
given, so attribute changes that need a reboot take effect.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.Restart(ctx, v, restartForce, restartNoRedefine)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var (
	deleteForce  bool
	deleteRetire bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <vm>",
	Short: "Decommission a VM",
	Long: `Remove a VM from its hypervisor and from the inventory.

This undefines the domain and deletes its storage. A running VM is
only deleted with --force. With --retire the inventory entry is kept
in the retired state instead of being removed.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.Delete(ctx, v, deleteForce, deleteRetire)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "destroy instead of ACPI shutdown")
	restartCmd.Flags().BoolVar(&restartForce, "force", false, "destroy instead of ACPI shutdown")
	restartCmd.Flags().BoolVar(&restartNoRedefine, "no-redefine", false, "keep the current domain definition")
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "delete even when running")
	deleteCmd.Flags().BoolVar(&deleteRetire, "retire", false, "keep the inventory entry in the retired state")
}
