package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/paddock-sh/paddock/internal/hypervisor"
	"github.com/paddock-sh/paddock/internal/ops"
)

var (
	migrateTarget         string
	migrateIgnoreReserved bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <vm>",
	Short: "Move a VM to another hypervisor",
	Long: `Move a VM and its storage to another hypervisor. VMs run on
local volumes, so the move is offline: a running VM is stopped for the
copy and started again on the target.

Without --target the host with the most free memory that fits the VM
is chosen.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			deps := ops.MigrateDeps{
				Candidates: func(ctx context.Context) ([]hypervisor.Capability, error) {
					return a.candidates(ctx, migrateIgnoreReserved)
				},
				Policy:         hypervisor.LeastAllocatedMemory{Log: a.log},
				IgnoreReserved: migrateIgnoreReserved,
			}
			if migrateTarget != "" {
				hv, err := a.hypervisorByName(ctx, migrateTarget)
				if err != nil {
					return err
				}
				deps.Target = hv
			}

			res, err := a.mgr.Migrate(ctx, v, deps)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <vm> <new-fqdn>",
	Short: "Rename a stopped VM",
	Long: `Rename a VM on its hypervisor and in the inventory. The VM must
be stopped. The guest keeps its old hostname until the next rebuild.`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.Rename(ctx, v, args[1])
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTarget, "target", "", "migrate to this host instead of auto-selecting")
	migrateCmd.Flags().BoolVar(&migrateIgnoreReserved, "ignore-reserved", false, "allow moving a reserved VM and consider reserved hypervisors as targets")
}
