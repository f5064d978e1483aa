package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	buildHypervisor     string
	buildIgnoreReserved bool
)

var buildCmd = &cobra.Command{
	Use:   "build <vm>",
	Short: "Provision and start a new VM",
	Long: `Provision a VM defined in the inventory: create its root volume,
unpack the OS image, write the cloud-init seed and define and start the
domain.

Without --hypervisor the host with the most free memory that fits the
VM is chosen.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			if buildHypervisor != "" {
				hv, err := a.hypervisorByName(ctx, buildHypervisor)
				if err != nil {
					return err
				}
				v.SetHypervisor(hv)
			}

			res, err := a.mgr.Build(ctx, v, a.buildDeps(buildIgnoreReserved))
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var rebuildForce bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <vm>",
	Short: "Wipe and provision a VM again",
	Long: `Tear a VM down and provision it from scratch on the same
hypervisor. All data on its disk is lost. A running VM is only rebuilt
with --force.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.Rebuild(ctx, v, rebuildForce, a.buildDeps(false))
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildHypervisor, "hypervisor", "", "build on this host instead of auto-selecting")
	buildCmd.Flags().BoolVar(&buildIgnoreReserved, "ignore-reserved", false, "also consider reserved hypervisors for placement")
	rebuildCmd.Flags().BoolVar(&rebuildForce, "force", false, "rebuild even when running")
}
