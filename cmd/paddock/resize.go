package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	vcpuOffline        bool
	vcpuIgnoreReserved bool
)

var vcpuSetCmd = &cobra.Command{
	Use:   "vcpu-set <vm> <count>",
	Short: "Change the vCPU count of a VM",
	Long: `Change the number of vCPUs. Increases work on a running VM;
decreases need --offline, which powers the VM off around the change.`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[1])
		if err != nil || count < 1 {
			return usagef("vCPU count %q must be a positive integer", args[1])
		}

		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.VCPUSet(ctx, v, count, vcpuOffline, vcpuIgnoreReserved)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var (
	memOffline        bool
	memIgnoreReserved bool
)

var memSetCmd = &cobra.Command{
	Use:   "mem-set <vm> <size>",
	Short: "Change the memory of a VM",
	Long: `Change the memory of a VM. Sizes are absolute ("8G") or relative
("+1024"); bare numbers are MiB. Shrinking only works on a powered-off
VM, so it needs --offline unless the VM is already stopped.

With --offline the VM is powered off around the change, which some
guest kernels need to see the new size.`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.MemSet(ctx, v, args[1], memOffline, memIgnoreReserved)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

var diskIgnoreReserved bool

var diskSetCmd = &cobra.Command{
	Use:   "disk-set <vm> <size>",
	Short: "Grow the disk of a VM",
	Long: `Grow the root disk of a VM. Sizes are absolute ("32G") or
relative ("+8G"); bare numbers are GiB. On a running VM the root
filesystem is grown into the new space right away. Shrinking is not
supported.`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *application) error {
			v, err := a.vmByName(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := a.mgr.DiskSet(ctx, v, args[1], diskIgnoreReserved)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

func init() {
	vcpuSetCmd.Flags().BoolVar(&vcpuOffline, "offline", false, "power off around the change")
	vcpuSetCmd.Flags().BoolVar(&vcpuIgnoreReserved, "ignore-reserved", false, "allow changing a reserved VM")
	memSetCmd.Flags().BoolVar(&memOffline, "offline", false, "power off around the change")
	memSetCmd.Flags().BoolVar(&memIgnoreReserved, "ignore-reserved", false, "allow changing a reserved VM")
	diskSetCmd.Flags().BoolVar(&diskIgnoreReserved, "ignore-reserved", false, "allow changing a reserved VM")
}
