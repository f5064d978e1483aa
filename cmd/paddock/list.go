package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paddock-sh/paddock/internal/inventory"
	"github.com/paddock-sh/paddock/internal/output"
)

var (
	listHypervisor string
	listFormat     string
	listNoHeaders  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List VMs from the inventory",
	Long: `List VMs known to the inventory, optionally restricted to one
hypervisor.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(listFormat),
			NoHeaders: listNoHeaders,
		})
		if err != nil {
			return usagef("%s", err)
		}

		return run(func(ctx context.Context, a *application) error {
			var recs []*inventory.Record
			if listHypervisor != "" {
				recs, err = a.inv.ListByHypervisor(ctx, listHypervisor)
			} else {
				recs, err = a.inv.List(ctx, inventory.TypeVM, nil)
			}
			if err != nil {
				return err
			}

			vms := make([]output.VMSummary, 0, len(recs))
			for _, rec := range recs {
				vms = append(vms, output.SummaryFromRecord(rec))
			}

			rendered, err := formatter.FormatVMList(vms)
			if err != nil {
				return err
			}
			fmt.Print(rendered)
			return nil
		})
	},
}

func init() {
	listCmd.Flags().StringVar(&listHypervisor, "hypervisor", "", "only VMs on this host")
	listCmd.Flags().StringVarP(&listFormat, "output", "o", "table", "output format (table, yaml, json)")
	listCmd.Flags().BoolVar(&listNoHeaders, "no-headers", false, "omit the table header row")
}
