package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	x402core "github.com/vitwit/x402core"
	"github.com/vitwit/x402core/types"
)

func newNetworksCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List supported networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := x402core.Supported()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), items)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NETWORK\tCHAIN ID\tTESTNET")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%d\t%t\n", item.Network, item.ChainID, types.Network(item.Network).IsTestnet())
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
