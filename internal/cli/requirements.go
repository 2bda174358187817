package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	x402core "github.com/vitwit/x402core"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/utils"
)

func newRequirementsCmd() *cobra.Command {
	var params x402core.RequirementsParams

	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "Build an X-Payment-Requirements header",
		Long: `Build payment requirements and print them as an X-Payment-Requirements header value.

EXAMPLES:
  x402 requirements --amount 1000000 --recipient 0x7099...79C8 --network base --resource /api/data
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := x402core.New().NewRequirements(params)
			if err != nil {
				return err
			}
			header, err := protocol.EncodeRequirements(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), header)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Amount, "amount", "", "amount in the asset's smallest unit (required)")
	cmd.Flags().StringVar(&params.Recipient, "recipient", "", "recipient address (required)")
	cmd.Flags().StringVar(&params.Network, "network", "base", "network name")
	cmd.Flags().StringVar(&params.Token, "token", "", "token contract address (default: native asset)")
	cmd.Flags().StringVar(&params.Description, "description", "", "human-readable description")
	cmd.Flags().Uint64Var(&params.ExpiresAt, "expires-at", 0, "unix time after which the offer is void")
	cmd.Flags().StringVar(&params.Resource, "resource", "", "resource identifier")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}

// decodedRecord adds a display amount and, for payments, the network
// named by the chain id to a decoded header.
type decodedRecord struct {
	Kind          string      `json:"kind"`
	Record        interface{} `json:"record"`
	Network       string      `json:"network,omitempty"`
	DisplayAmount string      `json:"displayAmount,omitempty"`
}

func newDecodeCmd() *cobra.Command {
	var payment bool
	var decimals int

	cmd := &cobra.Command{
		Use:   "decode <header>",
		Short: "Decode an x402 header value",
		Long: `Decode an X-Payment-Requirements header value, or an X-Payment value with --payment, and print it as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := decodedRecord{}
			if payment {
				signed, err := protocol.DecodePayment(args[0])
				if err != nil {
					return err
				}
				out.Kind = protocol.PaymentHeader
				out.Record = signed
				if network, ok := signed.Payment.Network(); ok {
					out.Network = network.String()
				}
				if decimals > 0 {
					out.DisplayAmount = utils.FormatAmount(signed.Payment.Amount, decimals)
				}
			} else {
				req, err := protocol.DecodeRequirements(args[0])
				if err != nil {
					return err
				}
				out.Kind = protocol.RequirementsHeader
				out.Record = req
				if decimals > 0 {
					out.DisplayAmount = utils.FormatAmount(req.Amount, decimals)
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&payment, "payment", false, "decode an X-Payment value")
	cmd.Flags().IntVar(&decimals, "decimals", 0, "asset decimals for a human-readable amount")
	return cmd
}
