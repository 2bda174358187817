package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitwit/x402core/clients"
	"github.com/vitwit/x402core/protocol"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
	"github.com/vitwit/x402core/verification"
)

func newSignCmd() *cobra.Command {
	var (
		key        string
		keyEnv     string
		maxAmount  string
		maxDisplay string
		decimals   int
	)

	cmd := &cobra.Command{
		Use:   "sign <requirements-header>",
		Short: "Sign a payment for an X-Payment-Requirements header",
		Long: `Sign a payment answering the given requirements and print the X-Payment header value.

The private key is taken from --key or from the environment variable named
by --key-env (default X402_PRIVATE_KEY).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := protocol.DecodeRequirements(args[0])
			if err != nil {
				return err
			}

			var signer *clients.LocalSigner
			if key != "" {
				signer, err = clients.NewLocalSigner(key)
			} else {
				signer, err = clients.LocalSignerFromEnv(keyEnv)
			}
			if err != nil {
				return err
			}

			var opts []clients.ClientOption
			switch {
			case maxAmount != "":
				max, err := types.ParseAmount(maxAmount)
				if err != nil {
					return fmt.Errorf("invalid --max-amount: %w", err)
				}
				opts = append(opts, clients.WithMaxAmount(max))
			case maxDisplay != "":
				max, err := utils.ParseAmountWithDecimals(maxDisplay, decimals)
				if err != nil {
					return fmt.Errorf("invalid --max: %w", err)
				}
				opts = append(opts, clients.WithMaxAmount(max))
			}

			header, err := clients.NewClient(signer, opts...).Pay(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), header)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "hex private key")
	cmd.Flags().StringVar(&keyEnv, "key-env", clients.DefaultKeyEnv, "environment variable holding the private key")
	cmd.Flags().StringVar(&maxAmount, "max-amount", "", "refuse to sign above this amount (smallest unit)")
	cmd.Flags().StringVar(&maxDisplay, "max", "", "refuse to sign above this amount (whole units, see --decimals)")
	cmd.Flags().IntVar(&decimals, "decimals", 6, "asset decimals used by --max")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var requirements string

	cmd := &cobra.Command{
		Use:   "verify <payment-header>",
		Short: "Verify an X-Payment header against requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := protocol.DecodeRequirements(requirements)
			if err != nil {
				return fmt.Errorf("requirements: %w", err)
			}

			result, err := verification.NewVerifier().VerifyHeader(cmd.Context(), args[0], req)
			if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&requirements, "requirements", "", "X-Payment-Requirements header value (required)")
	_ = cmd.MarkFlagRequired("requirements")
	return cmd
}
