// Package cli implements the x402 command line tool.
package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the x402 command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "x402",
		Short:         "x402 payment protocol tool",
		Long:          `x402 builds, signs, decodes and verifies x402 payment headers, and serves paid HTTP endpoints.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newNetworksCmd())
	rootCmd.AddCommand(newRequirementsCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newSignCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
