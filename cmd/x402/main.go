package main

import (
	"fmt"
	"os"

	x402core "github.com/vitwit/x402core"
	"github.com/vitwit/x402core/internal/cli"
)

var version = x402core.Version

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
