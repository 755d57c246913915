package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docpipe",
		Short:         "Asynchronous document analysis pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newGatewayCmd(),
		newWorkerCmd(),
		newProcessCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}
