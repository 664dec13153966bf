package main

import (
	"fmt"

	svcboot "github.com/masegraye/svcboot-go"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the svcboot version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "svcboot %s (entry ABI %d)\n", svcboot.Version, svcboot.ABIVersion)
			return err
		},
	}
}
