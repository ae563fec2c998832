package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/sessiondb"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sessiondb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sessiondb version %s\n", strings.TrimSpace(sessiondb.Version))
		},
	}
}
