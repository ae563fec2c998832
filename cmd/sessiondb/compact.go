package main

import (
	"fmt"

	"github.com/aretw0/sessiondb/internal/cli"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
	"github.com/spf13/cobra"
)

func newCompactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the session datafile now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *sessionstore.Store) error {
				if err := store.Compact(cmd.Context()); err != nil {
					return fmt.Errorf("failed to compact %s: %w", cli.Backend(a.cfg.Store), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Compacted %s\n", cli.Backend(a.cfg.Store))
				return nil
			})
		},
	}
}
