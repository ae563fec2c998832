package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/sessiondb/internal/cli"
	"github.com/aretw0/sessiondb/internal/dto"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/sessionstore"
	"github.com/spf13/cobra"
)

func newSessionCmd(a *app) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage stored sessions",
		Long:  `List, inspect, touch and remove the sessions held by the configured store.`,
	}

	sessionCmd.AddCommand(newSessionLsCmd(a))
	sessionCmd.AddCommand(newSessionInspectCmd(a))
	sessionCmd.AddCommand(newSessionRmCmd(a))
	sessionCmd.AddCommand(newSessionClearCmd(a))
	sessionCmd.AddCommand(newSessionTouchCmd(a))
	return sessionCmd
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(*sessionstore.Store) error) (err error) {
	store, err := cli.OpenStore(cmd.Context(), a.cfg.Store, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()
	return fn(store)
}

func newSessionLsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List all live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *sessionstore.Store) error {
				recs, err := store.Records(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list sessions: %w", err)
				}

				out := cmd.OutOrStdout()
				if asJSON {
					views := make([]dto.SessionView, len(recs))
					for i, rec := range recs {
						views[i] = dto.NewSessionView(rec)
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(views)
				}

				if len(recs) == 0 {
					fmt.Fprintln(out, "No active sessions found.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEXPIRES\tUPDATED")
				for _, rec := range recs {
					expires := "never"
					if rec.ExpiresAt != nil {
						expires = rec.ExpiresAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID, expires, rec.UpdatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")
	return cmd
}

func newSessionInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Print the payload of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			return a.withStore(cmd, func(store *sessionstore.Store) error {
				sess, err := store.Get(cmd.Context(), sessionID)
				if err != nil {
					return fmt.Errorf("failed to load session '%s': %w", sessionID, err)
				}
				if sess == nil {
					return &domain.NotFoundError{ID: sessionID}
				}

				// Pretty print JSON
				data, err := json.MarshalIndent(sess, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal session: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}

func newSessionRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>...",
		Short: "Remove one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *sessionstore.Store) error {
				var errs []error
				for _, sessionID := range args {
					if err := store.Destroy(cmd.Context(), sessionID); err != nil {
						errs = append(errs, fmt.Errorf("failed to remove '%s': %w", sessionID, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newSessionClearCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := a.prompter.Confirm(fmt.Sprintf("Remove all sessions from %s?", cli.Backend(a.cfg.Store)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			return a.withStore(cmd, func(store *sessionstore.Store) error {
				n, err := store.Length(cmd.Context())
				if err != nil {
					return err
				}
				if err := store.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("failed to clear sessions: %w", err)
				}
				cli.PrintSystemMessage(cmd.OutOrStdout(), "Removed %d sessions.", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSessionTouchCmd(a *app) *cobra.Command {
	var extend time.Duration

	cmd := &cobra.Command{
		Use:   "touch <session-id>",
		Short: "Refresh a session, optionally moving its expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			return a.withStore(cmd, func(store *sessionstore.Store) error {
				sess := domain.Session{}
				if extend > 0 {
					expires := time.Now().Add(extend)
					sess[domain.CookieKey] = &domain.Cookie{Expires: &expires}
				}
				if err := store.Touch(cmd.Context(), sessionID, sess); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Touched session '%s'\n", sessionID)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&extend, "extend", 0, "Set the expiry to now plus this duration")
	return cmd
}
