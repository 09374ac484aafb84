package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored conversations",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	return cmd
}

// withStore runs fn against the configured SQLite store.
func withStore(fn func(st store.ConversationStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Session.Store != "sqlite" {
		return errors.New("stored sessions require session.store: sqlite")
	}
	st, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(st)
}

func newSessionsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(st store.ConversationStore) error {
				sessions, err := st.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printSessions(cmd.OutOrStdout(), sessions)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of conversations")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a conversation transcript and its call attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(st store.ConversationStore) error {
				return showSession(cmd.Context(), cmd.OutOrStdout(), st, args[0])
			})
		},
	}
}

func printSessions(w io.Writer, sessions []domain.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKEY\tSTATE\tUPDATED\tCLOSED")
	for _, s := range sessions {
		closed := "-"
		if s.ClosedAt != nil {
			closed = s.ClosedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Key.String(), s.State, s.UpdatedAt.Local().Format(time.DateTime), closed)
	}
	tw.Flush()
}

func showSession(ctx context.Context, w io.Writer, st store.ConversationStore, id string) error {
	sess, err := st.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("conversation %q not found", id)
	}
	if err != nil {
		return err
	}
	calls, err := st.Calls(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Session: %s\n", sess.ID)
	fmt.Fprintf(w, "Key:     %s\n", sess.Key.String())
	fmt.Fprintf(w, "State:   %s\n", sess.State)
	if sess.Context.CapturedPhone != "" || sess.Context.CapturedName != "" {
		fmt.Fprintf(w, "Caller:  phone=%s name=%s\n", sess.Context.CapturedPhone, sess.Context.CapturedName)
	}
	fmt.Fprintln(w)

	for _, m := range sess.Messages {
		fmt.Fprintf(w, "[%s] %-4s %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.Origin, m.Text)
		if labels := m.Action.Labels(); len(labels) > 0 {
			fmt.Fprintf(w, "            %v\n", labels)
		}
	}

	if len(calls) > 0 {
		fmt.Fprintln(w)
		for _, c := range calls {
			line := fmt.Sprintf("Call %d: %s", c.ID, c.Status)
			if c.Reason != "" {
				line += " (" + c.Reason + ")"
			}
			if c.EndedAt != nil {
				line += fmt.Sprintf(" after %s", c.EndedAt.Sub(c.StartedAt).Round(time.Second))
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
