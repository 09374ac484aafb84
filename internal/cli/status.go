package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/soyeahso/sharkchat/internal/gateway"
	"github.com/soyeahso/sharkchat/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sharkchat status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "sharkchat %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(w, "Config:  %s\n", paths.Config)
			fmt.Fprintf(w, "Data:    %s\n", paths.Data)
			fmt.Fprintf(w, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(w)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(w, "Config:  not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(w, "Config:  error loading: %v\n", err)
				return nil
			}
			printStatus(w, cfg)
			return nil
		},
	}

	return cmd
}

func printStatus(w io.Writer, cfg config.Config) {
	auth := gateway.ResolveAuth(cfg.Gateway.Auth)
	fmt.Fprintf(w, "Gateway: port=%d bind=%s auth=%s provision=%v\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, auth.Mode, cfg.Gateway.Widget.Provision)
	fmt.Fprintf(w, "Session: store=%s scope=%s idle=%s retention=%s\n",
		cfg.Session.Store, cfg.Session.Scope, cfg.Session.IdleTimeout(), cfg.Session.Retention())
	fmt.Fprintf(w, "Call:    connect=%s grace=%s close=%s\n",
		cfg.Call.ConnectTimeoutDuration(), cfg.Call.GraceDelayDuration(), cfg.Call.CloseDelayDuration())

	fmt.Fprintf(w, "AWS:     region=%s\n", orNone(cfg.AWS.Region))
	fmt.Fprintf(w, "Lex:     bot=%s alias=%s locale=%s\n",
		orNone(cfg.Lex.BotID), orNone(cfg.Lex.BotAliasID), cfg.Lex.LocaleID)
	fmt.Fprintf(w, "Lookup:  %s\n", orNone(strings.TrimRight(cfg.Identity.Endpoint, "/")+cfg.Identity.Path))
	if cfg.Meeting.SetupURL != "" {
		fmt.Fprintf(w, "Meeting: setupUrl=%s\n", cfg.Meeting.SetupURL)
	}

	// Channels
	if irc := cfg.Channels.IRC; irc != nil {
		fmt.Fprintf(w, "IRC:     server=%s nick=%s channels=%s tls=%v\n",
			irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
	} else {
		fmt.Fprintln(w, "IRC:     (not configured)")
	}

	var notifiers []string
	if cfg.Notify.Slack != nil {
		notifiers = append(notifiers, "slack")
	}
	if cfg.Notify.Discord != nil {
		notifiers = append(notifiers, "discord")
	}
	fmt.Fprintf(w, "Notify:  %s\n", orNone(strings.Join(notifiers, ", ")))

	// Validation
	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		fmt.Fprintf(w, "\nValidation issues (%d):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(w, "  - %s: %s\n", issue.Path, issue.Message)
		}
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
