package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/sharkchat/internal/gateway"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		name    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a widget JWT signed with gateway.auth.jwtSecret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			auth := gateway.ResolveAuth(cfg.Gateway.Auth)
			if subject == "" {
				subject = "visitor-" + uuid.NewString()
			}
			token, err := gateway.IssueWidgetToken(auth.JWTSecret, auth.JWTIssuer, subject, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (default: random visitor id)")
	cmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
