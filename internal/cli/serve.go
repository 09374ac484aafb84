package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/sharkchat/internal/channel"
	"github.com/soyeahso/sharkchat/internal/channel/irc"
	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/soyeahso/sharkchat/internal/gateway"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/routing"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"gateway"},
		Short:   "Run the widget gateway and IRC support desk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			closer, err := configureLogging(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer()

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			conversations := svc.registry(cfg)
			if err := conversations.StartJanitor(cfg.Session.PruneSchedule); err != nil {
				return err
			}
			defer conversations.Close(context.Background())

			channels := channel.NewRegistry(log)
			if cfg.Channels.IRC != nil {
				channels.Register(irc.New(*cfg.Channels.IRC, log))
			}

			srv := gateway.New(cfg, log,
				gateway.WithConversations(conversations),
				gateway.WithCallSetup(svc.setup),
				gateway.WithCallOptions(callOptions(cfg)),
				gateway.WithChannels(channels),
				gateway.WithHooks(svc.deps.Hooks),
			)

			// Start channels and wire message routing
			if channels.Count() > 0 {
				router := routing.NewRouter(channels, conversations, routing.Options{
					Scope: cfg.Session.Scope,
					Call:  callOptions(cfg),
				}, log)
				router.Wire()
				if err := channels.StartAll(ctx); err != nil {
					return fmt.Errorf("starting channels: %w", err)
				}
				defer channels.StopAll(context.Background())
				log.Info().
					Int("channels", channels.Count()).
					Str("scope", cfg.Session.Scope).
					Msg("message routing active")
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}

// configureLogging replaces the startup logger with the configured one. The
// --log-level flag wins over logging.level.
func configureLogging(cfg config.LoggingConfig) (func(), error) {
	level := cfg.Level
	if logLevel != "" || level == "" {
		level = logLevel
	}
	if level == "" {
		level = "info"
	}
	l, closer, err := logging.NewWithOptions(logging.Options{
		Level: level,
		Style: cfg.ConsoleStyle,
		File:  cfg.File,
	})
	if err != nil {
		return nil, err
	}
	log = l
	return func() { closer.Close() }, nil
}
