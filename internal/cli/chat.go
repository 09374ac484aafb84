package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/soyeahso/sharkchat/internal/call"
	"github.com/soyeahso/sharkchat/internal/conversation"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/routing"
	"github.com/spf13/cobra"
)

// terminalKey is the session key of the REPL conversation.
var terminalKey = domain.SessionKey{ChannelID: "cli", ChatID: "terminal"}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the support bot in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				log = logging.New(nil, "warn")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			conversations := svc.registry(cfg)
			defer conversations.Close(context.Background())

			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), conversations, callOptions(cfg), log)
		},
	}
}

// runChat runs one conversation over line-oriented input until it closes
// or the input ends.
func runChat(ctx context.Context, in io.Reader, out io.Writer, reg *conversation.Registry, opts call.Options, log *logging.Logger) error {
	sink := &terminalSink{out: out, done: make(chan struct{})}
	conv, _, err := reg.Open(ctx, terminalKey, conversation.Shell{
		Sink:      sink,
		NewCaller: routing.TextCaller(opts, log),
	})
	if err != nil {
		return err
	}
	defer reg.End(context.Background(), terminalKey)

	scanner := bufio.NewScanner(in)
	for {
		select {
		case <-sink.done:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		err := conv.Send(ctx, routing.ResolveChoice(scanner.Text(), conv.Messages()))
		switch {
		case errors.Is(err, conversation.ErrEmptyInput):
		case errors.Is(err, conversation.ErrClosed):
			return nil
		case err != nil:
			return err
		}
	}
}

// terminalSink prints bot messages as they are appended.
type terminalSink struct {
	out  io.Writer
	once sync.Once
	done chan struct{}
}

func (t *terminalSink) Deliver(msg domain.Message) {
	if msg.Origin != domain.OriginBot {
		return
	}
	fmt.Fprintf(t.out, "shark> %s\n", routing.RenderText(msg))
}

func (t *terminalSink) CallStatus(status domain.CallStatus, reason string) {}

func (t *terminalSink) Close(after time.Duration) {
	t.once.Do(func() {
		fmt.Fprintln(t.out, "(chat closed)")
		close(t.done)
	})
}
