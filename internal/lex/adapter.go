// Package lex turns free text into bot messages through an Amazon Lex V2 bot.
package lex

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2/types"

	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
)

// Fixed replies used when the bot cannot be reached or answers with
// something that cannot be rendered.
const (
	TextServiceFailure = "Sorry, something went wrong."
	TextInvalidFormat  = "Error: Invalid response format."
	TextParseFailure   = "Error processing response."
	TextNoResponse     = "No response."
	TextNoContent      = "No content"
	TextNoPayload      = "No message content available."
)

// Recognizer is the subset of the Lex runtime client the adapter uses.
type Recognizer interface {
	RecognizeText(ctx context.Context, params *lexruntimev2.RecognizeTextInput, optFns ...func(*lexruntimev2.Options)) (*lexruntimev2.RecognizeTextOutput, error)
}

// Adapter forwards user turns to a Lex bot and normalizes its replies.
type Adapter struct {
	client   Recognizer
	botID    string
	aliasID  string
	localeID string
	log      *logging.Logger
}

// New creates an adapter over an existing Recognizer.
func New(client Recognizer, cfg config.LexConfig, log *logging.Logger) *Adapter {
	return &Adapter{
		client:   client,
		botID:    cfg.BotID,
		aliasID:  cfg.BotAliasID,
		localeID: cfg.LocaleID,
		log:      log.Sub("lex"),
	}
}

// NewFromConfig creates an adapter backed by the Lex V2 runtime API.
func NewFromConfig(awsCfg aws.Config, cfg config.LexConfig, log *logging.Logger) *Adapter {
	return New(lexruntimev2.NewFromConfig(awsCfg), cfg, log)
}

// Forward sends text to the bot under sessionID and returns the bot's
// replies in order. Service failures collapse to a single apology message.
// Blank text yields no messages.
func (a *Adapter) Forward(ctx context.Context, text, sessionID string) []domain.Message {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	out, err := a.client.RecognizeText(ctx, &lexruntimev2.RecognizeTextInput{
		BotId:      aws.String(a.botID),
		BotAliasId: aws.String(a.aliasID),
		LocaleId:   aws.String(a.localeID),
		SessionId:  aws.String(sessionID),
		Text:       aws.String(text),
	})
	if err != nil {
		a.log.Error().Err(err).Str("session", sessionID).Msg("recognize text failed")
		return []domain.Message{domain.BotMessage(TextServiceFailure)}
	}

	a.log.Debug().
		Str("session", sessionID).
		Int("messages", len(out.Messages)).
		Msg("bot replied")

	if len(out.Messages) == 0 {
		return []domain.Message{domain.BotMessage(TextNoResponse)}
	}
	return Translate(out.Messages)
}

// Translate converts Lex messages into transcript messages, one for one.
func Translate(msgs []types.Message) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, translateOne(m))
	}
	return out
}

func translateOne(m types.Message) domain.Message {
	switch m.ContentType {
	case types.MessageContentTypeCustomPayload:
		return translatePayload(aws.ToString(m.Content))
	case types.MessageContentTypeImageResponseCard:
		if card := m.ImageResponseCard; card != nil {
			return translateCard(card)
		}
	}

	if text := aws.ToString(m.Content); text != "" {
		return domain.BotMessage(text)
	}
	return domain.BotMessage(TextNoResponse)
}

func translateCard(card *types.ImageResponseCard) domain.Message {
	text := aws.ToString(card.Title)
	if sub := aws.ToString(card.Subtitle); sub != "" {
		text += "\n" + sub
	}
	if text == "" {
		text = TextNoResponse
	}
	labels := make([]string, 0, len(card.Buttons))
	for _, b := range card.Buttons {
		if label := aws.ToString(b.Text); label != "" {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return domain.BotMessage(text)
	}
	return domain.BotPrompt(text, domain.QuickReply(labels...))
}
