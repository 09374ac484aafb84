// Package conversation runs the support conversation: identity collection,
// routing to the conversational backend, and escalation to a live agent.
package conversation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/identity"
)

// ErrEmptyInput is returned for a turn that is blank after trimming.
var ErrEmptyInput = errors.New("conversation: empty input")

// Bot texts.
const (
	TextWelcome              = "Welcome to Shark Unlock. Are you an existing customer or new customer?"
	TextWelcomeRetry         = "Dear customer, to continue forward we want to know whether you are new customer or existing customer so answer yes if you are existing customer or no if you are new customer."
	TextAskPhone             = "Please enter your 10-digit phone number."
	TextAskName              = "Please enter your name."
	TextAskZip               = "Please enter your zipcode."
	TextPhoneNotRegistered   = "Please try again by giving your correct phone number that you registered with us."
	TextLookupFailed         = "Error fetching data. Please try again."
	TextInvalidExistingPhone = "You entered an invalid phone number. Please enter a 10-digit number."
	TextInvalidNewPhone      = "Invalid phone number. Please enter a 10-digit number."
	TextZipMismatch          = "Zipcode does not match. Please try again with your zipcode."
	TextFarewell             = "Chat ended. Goodbye!"
	TextBackendUnavailable   = "Sorry, something went wrong."
	TextCallUnavailable      = "Calls are not available right now."
)

// Welcome quick-reply labels.
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

// DefaultHandoffPrefix starts the synthesized message that hands a verified
// caller to the backend.
const DefaultHandoffPrefix = "lrzmsinu"

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// WelcomeMessage is the first message of every conversation.
func WelcomeMessage() domain.Message {
	return domain.BotPrompt(TextWelcome, domain.QuickReply(AnswerYes, AnswerNo))
}

// Effect is the side effect a decision asks the orchestrator to perform
// after applying the state change and messages.
type Effect int

const (
	EffectNone Effect = iota
	EffectLookup
	EffectForward
	EffectEscalate
	EffectClose
)

func (e Effect) String() string {
	switch e {
	case EffectLookup:
		return "lookup"
	case EffectForward:
		return "forward"
	case EffectEscalate:
		return "escalate"
	case EffectClose:
		return "close"
	default:
		return "none"
	}
}

// Decision is the outcome of one turn.
type Decision struct {
	Input    string
	Next     domain.State
	Context  domain.SessionContext
	Messages []domain.Message
	Effect   Effect

	// LookupPhone is the E.164 number for EffectLookup.
	LookupPhone string
	// ForwardText is the text sent to the backend for EffectForward.
	ForwardText string
}

// Rules holds the configurable parts of the transition table.
type Rules struct {
	HandoffPrefix string
}

// Transition evaluates one turn with the default rules.
func Transition(state domain.State, sc domain.SessionContext, raw string) (Decision, error) {
	return Rules{}.Transition(state, sc, raw)
}

// Transition evaluates raw input against the current state. It never
// performs I/O; lookups, backend calls and escalation are returned as
// effects.
func (r Rules) Transition(state domain.State, sc domain.SessionContext, raw string) (Decision, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return Decision{}, ErrEmptyInput
	}

	d := Decision{Input: input, Next: state, Context: sc}

	switch input {
	case domain.PhraseEscalate:
		d.Effect = EffectEscalate
		return d, nil
	case domain.PhraseDecline:
		d.Messages = []domain.Message{domain.BotMessage(TextFarewell)}
		d.Effect = EffectClose
		return d, nil
	}

	switch state {
	case domain.StateWelcome:
		switch strings.ToLower(input) {
		case "yes":
			d.Next = domain.StateExistingCustomerPhone
			d.say(TextAskPhone)
		case "no":
			d.Next = domain.StateNewCustomerName
			d.say(TextAskName)
		default:
			d.Messages = []domain.Message{
				domain.BotPrompt(TextWelcomeRetry, domain.QuickReply(AnswerYes, AnswerNo)),
			}
		}

	case domain.StateExistingCustomerPhone:
		if !phonePattern.MatchString(input) {
			d.say(TextInvalidExistingPhone)
			break
		}
		d.Context.CapturedPhone = input
		d.Effect = EffectLookup
		d.LookupPhone = "+1" + input

	case domain.StateExistingCustomerZip:
		if input != sc.CapturedZip {
			d.say(TextZipMismatch)
			break
		}
		d.Next = domain.StateConnectedToBackend
		d.Effect = EffectForward
		d.ForwardText = r.handoffPrefix() + " " + sc.CapturedPhone

	case domain.StateNewCustomerName:
		d.Context.CapturedName = input
		d.Next = domain.StateNewCustomerPhone
		d.say(TextAskPhone)

	case domain.StateNewCustomerPhone:
		if !phonePattern.MatchString(input) {
			d.say(TextInvalidNewPhone)
			break
		}
		d.Context.CapturedPhone = input
		d.Effect = EffectEscalate

	case domain.StateConnectedToBackend:
		d.Effect = EffectForward
		d.ForwardText = input
	}

	return d, nil
}

func (d *Decision) say(text string) {
	d.Messages = append(d.Messages, domain.BotMessage(text))
}

func (r Rules) handoffPrefix() string {
	if r.HandoffPrefix == "" {
		return DefaultHandoffPrefix
	}
	return r.HandoffPrefix
}

// ApplyLookup resolves an identity lookup made from the existing-customer
// phone state. A record with a zip moves on to zip verification; anything
// else keeps the state so the caller can retry. The captured phone is never
// taken from the record.
func ApplyLookup(sc domain.SessionContext, rec identity.Record, err error) Decision {
	d := Decision{Next: domain.StateExistingCustomerPhone, Context: sc}
	switch {
	case err != nil:
		d.say(TextLookupFailed)
	case rec.Zip == "":
		d.say(TextPhoneNotRegistered)
	default:
		d.Next = domain.StateExistingCustomerZip
		d.Context.CapturedZip = rec.Zip
		d.say(TextAskZip)
	}
	return d
}
