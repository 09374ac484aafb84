package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/identity"
)

func ctxWith(zip, phone, name string) domain.SessionContext {
	return domain.SessionContext{SessionID: "session-test", CapturedZip: zip, CapturedPhone: phone, CapturedName: name}
}

func texts(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestTransitionEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		_, err := Transition(domain.StateWelcome, ctxWith("", "", ""), in)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		state   domain.State
		sc      domain.SessionContext
		input   string
		next    domain.State
		texts   []string
		effect  Effect
		wantCtx domain.SessionContext
	}{
		{"welcome yes", domain.StateWelcome, ctxWith("", "", ""), "yes", domain.StateExistingCustomerPhone, []string{TextAskPhone}, EffectNone, ctxWith("", "", "")},
		{"welcome YES trimmed", domain.StateWelcome, ctxWith("", "", ""), "  YES ", domain.StateExistingCustomerPhone, []string{TextAskPhone}, EffectNone, ctxWith("", "", "")},
		{"welcome no", domain.StateWelcome, ctxWith("", "", ""), "No", domain.StateNewCustomerName, []string{TextAskName}, EffectNone, ctxWith("", "", "")},
		{"welcome other", domain.StateWelcome, ctxWith("", "", ""), "maybe", domain.StateWelcome, []string{TextWelcomeRetry}, EffectNone, ctxWith("", "", "")},
		{"existing phone valid", domain.StateExistingCustomerPhone, ctxWith("", "", ""), "5551234567", domain.StateExistingCustomerPhone, nil, EffectLookup, ctxWith("", "5551234567", "")},
		{"existing phone short", domain.StateExistingCustomerPhone, ctxWith("", "", ""), "555123456", domain.StateExistingCustomerPhone, []string{TextInvalidExistingPhone}, EffectNone, ctxWith("", "", "")},
		{"existing phone dashes", domain.StateExistingCustomerPhone, ctxWith("", "", ""), "555-123-4567", domain.StateExistingCustomerPhone, []string{TextInvalidExistingPhone}, EffectNone, ctxWith("", "", "")},
		{"zip match", domain.StateExistingCustomerZip, ctxWith("90210", "5551234567", ""), "90210", domain.StateConnectedToBackend, nil, EffectForward, ctxWith("90210", "5551234567", "")},
		{"zip mismatch", domain.StateExistingCustomerZip, ctxWith("90210", "5551234567", ""), "90211", domain.StateExistingCustomerZip, []string{TextZipMismatch}, EffectNone, ctxWith("90210", "5551234567", "")},
		{"zip leading zero strict", domain.StateExistingCustomerZip, ctxWith("02134", "5551234567", ""), "2134", domain.StateExistingCustomerZip, []string{TextZipMismatch}, EffectNone, ctxWith("02134", "5551234567", "")},
		{"new name", domain.StateNewCustomerName, ctxWith("", "", ""), "Ana", domain.StateNewCustomerPhone, []string{TextAskPhone}, EffectNone, ctxWith("", "", "Ana")},
		{"new phone valid", domain.StateNewCustomerPhone, ctxWith("", "", "Ana"), "5559876543", domain.StateNewCustomerPhone, nil, EffectEscalate, ctxWith("", "5559876543", "Ana")},
		{"new phone invalid", domain.StateNewCustomerPhone, ctxWith("", "", "Ana"), "call me", domain.StateNewCustomerPhone, []string{TextInvalidNewPhone}, EffectNone, ctxWith("", "", "Ana")},
		{"backend text", domain.StateConnectedToBackend, ctxWith("90210", "5551234567", ""), "What is my balance?", domain.StateConnectedToBackend, nil, EffectForward, ctxWith("90210", "5551234567", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Transition(tt.state, tt.sc, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.next, d.Next)
			assert.Equal(t, tt.effect, d.Effect)
			assert.Equal(t, tt.wantCtx, d.Context)
			if tt.texts == nil {
				assert.Empty(t, d.Messages)
			} else {
				assert.Equal(t, tt.texts, texts(d.Messages))
			}
		})
	}
}

func TestTransitionInvalidInputKeepsStateWithOneMessage(t *testing.T) {
	invalid := map[domain.State]string{
		domain.StateWelcome:               "hello",
		domain.StateExistingCustomerPhone: "12345",
		domain.StateExistingCustomerZip:   "00000",
		domain.StateNewCustomerPhone:      "abcdefghij",
	}
	for state, in := range invalid {
		d, err := Transition(state, ctxWith("90210", "", ""), in)
		require.NoError(t, err)
		assert.Equal(t, state, d.Next, state)
		assert.Len(t, d.Messages, 1, state)
		assert.Equal(t, EffectNone, d.Effect, state)
	}
}

func TestTransitionWelcomeRetryOffersQuickReply(t *testing.T) {
	d, err := Transition(domain.StateWelcome, ctxWith("", "", ""), "what?")
	require.NoError(t, err)
	require.Len(t, d.Messages, 1)
	assert.Equal(t, []string{AnswerYes, AnswerNo}, d.Messages[0].Action.Labels())
}

func TestTransitionLookupNumberIsE164(t *testing.T) {
	d, err := Transition(domain.StateExistingCustomerPhone, ctxWith("", "", ""), " 5551234567 ")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", d.LookupPhone)
}

func TestTransitionHandoffText(t *testing.T) {
	sc := ctxWith("90210", "5551234567", "")

	d, err := Transition(domain.StateExistingCustomerZip, sc, "90210")
	require.NoError(t, err)
	assert.Equal(t, "lrzmsinu 5551234567", d.ForwardText)

	d, err = Rules{HandoffPrefix: "verified"}.Transition(domain.StateExistingCustomerZip, sc, "90210")
	require.NoError(t, err)
	assert.Equal(t, "verified 5551234567", d.ForwardText)
}

func TestTransitionBackendForwardsVerbatim(t *testing.T) {
	d, err := Transition(domain.StateConnectedToBackend, ctxWith("", "", ""), "  yes  ")
	require.NoError(t, err)
	assert.Equal(t, "yes", d.ForwardText)
}

func TestTransitionGlobalOverrides(t *testing.T) {
	for _, state := range domain.AllStates {
		d, err := Transition(state, ctxWith("", "", ""), domain.PhraseEscalate)
		require.NoError(t, err)
		assert.Equal(t, EffectEscalate, d.Effect, state)
		assert.Equal(t, state, d.Next, state)
		assert.Empty(t, d.Messages, state)

		d, err = Transition(state, ctxWith("", "", ""), " "+domain.PhraseDecline+" ")
		require.NoError(t, err)
		assert.Equal(t, EffectClose, d.Effect, state)
		assert.Equal(t, state, d.Next, state)
		assert.Equal(t, []string{TextFarewell}, texts(d.Messages), state)
	}
}

func TestApplyLookup(t *testing.T) {
	sc := ctxWith("", "5551234567", "")

	d := ApplyLookup(sc, identity.Record{Zip: "90210", Phone: "+19998887777"}, nil)
	assert.Equal(t, domain.StateExistingCustomerZip, d.Next)
	assert.Equal(t, "90210", d.Context.CapturedZip)
	assert.Equal(t, "5551234567", d.Context.CapturedPhone)
	assert.Equal(t, []string{TextAskZip}, texts(d.Messages))

	d = ApplyLookup(sc, identity.Record{Phone: "+15551234567"}, nil)
	assert.Equal(t, domain.StateExistingCustomerPhone, d.Next)
	assert.Equal(t, []string{TextPhoneNotRegistered}, texts(d.Messages))

	d = ApplyLookup(sc, identity.Record{}, errors.New("timeout"))
	assert.Equal(t, domain.StateExistingCustomerPhone, d.Next)
	assert.Equal(t, sc, d.Context)
	assert.Equal(t, []string{TextLookupFailed}, texts(d.Messages))
}

func TestEffectString(t *testing.T) {
	assert.Equal(t, "lookup", EffectLookup.String())
	assert.Equal(t, "none", Effect(42).String())
}
