package lex

import (
	"encoding/json"

	"github.com/soyeahso/sharkchat/internal/domain"
)

// translatePayload renders a CustomPayload message. The payload is a JSON
// object of the form {"templateType": "...", "data": {"content": "...",
// "elements": [{"title": "..."}]}}. An "Agent" template becomes the fixed
// escalation prompt whatever else the payload carries.
func translatePayload(raw string) domain.Message {
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload == nil {
		return domain.BotMessage(TextParseFailure)
	}

	obj, _ := payload.(map[string]any)
	templateType, _ := obj["templateType"].(string)
	if templateType == domain.ActionCallAgent {
		return domain.EscalationPrompt()
	}

	data := obj["data"]
	if templateType == "" || !truthy(data) {
		return domain.BotPrompt(TextNoPayload, &domain.Action{Type: domain.ActionQuickReply})
	}

	dataObj, _ := data.(map[string]any)
	content := dataObj["content"]
	if !truthy(content) {
		content = TextNoContent
	}
	text, ok := content.(string)
	if !ok {
		return domain.BotMessage(TextInvalidFormat)
	}

	action := &domain.Action{Type: templateType}
	elements, _ := dataObj["elements"].([]any)
	for _, e := range elements {
		el, _ := e.(map[string]any)
		if title, ok := el["title"].(string); ok && title != "" {
			action.Options = append(action.Options, domain.Option{Label: title})
		}
	}
	return domain.BotPrompt(text, action)
}

// truthy follows JSON-value truthiness: null, false, 0 and "" are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
