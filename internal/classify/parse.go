package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"murmur/internal/domain"
)

// parseEnvelope converts the classifier's JSON reply into an envelope.
// input is the original utterance, used as the dictation fallback when the
// model omits refined text.
func parseEnvelope(raw, input string) (domain.ActionEnvelope, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &fields); err != nil {
		return domain.ActionEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	key := strings.ToLower(strings.TrimSpace(firstString(fields, "action", "action_type")))
	actionType, ok := actionKeyMap[key]
	if !ok {
		actionType = domain.ActionTypeText
	}

	env := domain.ActionEnvelope{
		ActionType:           actionType,
		ResponseText:         firstString(fields, "response", "response_text", "reply"),
		RequiresConfirmation: boolField(fields, "requires_confirmation"),
		Payload:              payloadObject(fields),
	}

	switch actionType {
	case domain.ActionTypeText:
		env.Payload = nil
		env.RefinedText = firstString(fields, "refined_text", "text")
		if env.RefinedText == "" {
			env.RefinedText = input
		}
	case domain.ActionOpenApp:
		setPayload(&env, "app", firstString(fields, "app", "application"))
	case domain.ActionOpenURL:
		setPayload(&env, "url", firstString(fields, "url", "link"))
	case domain.ActionWebSearch:
		setPayload(&env, "query", firstString(fields, "query", "search_query"))
	case domain.ActionVolumeControl:
		setPayload(&env, "direction", firstString(fields, "direction", "volume_direction"))
	case domain.ActionSystemControl:
		setPayload(&env, "action", firstString(fields, "system_action", "action_type"))
		switch env.Payload["action"] {
		case "shutdown", "restart":
			env.RequiresConfirmation = true
		}
	case domain.ActionSpotifyControl, domain.ActionDiscordControl:
		setPayload(&env, "action", firstString(fields, "spotify_action", "media_action"))
	case domain.ActionSendEmail:
		setPayload(&env, "to", firstString(fields, "to", "recipient"))
		setPayload(&env, "subject", firstString(fields, "subject"))
		setPayload(&env, "body", firstString(fields, "body", "content"))
		env.RequiresConfirmation = true
	case domain.ActionRespond, domain.ActionClarify:
		if env.ResponseText == "" {
			env.ResponseText = firstString(fields, "text")
		}
	}

	return env, nil
}

// extractJSON strips markdown fences and surrounding prose some models
// wrap around the object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}

// payloadObject copies a nested "payload" object when the model chose to
// nest fields instead of flattening them.
func payloadObject(fields map[string]any) map[string]string {
	nested, ok := fields["payload"].(map[string]any)
	if !ok {
		return nil
	}
	payload := make(map[string]string, len(nested))
	for key, value := range nested {
		if s, ok := value.(string); ok {
			payload[key] = s
		}
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

func setPayload(env *domain.ActionEnvelope, key, value string) {
	if value == "" {
		return
	}
	if env.Payload == nil {
		env.Payload = map[string]string{}
	}
	env.Payload[key] = value
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := fields[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func boolField(fields map[string]any, key string) bool {
	switch value := fields[key].(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(strings.TrimSpace(value), "true")
	}
	return false
}
