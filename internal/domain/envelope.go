package domain

import "fmt"

// DictationFallback is the envelope every failure path collapses to:
// typing the raw words verbatim is always safer than dropping input or
// executing an unintended action.
func DictationFallback(text string) ActionEnvelope {
	return ActionEnvelope{ActionType: ActionTypeText, RefinedText: text}
}

// SuppressedAction builds the NoAction envelope used when a policy blocks
// a classified action.
func SuppressedAction(blocked, reason, explanation string) ActionEnvelope {
	return ActionEnvelope{
		ActionType: ActionNone,
		Payload: map[string]string{
			"blocked_action": blocked,
			"reason":         reason,
		},
		ResponseText: explanation,
	}
}

// Summary renders a short human-readable description of the envelope,
// shown in the confirmation prompt.
func (e ActionEnvelope) Summary() string {
	switch e.ActionType {
	case ActionTypeText:
		return fmt.Sprintf("Type %q", e.RefinedText)
	case ActionOpenApp:
		return fmt.Sprintf("Open %s", e.Payload["app"])
	case ActionOpenURL:
		return fmt.Sprintf("Open %s", e.Payload["url"])
	case ActionWebSearch:
		return fmt.Sprintf("Search the web for %q", e.Payload["query"])
	case ActionVolumeControl:
		return fmt.Sprintf("Volume %s", e.Payload["direction"])
	case ActionSystemControl:
		return fmt.Sprintf("System %s", e.Payload["action"])
	case ActionSpotifyControl:
		return fmt.Sprintf("Spotify %s", e.Payload["action"])
	case ActionDiscordControl:
		return fmt.Sprintf("Discord %s", e.Payload["action"])
	case ActionSendEmail:
		if to := e.Payload["to"]; to != "" {
			return fmt.Sprintf("Send an email to %s", to)
		}
		return "Send an email"
	case ActionClipboardFormat:
		return "Format the clipboard contents"
	case ActionClipboardTranslate:
		return "Translate the clipboard contents"
	case ActionClipboardSummarize:
		return "Summarize the clipboard contents"
	case ActionRespond, ActionClarify:
		return e.ResponseText
	case ActionNone:
		return "Do nothing"
	}
	return string(e.ActionType)
}
