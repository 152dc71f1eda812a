package classify

import (
	"fmt"
	"strings"

	"murmur/internal/ports"
)

// BuildSystemPrompt renders the action schema and the session context
// into the single instruction document sent to the completion service.
func BuildSystemPrompt(meta ports.ClassifyContext) string {
	var b strings.Builder

	b.WriteString("You are the intent classifier for a push-to-talk desktop assistant.\n")
	b.WriteString("Decide whether the utterance is dictation or a command, then reply\n")
	b.WriteString("with ONE JSON object and nothing else. No markdown, no explanations.\n\n")

	b.WriteString("Response shape:\n")
	b.WriteString(`{"action": "<action key>", "requires_confirmation": <bool>, ...payload fields}`)
	b.WriteString("\n\nActions:\n")
	for _, spec := range promptActions {
		fmt.Fprintf(&b, "- %s: %s Payload: %s\n", spec.Key, spec.Description, spec.Payload)
		for _, trigger := range spec.Triggers {
			fmt.Fprintf(&b, "    e.g. %q\n", trigger)
		}
	}

	b.WriteString("\nIf the user is asking you a question, answer it with\n")
	b.WriteString(`{"action": "respond", "response": "<short answer>"}; use "clarify"`)
	b.WriteString("\nwhen you need more information before acting.\n")
	b.WriteString("When in doubt, prefer type_text: typing the words is always safe.\n")
	b.WriteString("Set requires_confirmation to true for anything destructive or\n")
	b.WriteString("irreversible (shutdown, restart, sending email).\n")

	fmt.Fprintf(&b, "\nContext: os=%s", valueOr(meta.OS, "unknown"))
	fmt.Fprintf(&b, ", active_app=%s", valueOr(meta.ActiveApp, "unknown"))
	fmt.Fprintf(&b, ", mode=%s", valueOr(meta.Mode, "default"))
	if meta.DictationStyle != "" {
		fmt.Fprintf(&b, ", dictation_style=%s", meta.DictationStyle)
	}
	b.WriteString("\n")

	if len(meta.CustomCommands) > 0 {
		b.WriteString("\nUser-defined commands available on this machine:\n")
		for _, cmd := range meta.CustomCommands {
			fmt.Fprintf(&b, "%q -> command %q (id: %s)\n", cmd.Trigger, cmd.Name, cmd.ID)
		}
	}

	if len(meta.History) > 0 {
		b.WriteString("\nRecent conversation, oldest first:\n")
		history := meta.History
		if len(history) > promptHistoryLimit {
			history = history[len(history)-promptHistoryLimit:]
		}
		for _, entry := range history {
			fmt.Fprintf(&b, "%s: %s\n", entry.Role, entry.Content)
		}
	}

	return b.String()
}

// promptHistoryLimit bounds how much conversation context rides along in
// the system prompt.
const promptHistoryLimit = 10

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
