package classify

import "murmur/internal/domain"

// actionSpec is one row of the typed action schema rendered into the
// classifier prompt. Keeping the schema and the prompt in one table means
// they cannot drift apart.
type actionSpec struct {
	Key         string
	Description string
	Payload     string
	Triggers    []string
}

var promptActions = []actionSpec{
	{
		Key:         "type_text",
		Description: "Dictation. Clean up the user's words (casing, punctuation) and type them verbatim.",
		Payload:     `{"refined_text": "<cleaned text>"}`,
		Triggers:    []string{"note that the meeting moved to friday", "dear team, thanks for the update"},
	},
	{
		Key:         "open_app",
		Description: "Open a desktop application by name.",
		Payload:     `{"app": "<application name>"}`,
		Triggers:    []string{"open spotify", "can you launch the terminal"},
	},
	{
		Key:         "open_url",
		Description: "Open a website in the default browser.",
		Payload:     `{"url": "<full url>"}`,
		Triggers:    []string{"open youtube", "take me to hacker news"},
	},
	{
		Key:         "web_search",
		Description: "Search the web for a query.",
		Payload:     `{"query": "<search terms>"}`,
		Triggers:    []string{"search for best coffee near me", "google the weather tomorrow"},
	},
	{
		Key:         "volume_control",
		Description: "Change the system volume.",
		Payload:     `{"direction": "up" | "down" | "mute"}`,
		Triggers:    []string{"turn it up a bit", "mute the sound"},
	},
	{
		Key:         "system_control",
		Description: "Control the machine itself.",
		Payload:     `{"system_action": "lock" | "screenshot" | "sleep" | "shutdown" | "restart"}`,
		Triggers:    []string{"lock my screen", "take a screenshot"},
	},
	{
		Key:         "spotify_control",
		Description: "Control media playback.",
		Payload:     `{"action": "play_pause" | "next" | "previous"}`,
		Triggers:    []string{"skip this song", "pause the music"},
	},
}

// actionKeyMap converts classifier output keys into envelope action
// types. Unrecognized keys default to dictation, and no_action from the
// model is treated the same way: only local policy produces NoAction.
var actionKeyMap = map[string]domain.ActionType{
	"type_text":           domain.ActionTypeText,
	"open_app":            domain.ActionOpenApp,
	"open_url":            domain.ActionOpenURL,
	"web_search":          domain.ActionWebSearch,
	"volume_control":      domain.ActionVolumeControl,
	"system_control":      domain.ActionSystemControl,
	"spotify_control":     domain.ActionSpotifyControl,
	"no_action":           domain.ActionTypeText,
	"respond":             domain.ActionRespond,
	"clarify":             domain.ActionClarify,
	"discord_control":     domain.ActionDiscordControl,
	"send_email":          domain.ActionSendEmail,
	"clipboard_format":    domain.ActionClipboardFormat,
	"clipboard_translate": domain.ActionClipboardTranslate,
	"clipboard_summarize": domain.ActionClipboardSummarize,
}
