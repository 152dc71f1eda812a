package classify

import (
	"testing"

	"murmur/internal/domain"
)

func TestParseEnvelopeAliases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		action  domain.ActionType
		payload map[string]string
	}{
		{
			name:    "application alias",
			raw:     `{"action":"open_app","application":"slack"}`,
			action:  domain.ActionOpenApp,
			payload: map[string]string{"app": "slack"},
		},
		{
			name:    "search_query alias",
			raw:     `{"action":"web_search","search_query":"go generics"}`,
			action:  domain.ActionWebSearch,
			payload: map[string]string{"query": "go generics"},
		},
		{
			name:    "system_action alias",
			raw:     `{"action":"system_control","system_action":"lock"}`,
			action:  domain.ActionSystemControl,
			payload: map[string]string{"action": "lock"},
		},
		{
			name:    "link alias",
			raw:     `{"action":"open_url","link":"https://news.ycombinator.com"}`,
			action:  domain.ActionOpenURL,
			payload: map[string]string{"url": "https://news.ycombinator.com"},
		},
		{
			name:    "nested payload object",
			raw:     `{"action":"spotify_control","payload":{"action":"next"}}`,
			action:  domain.ActionSpotifyControl,
			payload: map[string]string{"action": "next"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env, err := parseEnvelope(tc.raw, "input")
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if env.ActionType != tc.action {
				t.Fatalf("unexpected action type: %s", env.ActionType)
			}
			for key, want := range tc.payload {
				if got := env.Payload[key]; got != want {
					t.Fatalf("payload[%q] = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestParseEnvelopeNoActionBecomesDictation(t *testing.T) {
	t.Parallel()

	env, err := parseEnvelope(`{"action":"no_action"}`, "original words")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if env.ActionType != domain.ActionTypeText {
		t.Fatalf("unexpected action type: %s", env.ActionType)
	}
	if env.RefinedText != "original words" {
		t.Fatalf("unexpected refined text: %q", env.RefinedText)
	}
}

func TestParseEnvelopeUnknownActionBecomesDictation(t *testing.T) {
	t.Parallel()

	env, err := parseEnvelope(`{"action":"reticulate_splines"}`, "do the thing")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if env.ActionType != domain.ActionTypeText || env.RefinedText != "do the thing" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestParseEnvelopeForcesConfirmationForDestructiveActions(t *testing.T) {
	t.Parallel()

	env, err := parseEnvelope(`{"action":"system_control","system_action":"shutdown","requires_confirmation":false}`, "")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !env.RequiresConfirmation {
		t.Fatalf("expected shutdown to require confirmation")
	}

	env, err = parseEnvelope(`{"action":"send_email","to":"sam@example.com"}`, "")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !env.RequiresConfirmation {
		t.Fatalf("expected send_email to require confirmation")
	}
}

func TestParseEnvelopeRespond(t *testing.T) {
	t.Parallel()

	env, err := parseEnvelope(`{"action":"respond","response":"It's 3pm."}`, "what time is it")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if env.ActionType != domain.ActionRespond {
		t.Fatalf("unexpected action type: %s", env.ActionType)
	}
	if env.ResponseText != "It's 3pm." {
		t.Fatalf("unexpected response text: %q", env.ResponseText)
	}
}

func TestParseEnvelopeRejectsNonJSON(t *testing.T) {
	t.Parallel()

	if _, err := parseEnvelope("definitely not json", "x"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestExtractJSONStripsFences(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"action\":\"type_text\"}\n```"
	if got := extractJSON(raw); got != `{"action":"type_text"}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}
