package detect

import (
	"regexp"
	"strings"

	"murmur/internal/domain"
)

// Local detection only handles short imperative phrases; anything longer
// falls through to the remote classifier.
const maxCommandWords = 6

// matcher inspects a normalized utterance and either claims it or passes.
type matcher func(norm string) (domain.ActionEnvelope, bool)

// Detector is the no-network fast path for a fixed set of simple
// commands. It is a pure function over the phrase tables below:
// deterministic, no I/O.
type Detector struct {
	matchers []matcher
}

func NewDetector() *Detector {
	return &Detector{
		matchers: []matcher{
			matchVolume,
			matchMedia,
			matchLock,
			matchScreenshot,
			matchSleep,
			matchOpen,
			matchSearch,
		},
	}
}

// Detect returns the envelope for a recognized command phrase, or false
// when the utterance must go to the fallback classifier.
func (d *Detector) Detect(raw string) (domain.ActionEnvelope, bool) {
	norm := Normalize(raw)
	if norm == "" {
		return domain.ActionEnvelope{}, false
	}
	if len(strings.Fields(norm)) > maxCommandWords {
		return domain.ActionEnvelope{}, false
	}

	for _, match := range d.matchers {
		if env, ok := match(norm); ok {
			return env, true
		}
	}
	return domain.ActionEnvelope{}, false
}

// Normalize lowers, trims, strips a single trailing punctuation mark,
// drops comma-space pairs and collapses whitespace.
func Normalize(raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text != "" {
		switch text[len(text)-1] {
		case '.', ',', '!', '?':
			text = text[:len(text)-1]
		}
	}
	text = strings.ReplaceAll(text, ", ", " ")
	return strings.Join(strings.Fields(text), " ")
}

func matchVolume(norm string) (domain.ActionEnvelope, bool) {
	if !strings.Contains(norm, "volume") && norm != "mute" && norm != "unmute" {
		return domain.ActionEnvelope{}, false
	}

	direction := "mute"
	switch {
	case strings.Contains(norm, "up") || strings.Contains(norm, "louder"):
		direction = "up"
	case strings.Contains(norm, "down") || strings.Contains(norm, "quieter"):
		direction = "down"
	}

	return domain.ActionEnvelope{
		ActionType: domain.ActionVolumeControl,
		Payload:    map[string]string{"direction": direction},
	}, true
}

var mediaPhrases = map[string]string{
	"play":          "play_pause",
	"pause":         "play_pause",
	"resume":        "play_pause",
	"next":          "next",
	"skip":          "next",
	"next song":     "next",
	"previous":      "previous",
	"previous song": "previous",
}

func matchMedia(norm string) (domain.ActionEnvelope, bool) {
	action, ok := mediaPhrases[norm]
	if !ok {
		return domain.ActionEnvelope{}, false
	}
	return domain.ActionEnvelope{
		ActionType: domain.ActionSpotifyControl,
		Payload:    map[string]string{"action": action},
	}, true
}

func matchLock(norm string) (domain.ActionEnvelope, bool) {
	locking := norm == "lock" ||
		(strings.Contains(norm, "lock") &&
			(strings.Contains(norm, "computer") || strings.Contains(norm, "screen")))
	if !locking {
		return domain.ActionEnvelope{}, false
	}
	return domain.ActionEnvelope{
		ActionType: domain.ActionSystemControl,
		Payload:    map[string]string{"action": "lock"},
	}, true
}

func matchScreenshot(norm string) (domain.ActionEnvelope, bool) {
	if !strings.Contains(norm, "screenshot") {
		return domain.ActionEnvelope{}, false
	}
	return domain.ActionEnvelope{
		ActionType: domain.ActionSystemControl,
		Payload:    map[string]string{"action": "screenshot"},
	}, true
}

var (
	sleepPhrases = []string{"sleep", "put computer to sleep", "put pc to sleep"}
	negations    = []string{"don't", "dont", "do not", "not ", "never", "cancel"}
)

func matchSleep(norm string) (domain.ActionEnvelope, bool) {
	matched := false
	for _, phrase := range sleepPhrases {
		if norm == phrase || strings.HasPrefix(norm, phrase+" ") {
			matched = true
			break
		}
	}
	if !matched {
		return domain.ActionEnvelope{}, false
	}

	// "don't go to sleep" and friends must never suspend the machine.
	for _, negation := range negations {
		if strings.Contains(norm, negation) {
			return domain.ActionEnvelope{}, false
		}
	}

	return domain.ActionEnvelope{
		ActionType: domain.ActionSystemControl,
		Payload:    map[string]string{"action": "sleep"},
	}, true
}

var (
	openRe   = regexp.MustCompile(`^(open|launch|start)\s+(.+)$`)
	searchRe = regexp.MustCompile(`^(search|google|look up)\s+(for\s+)?(.+)$`)
)

// webApps maps well-known spoken names onto URLs so "open youtube" does
// not try to launch a local binary.
var webApps = map[string]string{
	"youtube": "https://www.youtube.com",
	"gmail":   "https://mail.google.com",
	"twitter": "https://twitter.com",
	"github":  "https://github.com",
	"netflix": "https://www.netflix.com",
}

func matchOpen(norm string) (domain.ActionEnvelope, bool) {
	parts := openRe.FindStringSubmatch(norm)
	if parts == nil {
		return domain.ActionEnvelope{}, false
	}

	name := strings.TrimSpace(parts[2])
	if url, ok := webApps[name]; ok {
		return domain.ActionEnvelope{
			ActionType: domain.ActionOpenURL,
			Payload:    map[string]string{"url": url},
		}, true
	}
	return domain.ActionEnvelope{
		ActionType: domain.ActionOpenApp,
		Payload:    map[string]string{"app": name},
	}, true
}

func matchSearch(norm string) (domain.ActionEnvelope, bool) {
	parts := searchRe.FindStringSubmatch(norm)
	if parts == nil {
		return domain.ActionEnvelope{}, false
	}
	return domain.ActionEnvelope{
		ActionType: domain.ActionWebSearch,
		Payload:    map[string]string{"query": strings.TrimSpace(parts[3])},
	}, true
}
