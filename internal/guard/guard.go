package guard

import (
	"murmur/internal/detect"
	"murmur/internal/domain"
)

// Rule rewrites an envelope that must not execute as classified. It
// returns the replacement and true when it fires.
type Rule interface {
	Apply(norm string, env domain.ActionEnvelope) (domain.ActionEnvelope, bool)
}

// Guard is the policy filter between classification and execution. It
// runs on both the local and the remote path, so neither can bypass it.
type Guard struct {
	rules []Rule
}

func NewGuard() *Guard {
	return &Guard{rules: []Rule{farewellRule{}}}
}

// NewGuardWithRules allows policy extension without guard changes.
func NewGuardWithRules(rules ...Rule) *Guard {
	return &Guard{rules: rules}
}

// Apply filters the envelope against every rule in order. The first rule
// that fires wins.
func (g *Guard) Apply(raw string, env domain.ActionEnvelope) domain.ActionEnvelope {
	norm := detect.Normalize(raw)
	for _, rule := range g.rules {
		if replaced, ok := rule.Apply(norm, env); ok {
			return replaced
		}
	}
	return env
}

// Short farewells are acoustically close to sleep/shutdown phrases in
// downstream transcription and must never silently power off a machine.
var farewells = map[string]struct{}{
	"bye":               {},
	"goodbye":           {},
	"good bye":          {},
	"see you":           {},
	"see ya":            {},
	"talk to you later": {},
	"catch you later":   {},
	"ok bye":            {},
	"okay bye":          {},
	"thanks bye":        {},
}

var powerActions = map[string]struct{}{
	"shutdown": {},
	"restart":  {},
	"sleep":    {},
}

type farewellRule struct{}

func (farewellRule) Apply(norm string, env domain.ActionEnvelope) (domain.ActionEnvelope, bool) {
	if env.ActionType != domain.ActionSystemControl {
		return env, false
	}
	if _, ok := powerActions[env.Payload["action"]]; !ok {
		return env, false
	}
	if _, ok := farewells[norm]; !ok {
		return env, false
	}

	return domain.SuppressedAction(
		"power_control",
		"farewell_phrase",
		blockedExplanation(env.Payload["action"]),
	), true
}

func blockedExplanation(action string) string {
	switch action {
	case "shutdown":
		return "That sounded like a goodbye, so I didn't shut the computer down."
	case "restart":
		return "That sounded like a goodbye, so I didn't restart the computer."
	}
	return "That sounded like a goodbye, so I didn't put the computer to sleep."
}
