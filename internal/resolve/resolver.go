package resolve

import (
	"context"
	"log/slog"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

// CommandDetector is the no-network fast path.
type CommandDetector interface {
	Detect(raw string) (domain.ActionEnvelope, bool)
}

// PolicyGuard filters classified envelopes before they reach execution.
type PolicyGuard interface {
	Apply(raw string, env domain.ActionEnvelope) domain.ActionEnvelope
}

// Resolver produces one final envelope per utterance: fast path first,
// remote classification only when the fast path passes. The guard runs on
// both branches so neither can bypass policy; the local path exists purely
// to avoid a network round-trip for common short commands.
type Resolver struct {
	detector   CommandDetector
	guard      PolicyGuard
	classifier ports.IntentClassifier
	log        *slog.Logger
}

func NewResolver(detector CommandDetector, guard PolicyGuard, classifier ports.IntentClassifier) *Resolver {
	return &Resolver{
		detector:   detector,
		guard:      guard,
		classifier: classifier,
		log:        slog.Default().With("component", "resolver"),
	}
}

// Resolve is total: every input yields an envelope, worst case dictation
// of the raw text.
func (r *Resolver) Resolve(ctx context.Context, text string, meta ports.ClassifyContext) domain.ActionEnvelope {
	if env, ok := r.detector.Detect(text); ok {
		r.log.Debug("fast path match", "action", env.ActionType)
		return r.guard.Apply(text, env)
	}

	env, err := r.classifier.Classify(ctx, text, meta)
	if err != nil {
		r.log.Warn("classifier failed, dictating raw text", "err", err, "input_len", len(text))
		env = domain.DictationFallback(text)
	}
	return r.guard.Apply(text, env)
}
