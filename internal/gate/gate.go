package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

var (
	ErrPendingExists   = errors.New("an action is already awaiting confirmation")
	ErrNoPendingAction = errors.New("no pending action")
)

const defaultConfirmTTL = 25 * time.Second

// Gate decides whether a resolved envelope executes immediately or is
// parked as a pending action. Exactly one pending action may exist at a
// time; submitting while one is outstanding is an error, never a silent
// overwrite, so a stale confirmation can never execute a newer action.
type Gate struct {
	history  ports.ConversationLog
	ttl      time.Duration
	onExpire func(domain.PendingAction)
	now      func() time.Time
	log      *slog.Logger

	mu      sync.Mutex
	pending *domain.PendingAction
	timer   *time.Timer
}

func NewGate(history ports.ConversationLog, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = defaultConfirmTTL
	}
	return &Gate{
		history: history,
		ttl:     ttl,
		now:     time.Now,
		log:     slog.Default().With("component", "gate"),
	}
}

// OnExpire registers the callback invoked when a pending action times out
// unanswered. Set once during wiring, before the gate is used.
func (g *Gate) OnExpire(fn func(domain.PendingAction)) {
	g.onExpire = fn
}

// Submit returns nil when the envelope may execute immediately, or the
// parked pending action when confirmation is required first.
func (g *Gate) Submit(transcript string, env domain.ActionEnvelope) (*domain.PendingAction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		return nil, ErrPendingExists
	}
	if !env.RequiresConfirmation {
		return nil, nil
	}

	pending := &domain.PendingAction{
		Envelope:   env,
		Transcript: transcript,
		Summary:    env.Summary(),
		CreatedAt:  g.now(),
	}
	g.pending = pending
	g.timer = time.AfterFunc(g.ttl, func() { g.expire(pending) })
	return pending, nil
}

// Confirm clears the pending slot and hands the action back for
// execution.
func (g *Gate) Confirm() (domain.PendingAction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return domain.PendingAction{}, ErrNoPendingAction
	}
	pending := *g.pending
	g.clearLocked()
	return pending, nil
}

// Cancel discards the pending action without executing it. Calling it
// with nothing outstanding is a no-op.
func (g *Gate) Cancel() {
	g.mu.Lock()
	pending := g.pending
	g.clearLocked()
	g.mu.Unlock()

	if pending != nil {
		g.RecordOutcome(context.Background(), pending.Transcript, pending.Envelope, false)
	}
}

// Pending returns a copy of the outstanding pending action, if any.
func (g *Gate) Pending() *domain.PendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	copied := *g.pending
	return &copied
}

func (g *Gate) expire(pending *domain.PendingAction) {
	g.mu.Lock()
	if g.pending != pending {
		g.mu.Unlock()
		return
	}
	g.clearLocked()
	g.mu.Unlock()

	g.log.Info("pending action expired unanswered", "summary", pending.Summary)
	g.RecordOutcome(context.Background(), pending.Transcript, pending.Envelope, false)
	if g.onExpire != nil {
		g.onExpire(*pending)
	}
}

func (g *Gate) clearLocked() {
	g.pending = nil
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// RecordOutcome appends the interaction to conversation history: the
// transcript as a user message and, for conversational actions, the reply
// as an assistant message. History failures are logged, never surfaced.
func (g *Gate) RecordOutcome(ctx context.Context, transcript string, env domain.ActionEnvelope, executed bool) {
	if g.history == nil {
		return
	}

	entries := []domain.ConversationEntry{{
		Role:          domain.RoleUser,
		Content:       transcript,
		Timestamp:     g.now(),
		ActionTaken:   string(env.ActionType),
		ActionSuccess: executed,
	}}
	if env.Conversational() && env.ResponseText != "" {
		entries = append(entries, domain.ConversationEntry{
			Role:          domain.RoleAssistant,
			Content:       env.ResponseText,
			Timestamp:     g.now(),
			ActionTaken:   string(env.ActionType),
			ActionSuccess: executed,
		})
	}

	for _, entry := range entries {
		if err := g.history.Append(ctx, entry); err != nil {
			g.log.Warn("failed to append conversation history", "err", err)
		}
	}
}
