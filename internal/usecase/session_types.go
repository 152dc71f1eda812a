package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"murmur/internal/ports"
)

type activeSession struct {
	id     uint64
	ctx    context.Context
	cancel func()

	audio  ports.AudioSession
	stream ports.StreamingSession

	// stopLevel tears down the audio-level poller; it is invoked on
	// every exit from the listening states, before processing begins.
	stopLevel func()

	handsFree bool
	// abandoned marks a session whose result must be discarded: the user
	// canceled while resolution was already in flight. The request itself
	// is not abortable, see Cancel.
	abandoned atomic.Bool
	// stopping is claimed by the one Stop call allowed to finalize the
	// session.
	stopping atomic.Bool

	buffer     *utteranceBuffer
	eventsDone chan struct{}
	audioDone  chan struct{}
}

// pollAudioLevel forwards the capture session's RMS level to the UI on a
// fixed cadence. It exits with the session context, so every exit path
// from listening tears the ticker down.
func pollAudioLevel(ctx context.Context, session ports.AudioSession, interval time.Duration, events ports.EventSink) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			events.AudioLevel(0)
			return
		case <-ticker.C:
			events.AudioLevel(session.Level())
		}
	}
}
