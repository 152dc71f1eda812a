package usecase

import (
	"strings"
	"sync"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

// utteranceBuffer accumulates streaming transcript events into the single
// utterance handed to intent resolution. Confidence and duration are
// carried along as advisory metadata only.
type utteranceBuffer struct {
	mu         sync.Mutex
	finals     []string
	lastSpoken string
	confidence float64
	durationMs int64
	samples    int
}

func newUtteranceBuffer() *utteranceBuffer {
	return &utteranceBuffer{}
}

func (b *utteranceBuffer) Add(event domain.TranscriptEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}
	b.lastSpoken = text
	if event.Kind == domain.TranscriptKindFinal {
		b.finals = append(b.finals, text)
		b.durationMs += event.DurationMs
		if event.Confidence > 0 {
			b.confidence += event.Confidence
			b.samples++
		}
	}
}

// Text joins the final segments, falling back to the last partial when
// the provider never finalized anything before the stream closed.
func (b *utteranceBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(b.finals, " "))
	if joined == "" {
		return b.lastSpoken
	}
	if b.lastSpoken == "" || strings.HasSuffix(joined, b.lastSpoken) {
		return joined
	}
	if len(b.lastSpoken) > len(joined) {
		return strings.TrimSpace(joined + " " + b.lastSpoken)
	}
	return joined
}

// Confidence averages the per-segment confidence the provider reported,
// zero when it reported none.
func (b *utteranceBuffer) Confidence() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.samples == 0 {
		return 0
	}
	return b.confidence / float64(b.samples)
}

func (b *utteranceBuffer) DurationMs() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.durationMs
}

func consumeTranscriptEvents(
	session ports.StreamingSession,
	buffer *utteranceBuffer,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}
		buffer.Add(event)
		if event.Kind == domain.TranscriptKindPartial {
			events.PartialTranscript(text)
		}
	}
}
