package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"
)

const (
	startToneHz  = 880
	stopToneHz   = 620
	toneDuration = 90 * time.Millisecond
	sampleRate   = beep.SampleRate(44100)
)

// Earcons plays short sine cues when recording starts and stops.
// Playback is best effort: if the speaker cannot initialize, cues are
// silently disabled.
type Earcons struct {
	once     sync.Once
	disabled bool
	log      *slog.Logger
}

func NewEarcons() *Earcons {
	return &Earcons{log: slog.Default().With("component", "notify")}
}

func (e *Earcons) ListenStart() { e.play(startToneHz) }

func (e *Earcons) ListenStop() { e.play(stopToneHz) }

func (e *Earcons) play(freq int) {
	e.once.Do(func() {
		if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
			e.log.Warn("audio cues disabled", "err", err)
			e.disabled = true
		}
	})
	if e.disabled {
		return
	}

	tone, err := generators.SinTone(sampleRate, freq)
	if err != nil {
		e.log.Warn("failed to generate cue tone", "err", err)
		return
	}
	speaker.Play(beep.Take(sampleRate.N(toneDuration), tone))
}

// Silent is a no-op notifier for headless runs and tests.
type Silent struct{}

func (Silent) ListenStart() {}

func (Silent) ListenStop() {}
