package ports

import (
	"context"
	"io"

	"murmur/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session. Level reports the most recent
// RMS input level in the 0.0-1.0 range for UI feedback only.
type AudioSession interface {
	io.ReadCloser
	Stop() error
	Level() float64
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// ClassifyContext carries the situational metadata embedded into the
// classifier prompt.
type ClassifyContext struct {
	OS             string
	ActiveApp      string
	Mode           string
	DictationStyle string
	History        []domain.ConversationEntry
	CustomCommands []domain.CustomCommand
}

// IntentClassifier turns an utterance into an action envelope using an
// external completion service. Implementations fail open to dictation,
// so a returned error means the fallback itself could not be built.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, meta ClassifyContext) (domain.ActionEnvelope, error)
}

// IntentResolver produces one final envelope for an utterance. It is
// total: every input yields an envelope.
type IntentResolver interface {
	Resolve(ctx context.Context, text string, meta ClassifyContext) domain.ActionEnvelope
}

// ExecutionGate decides whether an envelope executes immediately or is
// parked awaiting confirmation.
type ExecutionGate interface {
	Submit(transcript string, env domain.ActionEnvelope) (*domain.PendingAction, error)
	Confirm() (domain.PendingAction, error)
	Cancel()
	Pending() *domain.PendingAction
	RecordOutcome(ctx context.Context, transcript string, env domain.ActionEnvelope, executed bool)
}

// ActionExecutor performs the OS-level effect of an envelope.
type ActionExecutor interface {
	Execute(ctx context.Context, env domain.ActionEnvelope) domain.ExecutionResult
}

// SpeechSynthesizer speaks a reply out loud.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, text string) error
}

// ConversationLog is an append-only sink for resolved interactions.
type ConversationLog interface {
	Append(ctx context.Context, entry domain.ConversationEntry) error
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Notifier plays audible cues around the recording lifecycle.
type Notifier interface {
	ListenStart()
	ListenStop()
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	AudioLevel(level float64)
	ActionResolved(result domain.ProcessResult)
	ConfirmationRequested(pending domain.PendingAction)
	SessionError(code domain.ErrorCode, detail string)
}
