package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

var (
	ErrNoActiveSession      = errors.New("no active recording session")
	ErrAwaitingConfirmation = errors.New("an action is awaiting confirmation")
)

const (
	timerHide          = "hide"
	streamFlushTimeout = 4 * time.Second
)

// Config controls recording, resolution and display behavior.
type Config struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	Classify  ports.ClassifyContext

	ChunkSize      int
	StreamingGrace time.Duration

	ProcessingTimeout time.Duration
	LevelInterval     time.Duration

	SuccessDisplay        time.Duration
	ConversationDisplay   time.Duration
	ExecutionErrorDisplay time.Duration
	FailureDisplay        time.Duration
}

func (c *Config) applyDefaults() {
	if c.ChunkSize < 256 {
		c.ChunkSize = 4096
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 15 * time.Second
	}
	if c.LevelInterval <= 0 {
		c.LevelInterval = 50 * time.Millisecond
	}
	if c.SuccessDisplay <= 0 {
		c.SuccessDisplay = 600 * time.Millisecond
	}
	if c.ConversationDisplay <= 0 {
		c.ConversationDisplay = 4500 * time.Millisecond
	}
	if c.ExecutionErrorDisplay <= 0 {
		c.ExecutionErrorDisplay = 2800 * time.Millisecond
	}
	if c.FailureDisplay <= 0 {
		c.FailureDisplay = 800 * time.Millisecond
	}
}

// VoiceSessionController drives one push-to-talk interaction end to end:
// record, transcribe, resolve, gate, execute, render. A single logical
// session exists per window; starting while active and stopping while
// idle are both no-ops.
type VoiceSessionController struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	resolver ports.IntentResolver
	gate     ports.ExecutionGate
	executor ports.ActionExecutor
	speech   ports.SpeechSynthesizer
	notifier ports.Notifier
	events   ports.EventSink
	cfg      Config
	log      *slog.Logger

	timers     *timerArena
	sessionSeq atomic.Uint64

	mu      sync.Mutex
	state   domain.SessionState
	current *activeSession
}

func NewVoiceSessionController(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	resolver ports.IntentResolver,
	executionGate ports.ExecutionGate,
	executor ports.ActionExecutor,
	speech ports.SpeechSynthesizer,
	notifier ports.Notifier,
	events ports.EventSink,
	cfg Config,
) *VoiceSessionController {
	cfg.applyDefaults()
	return &VoiceSessionController{
		audio:    audio,
		provider: provider,
		resolver: resolver,
		gate:     executionGate,
		executor: executor,
		speech:   speech,
		notifier: notifier,
		events:   events,
		cfg:      cfg,
		log:      slog.Default().With("component", "controller"),
		timers:   newTimerArena(),
		state:    domain.SessionStateIdle,
	}
}

// Start begins a capture session. handsFree marks the toggle variant that
// records until explicitly stopped instead of until hotkey release.
func (c *VoiceSessionController) Start(ctx context.Context, handsFree bool) error {
	if c.gate.Pending() != nil {
		return ErrAwaitingConfirmation
	}

	c.mu.Lock()
	if c.current != nil || c.state == domain.SessionStateProcessing {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		return err
	}

	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return err
	}

	levelCtx, stopLevel := context.WithCancel(sessionCtx)
	active := &activeSession{
		id:         c.sessionSeq.Add(1),
		ctx:        sessionCtx,
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		stopLevel:  stopLevel,
		handsFree:  handsFree,
		buffer:     newUtteranceBuffer(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}

	c.mu.Lock()
	if c.current != nil {
		// Lost the race against a concurrent Start; keep the winner.
		c.mu.Unlock()
		cancel()
		_ = audioSession.Stop()
		_ = stream.Close()
		return nil
	}
	c.current = active
	c.mu.Unlock()

	go consumeTranscriptEvents(active.stream, active.buffer, c.events, active.eventsDone)
	go pumpAudioChunks(active.audio, active.stream, c.cfg.ChunkSize, c.events, active.audioDone)
	go pollAudioLevel(levelCtx, active.audio, c.cfg.LevelInterval, c.events)
	if c.notifier != nil {
		go c.notifier.ListenStart()
	}

	state, reason := domain.SessionStateListening, domain.SessionReasonRecordingStarted
	if handsFree {
		state, reason = domain.SessionStateHandsFree, domain.SessionReasonHandsFreeStarted
	}
	c.setState(state, reason)
	return nil
}

// Stop ends the active capture, resolves the utterance and either
// executes it or parks it for confirmation.
func (c *VoiceSessionController) Stop(ctx context.Context) (domain.ProcessResult, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.ProcessResult{}, err
	}

	started := time.Now()
	active.stopLevel()
	c.setState(domain.SessionStateProcessing, domain.SessionReasonTranscribing)
	if c.notifier != nil {
		go c.notifier.ListenStop()
	}

	if err := active.audio.Stop(); err != nil {
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, streamFlushTimeout)
	<-active.eventsDone
	<-active.audioDone

	raw := active.buffer.Text()
	if raw == "" && streamErr != nil {
		c.events.SessionError(domain.ErrorCodeTranscription, streamErr.Error())
		c.finishSession(active, domain.SessionStateError, domain.SessionReasonTranscriptionFailed)
		c.scheduleReturnToIdle(c.cfg.FailureDisplay)
		return domain.ProcessResult{}, streamErr
	}
	if raw == "" {
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonNoTranscript)
		return domain.ProcessResult{}, errors.New("no transcript captured")
	}

	resolveCtx, cancel := context.WithDeadline(ctx, started.Add(c.cfg.ProcessingTimeout))
	env := c.resolver.Resolve(resolveCtx, raw, c.cfg.Classify)
	timedOut := errors.Is(resolveCtx.Err(), context.DeadlineExceeded)
	cancel()

	if active.abandoned.Load() {
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
		return domain.ProcessResult{}, nil
	}

	if timedOut {
		elapsed := time.Since(started)
		c.log.Error("processing timed out", "input_len", len(raw), "elapsed", elapsed)
		c.events.SessionError(domain.ErrorCodeTimeout, "processing took too long")
		c.finishSession(active, domain.SessionStateError, domain.SessionReasonProcessingTimeout)
		c.scheduleReturnToIdle(c.cfg.FailureDisplay)
		return domain.ProcessResult{}, context.DeadlineExceeded
	}

	result := domain.ProcessResult{Transcript: raw, Envelope: env}

	if env.ActionType == domain.ActionNone {
		// Filtered or garbage input: no feedback, straight back to idle.
		c.gate.RecordOutcome(ctx, raw, env, false)
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonActionSuppressed)
		c.events.ActionResolved(result)
		return result, nil
	}

	pending, err := c.gate.Submit(raw, env)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeConfirmation, err.Error())
		c.finishSession(active, domain.SessionStateError, domain.SessionReasonExecutionFailed)
		c.scheduleReturnToIdle(c.cfg.ExecutionErrorDisplay)
		return domain.ProcessResult{}, err
	}
	if pending != nil {
		result.Pending = pending
		c.finishSession(active, domain.SessionStateConfirm, domain.SessionReasonAwaitingConfirmation)
		c.events.ConfirmationRequested(*pending)
		c.events.ActionResolved(result)
		return result, nil
	}

	result.Execution = c.execute(ctx, raw, env)
	c.finishSession(active, c.terminalState(result.Execution), c.terminalReason(result.Execution))
	c.scheduleReturnToIdle(c.displayFor(env, result.Execution))
	c.events.ActionResolved(result)
	return result, nil
}

// Confirm executes the outstanding pending action.
func (c *VoiceSessionController) Confirm(ctx context.Context) (domain.ProcessResult, error) {
	pending, err := c.gate.Confirm()
	if err != nil {
		return domain.ProcessResult{}, err
	}

	result := domain.ProcessResult{
		Transcript: pending.Transcript,
		Envelope:   pending.Envelope,
		Execution:  c.execute(ctx, pending.Transcript, pending.Envelope),
	}

	if result.Execution.Executed {
		c.setState(domain.SessionStateSuccess, domain.SessionReasonConfirmationDone)
	} else {
		c.setState(domain.SessionStateError, domain.SessionReasonExecutionFailed)
	}
	c.scheduleReturnToIdle(c.displayFor(pending.Envelope, result.Execution))
	c.events.ActionResolved(result)
	return result, nil
}

// Cancel returns the session to idle from any state: it discards an
// active recording and any pending confirmation. A resolution already in
// flight is not aborted; its result is discarded when it lands. That gap
// is bounded by the processing timeout.
func (c *VoiceSessionController) Cancel() {
	c.timers.Cancel(timerHide)
	c.gate.Cancel()

	c.mu.Lock()
	active := c.current
	processing := c.state == domain.SessionStateProcessing
	c.mu.Unlock()

	if active != nil && processing {
		active.abandoned.Store(true)
		return
	}
	if active != nil {
		if !active.stopping.CompareAndSwap(false, true) {
			active.abandoned.Store(true)
			return
		}
		c.stopSession(active)
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
		return
	}
	c.setState(domain.SessionStateIdle, domain.SessionReasonConfirmationCanceled)
}

// ConfirmationExpired is invoked by the gate when a pending action times
// out unanswered.
func (c *VoiceSessionController) ConfirmationExpired() {
	c.mu.Lock()
	confirming := c.state == domain.SessionStateConfirm
	c.mu.Unlock()
	if confirming {
		c.setState(domain.SessionStateIdle, domain.SessionReasonConfirmationExpired)
	}
}

// Status returns the current machine status.
func (c *VoiceSessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{
		State:     c.state,
		Active:    c.state != domain.SessionStateIdle,
		SessionID: c.sessionSeq.Load(),
	}
	if c.current != nil {
		status.AudioLevel = c.current.audio.Level()
	}
	return status
}

func (c *VoiceSessionController) execute(ctx context.Context, transcript string, env domain.ActionEnvelope) domain.ExecutionResult {
	result := c.executor.Execute(ctx, env)
	c.gate.RecordOutcome(ctx, transcript, env, result.Executed)
	if !result.Executed {
		c.events.SessionError(domain.ErrorCodeExecution, result.ExecutionError)
	}
	c.speak(env)
	return result
}

// speak is fire-and-forget: a failed reply never blocks a transition.
func (c *VoiceSessionController) speak(env domain.ActionEnvelope) {
	if c.speech == nil || env.ResponseText == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.speech.Speak(ctx, env.ResponseText); err != nil {
			c.log.Warn("speech synthesis failed", "err", err)
		}
	}()
}

func (c *VoiceSessionController) terminalState(result domain.ExecutionResult) domain.SessionState {
	if result.Executed {
		return domain.SessionStateSuccess
	}
	return domain.SessionStateError
}

func (c *VoiceSessionController) terminalReason(result domain.ExecutionResult) domain.SessionStateReason {
	if result.Executed {
		return domain.SessionReasonActionExecuted
	}
	return domain.SessionReasonExecutionFailed
}

func (c *VoiceSessionController) displayFor(env domain.ActionEnvelope, result domain.ExecutionResult) time.Duration {
	if !result.Executed {
		return c.cfg.ExecutionErrorDisplay
	}
	if env.Conversational() {
		return c.cfg.ConversationDisplay
	}
	return c.cfg.SuccessDisplay
}

func (c *VoiceSessionController) scheduleReturnToIdle(after time.Duration) {
	c.timers.Schedule(timerHide, after, func() {
		c.setState(domain.SessionStateIdle, domain.SessionReasonDisplayDone)
	})
}

func (c *VoiceSessionController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.current.stopping.CompareAndSwap(false, true) {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

func (c *VoiceSessionController) setState(state domain.SessionState, reason domain.SessionStateReason) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.events.SessionStateChanged(state, reason)
}

func (c *VoiceSessionController) stopSession(active *activeSession) {
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	<-active.audioDone
}

func (c *VoiceSessionController) finishSession(active *activeSession, state domain.SessionState, reason domain.SessionStateReason) {
	active.cancel()

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	c.setState(state, reason)
}
