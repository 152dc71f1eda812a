package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"murmur/internal/domain"
	"murmur/internal/gate"
	"murmur/internal/ports"
)

type fakeAudioSession struct {
	once    sync.Once
	stopped chan struct{}
	level   float64
}

func newFakeAudioSession() *fakeAudioSession {
	return &fakeAudioSession{stopped: make(chan struct{}), level: 0.42}
}

func (s *fakeAudioSession) Read(p []byte) (int, error) {
	<-s.stopped
	return 0, io.EOF
}

func (s *fakeAudioSession) Stop() error {
	s.once.Do(func() { close(s.stopped) })
	return nil
}

func (s *fakeAudioSession) Close() error { return s.Stop() }

func (s *fakeAudioSession) Level() float64 { return s.level }

type fakeCapture struct {
	session *fakeAudioSession
	err     error

	mu     sync.Mutex
	starts int
}

func (c *fakeCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

func (c *fakeCapture) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

type fakeStream struct {
	mu      sync.Mutex
	events  chan domain.TranscriptEvent
	closed  bool
	waitErr error
}

func newFakeStream(transcript string) *fakeStream {
	s := &fakeStream{events: make(chan domain.TranscriptEvent, 8)}
	if transcript != "" {
		s.events <- domain.TranscriptEvent{
			Kind:       domain.TranscriptKindFinal,
			Text:       transcript,
			Confidence: 0.97,
		}
	}
	return s
}

func (s *fakeStream) SendAudio(chunk []byte) error { return nil }

func (s *fakeStream) CloseSend() error {
	s.closeEvents()
	return nil
}

func (s *fakeStream) Events() <-chan domain.TranscriptEvent { return s.events }

func (s *fakeStream) Wait() error { return s.waitErr }

func (s *fakeStream) Close() error {
	s.closeEvents()
	return nil
}

func (s *fakeStream) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

type fakeProvider struct {
	stream *fakeStream
	err    error
}

func (p *fakeProvider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.stream, nil
}

type stubResolver struct {
	env domain.ActionEnvelope
	// block makes Resolve wait for context expiry before answering, to
	// exercise the processing deadline.
	block bool
	// hold, when set, keeps Resolve pending until the channel closes.
	hold chan struct{}

	mu    sync.Mutex
	calls int
}

func (r *stubResolver) Resolve(ctx context.Context, text string, meta ports.ClassifyContext) domain.ActionEnvelope {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.hold != nil {
		<-r.hold
	}
	if r.block {
		<-ctx.Done()
		return domain.DictationFallback(text)
	}
	return r.env
}

type fakeExecutor struct {
	result domain.ExecutionResult

	mu    sync.Mutex
	calls []domain.ActionEnvelope
}

func (e *fakeExecutor) Execute(ctx context.Context, env domain.ActionEnvelope) domain.ExecutionResult {
	e.mu.Lock()
	e.calls = append(e.calls, env)
	e.mu.Unlock()
	return e.result
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeSpeech struct {
	mu     sync.Mutex
	spoken []string
}

func (s *fakeSpeech) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return nil
}

type recordingSink struct {
	mu            sync.Mutex
	states        []domain.SessionState
	reasons       []domain.SessionStateReason
	partials      []string
	levels        []float64
	resolved      []domain.ProcessResult
	confirmations []domain.PendingAction
	errors        []domain.ErrorCode
}

func (s *recordingSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.mu.Lock()
	s.states = append(s.states, state)
	s.reasons = append(s.reasons, reason)
	s.mu.Unlock()
}

func (s *recordingSink) PartialTranscript(text string) {
	s.mu.Lock()
	s.partials = append(s.partials, text)
	s.mu.Unlock()
}

func (s *recordingSink) AudioLevel(level float64) {
	s.mu.Lock()
	s.levels = append(s.levels, level)
	s.mu.Unlock()
}

func (s *recordingSink) ActionResolved(result domain.ProcessResult) {
	s.mu.Lock()
	s.resolved = append(s.resolved, result)
	s.mu.Unlock()
}

func (s *recordingSink) ConfirmationRequested(pending domain.PendingAction) {
	s.mu.Lock()
	s.confirmations = append(s.confirmations, pending)
	s.mu.Unlock()
}

func (s *recordingSink) SessionError(code domain.ErrorCode, detail string) {
	s.mu.Lock()
	s.errors = append(s.errors, code)
	s.mu.Unlock()
}

func (s *recordingSink) lastState() (domain.SessionState, domain.SessionStateReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return "", ""
	}
	return s.states[len(s.states)-1], s.reasons[len(s.reasons)-1]
}

func (s *recordingSink) sawState(state domain.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, got := range s.states {
		if got == state {
			return true
		}
	}
	return false
}

func (s *recordingSink) levelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.levels)
}

func (s *recordingSink) waitForReason(t *testing.T, want domain.SessionStateReason) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		for _, got := range s.reasons {
			if got == want {
				s.mu.Unlock()
				return
			}
		}
		s.mu.Unlock()
		select {
		case <-deadline:
			t.Fatalf("reason %q never observed", want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type nopHistory struct{}

func (nopHistory) Append(ctx context.Context, entry domain.ConversationEntry) error { return nil }

type testHarness struct {
	controller *VoiceSessionController
	capture    *fakeCapture
	stream     *fakeStream
	resolver   *stubResolver
	gate       *gate.Gate
	executor   *fakeExecutor
	speech     *fakeSpeech
	sink       *recordingSink
}

func newTestHarness(t *testing.T, transcript string, env domain.ActionEnvelope) *testHarness {
	t.Helper()

	h := &testHarness{
		capture:  &fakeCapture{session: newFakeAudioSession()},
		stream:   newFakeStream(transcript),
		resolver: &stubResolver{env: env},
		gate:     gate.NewGate(nopHistory{}, time.Minute),
		executor: &fakeExecutor{result: domain.ExecutionResult{Executed: true}},
		speech:   &fakeSpeech{},
		sink:     &recordingSink{},
	}
	h.controller = NewVoiceSessionController(
		h.capture,
		&fakeProvider{stream: h.stream},
		h.resolver,
		h.gate,
		h.executor,
		h.speech,
		nil,
		h.sink,
		Config{
			StreamingGrace:        time.Millisecond,
			LevelInterval:         5 * time.Millisecond,
			SuccessDisplay:        20 * time.Millisecond,
			ConversationDisplay:   20 * time.Millisecond,
			ExecutionErrorDisplay: 20 * time.Millisecond,
			FailureDisplay:        20 * time.Millisecond,
		},
	)
	return h
}

func TestStartStopExecutesAction(t *testing.T) {
	t.Parallel()

	env := domain.ActionEnvelope{
		ActionType: domain.ActionOpenApp,
		Payload:    map[string]string{"app": "firefox"},
	}
	h := newTestHarness(t, "open firefox", env)
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state, _ := h.sink.lastState(); state != domain.SessionStateListening {
		t.Fatalf("state after start = %q, want listening", state)
	}

	result, err := h.controller.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.Transcript != "open firefox" {
		t.Errorf("transcript = %q", result.Transcript)
	}
	if !result.Execution.Executed {
		t.Error("action was not executed")
	}
	if got := h.executor.callCount(); got != 1 {
		t.Errorf("executor calls = %d, want 1", got)
	}
	if !h.sink.sawState(domain.SessionStateSuccess) {
		t.Error("success state never shown")
	}

	h.sink.waitForReason(t, domain.SessionReasonDisplayDone)
	if state, _ := h.sink.lastState(); state != domain.SessionStateIdle {
		t.Errorf("final state = %q, want idle", state)
	}
}

func TestStopWithoutSessionReturnsSentinel(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "", domain.ActionEnvelope{})
	if _, err := h.controller.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "hello", domain.DictationFallback("hello"))
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := h.capture.startCount(); got != 1 {
		t.Errorf("capture starts = %d, want 1", got)
	}
	if _, err := h.controller.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestHandsFreeStartSetsState(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "hello", domain.DictationFallback("hello"))
	if err := h.controller.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state, reason := h.sink.lastState()
	if state != domain.SessionStateHandsFree || reason != domain.SessionReasonHandsFreeStarted {
		t.Fatalf("got %q/%q, want handsfree/handsfree_started", state, reason)
	}
}

func TestEmptyTranscriptReturnsToIdleSilently(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "", domain.ActionEnvelope{})
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.controller.Stop(ctx); err == nil {
		t.Fatal("expected error for empty transcript")
	}
	state, reason := h.sink.lastState()
	if state != domain.SessionStateIdle || reason != domain.SessionReasonNoTranscript {
		t.Errorf("got %q/%q, want idle/no_transcript", state, reason)
	}
	if got := h.executor.callCount(); got != 0 {
		t.Errorf("executor calls = %d, want 0", got)
	}
}

func TestNoActionGoesStraightToIdle(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "uh", domain.ActionEnvelope{ActionType: domain.ActionNone})
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, err := h.controller.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.Execution.Executed {
		t.Error("no_action should not execute")
	}
	state, reason := h.sink.lastState()
	if state != domain.SessionStateIdle || reason != domain.SessionReasonActionSuppressed {
		t.Errorf("got %q/%q, want idle/action_suppressed", state, reason)
	}
	if h.sink.sawState(domain.SessionStateSuccess) || h.sink.sawState(domain.SessionStateError) {
		t.Error("no_action must render no feedback")
	}
}

func TestConfirmationFlow(t *testing.T) {
	t.Parallel()

	env := domain.ActionEnvelope{
		ActionType:           domain.ActionSystemControl,
		Payload:              map[string]string{"action": "shutdown"},
		RequiresConfirmation: true,
	}
	h := newTestHarness(t, "shut down the computer", env)
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, err := h.controller.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.Pending == nil {
		t.Fatal("expected a pending action")
	}
	if got := h.executor.callCount(); got != 0 {
		t.Fatalf("executor ran before confirmation (%d calls)", got)
	}
	if state, _ := h.sink.lastState(); state != domain.SessionStateConfirm {
		t.Fatalf("state = %q, want confirm", state)
	}
	h.sink.mu.Lock()
	confirmations := len(h.sink.confirmations)
	h.sink.mu.Unlock()
	if confirmations != 1 {
		t.Fatalf("confirmation events = %d, want 1", confirmations)
	}

	// Starting a new recording is refused while the action is parked.
	if err := h.controller.Start(ctx, false); !errors.Is(err, ErrAwaitingConfirmation) {
		t.Fatalf("Start during confirm = %v, want ErrAwaitingConfirmation", err)
	}

	confirmed, err := h.controller.Confirm(ctx)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !confirmed.Execution.Executed {
		t.Error("confirmed action did not execute")
	}
	if got := h.executor.callCount(); got != 1 {
		t.Errorf("executor calls = %d, want 1", got)
	}
	if h.gate.Pending() != nil {
		t.Error("pending slot not cleared after confirm")
	}
}

func TestCancelDuringConfirmationSkipsExecution(t *testing.T) {
	t.Parallel()

	env := domain.ActionEnvelope{
		ActionType:           domain.ActionSendEmail,
		Payload:              map[string]string{"to": "sam"},
		RequiresConfirmation: true,
	}
	h := newTestHarness(t, "email sam", env)
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.controller.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	h.controller.Cancel()

	if got := h.executor.callCount(); got != 0 {
		t.Fatalf("executor calls = %d, want 0 after cancel", got)
	}
	if h.gate.Pending() != nil {
		t.Error("pending slot not cleared after cancel")
	}
	state, reason := h.sink.lastState()
	if state != domain.SessionStateIdle || reason != domain.SessionReasonConfirmationCanceled {
		t.Errorf("got %q/%q, want idle/confirmation_canceled", state, reason)
	}
	if _, err := h.controller.Confirm(ctx); !errors.Is(err, gate.ErrNoPendingAction) {
		t.Errorf("Confirm after cancel = %v, want ErrNoPendingAction", err)
	}
}

func TestCancelWhileRecordingDiscards(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "ignore me", domain.DictationFallback("ignore me"))
	if err := h.controller.Start(context.Background(), false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.controller.Cancel()

	state, reason := h.sink.lastState()
	if state != domain.SessionStateIdle || reason != domain.SessionReasonRecordingDiscarded {
		t.Errorf("got %q/%q, want idle/recording_discarded", state, reason)
	}
	if got := h.executor.callCount(); got != 0 {
		t.Errorf("executor calls = %d, want 0", got)
	}
	if _, err := h.controller.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Stop after cancel = %v, want ErrNoActiveSession", err)
	}
}

func TestExecutionFailureShowsErrorState(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "open firefox", domain.ActionEnvelope{
		ActionType: domain.ActionOpenApp,
		Payload:    map[string]string{"app": "firefox"},
	})
	h.executor.result = domain.ExecutionResult{
		Executed:       false,
		ExecutionError: "app not found",
	}
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, err := h.controller.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.Execution.Executed {
		t.Error("execution should have failed")
	}
	if !h.sink.sawState(domain.SessionStateError) {
		t.Error("error state never shown")
	}
	h.sink.waitForReason(t, domain.SessionReasonDisplayDone)
}

func TestTranscriptionFailureShowsErrorState(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "", domain.ActionEnvelope{})
	h.stream.waitErr = errors.New("websocket closed unexpectedly")
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.controller.Stop(ctx); err == nil {
		t.Fatal("expected transcription error")
	}
	if !h.sink.sawState(domain.SessionStateError) {
		t.Error("error state never shown")
	}
	h.sink.mu.Lock()
	sawCode := false
	for _, code := range h.sink.errors {
		if code == domain.ErrorCodeTranscription {
			sawCode = true
		}
	}
	h.sink.mu.Unlock()
	if !sawCode {
		t.Error("transcription error code never emitted")
	}
}

func TestProcessingTimeout(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "slow request", domain.ActionEnvelope{})
	h.resolver.block = true
	h.controller.cfg.ProcessingTimeout = 30 * time.Millisecond
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.controller.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop = %v, want DeadlineExceeded", err)
	}
	state, reason := h.sink.lastState()
	if state != domain.SessionStateError || reason != domain.SessionReasonProcessingTimeout {
		t.Errorf("got %q/%q, want error/processing_timeout", state, reason)
	}
	if got := h.executor.callCount(); got != 0 {
		t.Errorf("executor calls = %d, want 0", got)
	}
}

func TestConversationalReplyIsSpoken(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "what time is it", domain.ActionEnvelope{
		ActionType:   domain.ActionRespond,
		ResponseText: "It is nine thirty.",
	})
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.controller.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		h.speech.mu.Lock()
		n := len(h.speech.spoken)
		h.speech.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("response was never spoken")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAudioLevelPollingStopsWithSession(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "hello", domain.DictationFallback("hello"))
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if h.sink.levelCount() == 0 {
		t.Fatal("no audio levels emitted while listening")
	}
	if _, err := h.controller.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	before := h.sink.levelCount()
	time.Sleep(30 * time.Millisecond)
	if after := h.sink.levelCount(); after != before {
		t.Errorf("levels still flowing after stop: %d -> %d", before, after)
	}
}

func TestAudioLevelPollingStopsWhenProcessingBegins(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "hello", domain.DictationFallback("hello"))
	h.resolver.hold = make(chan struct{})
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if h.sink.levelCount() == 0 {
		t.Fatal("no audio levels emitted while listening")
	}

	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		_, _ = h.controller.Stop(ctx)
	}()
	h.sink.waitForReason(t, domain.SessionReasonTranscribing)

	// Allow the poller's final tick to land, then verify silence while
	// resolution is still in flight.
	time.Sleep(20 * time.Millisecond)
	before := h.sink.levelCount()
	time.Sleep(40 * time.Millisecond)
	after := h.sink.levelCount()

	close(h.resolver.hold)
	<-stopDone

	if after != before {
		t.Errorf("levels still flowing during processing: %d -> %d", before, after)
	}
}

func TestConfirmationExpiredReturnsToIdle(t *testing.T) {
	t.Parallel()

	env := domain.ActionEnvelope{
		ActionType:           domain.ActionSystemControl,
		Payload:              map[string]string{"action": "restart"},
		RequiresConfirmation: true,
	}
	h := newTestHarness(t, "restart", env)
	ctx := context.Background()

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.controller.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	h.controller.ConfirmationExpired()

	state, reason := h.sink.lastState()
	if state != domain.SessionStateIdle || reason != domain.SessionReasonConfirmationExpired {
		t.Errorf("got %q/%q, want idle/confirmation_expired", state, reason)
	}
}

func TestStatusReportsStateAndLevel(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, "hello", domain.DictationFallback("hello"))
	ctx := context.Background()

	status := h.controller.Status()
	if status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("idle status = %+v", status)
	}

	if err := h.controller.Start(ctx, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status = h.controller.Status()
	if status.State != domain.SessionStateListening || !status.Active {
		t.Errorf("listening status = %+v", status)
	}
	if status.AudioLevel != 0.42 {
		t.Errorf("audio level = %v, want 0.42", status.AudioLevel)
	}
	if _, err := h.controller.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
