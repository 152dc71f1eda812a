package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"murmur/internal/bootstrap"
	"murmur/internal/config"
	"murmur/internal/domain"
	"murmur/internal/gate"
	"murmur/internal/usecase"
)

const (
	eventSession = "murmur:session"
	eventPartial = "murmur:partial"
	eventLevel   = "murmur:level"
	eventAction  = "murmur:action"
	eventConfirm = "murmur:confirm"
	eventError   = "murmur:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.VoiceSessionController
	services   bootstrap.Services
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonBootComplete)
}

func (a *App) shutdown(ctx context.Context) {
	a.services.Shutdown(ctx)
}

// StartPTT starts push-to-talk recording.
func (a *App) StartPTT() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx, false); err != nil {
		if errors.Is(err, usecase.ErrAwaitingConfirmation) {
			return a.controller.Status(), err
		}
		a.SessionError(domain.ErrorCodeAudioStream, err.Error())
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// ToggleHandsFree starts a hands-free session, or finalizes it when one
// is already recording.
func (a *App) ToggleHandsFree() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}

	if a.controller.Status().State == domain.SessionStateHandsFree {
		if _, err := a.StopPTT(); err != nil {
			return domain.Status{}, err
		}
		return a.controller.Status(), nil
	}

	if err := a.controller.Start(a.ctx, true); err != nil {
		if !errors.Is(err, usecase.ErrAwaitingConfirmation) {
			a.SessionError(domain.ErrorCodeAudioStream, err.Error())
		}
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopPTT stops recording and resolves the captured utterance.
func (a *App) StopPTT() (domain.ProcessResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.ProcessResult{}, err
	}
	result, err := a.controller.Stop(a.ctx)
	if err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return domain.ProcessResult{}, nil
		}
		return domain.ProcessResult{}, err
	}
	return result, nil
}

// AbortPTT discards an in-progress recording or pending confirmation.
func (a *App) AbortPTT() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.Cancel()
	return nil
}

// ConfirmAction executes the action awaiting confirmation.
func (a *App) ConfirmAction() (domain.ProcessResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.ProcessResult{}, err
	}
	result, err := a.controller.Confirm(a.ctx)
	if err != nil {
		if errors.Is(err, gate.ErrNoPendingAction) {
			return domain.ProcessResult{}, nil
		}
		a.SessionError(domain.ErrorCodeConfirmation, err.Error())
		return domain.ProcessResult{}, err
	}
	return result, nil
}

// CancelAction discards the action awaiting confirmation.
func (a *App) CancelAction() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.Cancel()
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetHistory returns recent conversation entries for the UI.
func (a *App) GetHistory(limit int) ([]domain.ConversationEntry, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.History.Recent(a.ctx, limit)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"transcriptionProvider": "Deepgram",
		"transcriptionModel":    a.cfg.Deepgram.Model,
		"classifierModel":       a.cfg.Classifier.Model,
		"language":              a.cfg.Deepgram.Language,
		"audioInput":            a.cfg.Audio.InputDevice,
		"audioInputFormat":      a.cfg.Audio.InputFormat,
		"historyFile":           a.cfg.History.Path,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// PartialTranscript emits live partial transcript text.
func (a *App) PartialTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{"text": text})
}

// AudioLevel emits the microphone input level for the waveform display.
func (a *App) AudioLevel(level float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLevel, map[string]float64{"level": level})
}

// ActionResolved emits the resolved action and its outcome.
func (a *App) ActionResolved(result domain.ProcessResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAction, result)
}

// ConfirmationRequested emits a parked action for the confirmation card.
func (a *App) ConfirmationRequested(pending domain.PendingAction) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConfirm, map[string]string{
		"summary":    pending.Summary,
		"transcript": pending.Transcript,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonBootComplete:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Listening..."
	case domain.SessionReasonHandsFreeStarted:
		return "Hands-free listening..."
	case domain.SessionReasonRecordingRestarted:
		return "Recording restarted; previous capture discarded"
	case domain.SessionReasonTranscribing:
		return "Thinking..."
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoTranscript:
		return "No speech captured"
	case domain.SessionReasonActionExecuted:
		return "Done"
	case domain.SessionReasonActionSuppressed:
		return ""
	case domain.SessionReasonAwaitingConfirmation:
		return "Confirm this action?"
	case domain.SessionReasonConfirmationDone:
		return "Confirmed"
	case domain.SessionReasonConfirmationCanceled:
		return "Canceled"
	case domain.SessionReasonConfirmationExpired:
		return "Confirmation timed out"
	case domain.SessionReasonExecutionFailed:
		return "Something went wrong"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.SessionReasonProcessingTimeout:
		return "That took too long; try again"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeClassification:
		return "Could not understand that"
	case domain.ErrorCodeExecution:
		return "Action failed"
	case domain.ErrorCodeConfirmation:
		return "Confirmation issue"
	case domain.ErrorCodeSpeech:
		return "Speech output failed"
	case domain.ErrorCodeHistory:
		return "History write failed"
	case domain.ErrorCodeTimeout:
		return "Processing timed out"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
