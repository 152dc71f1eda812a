package domain

import "time"

// SessionState models the push-to-talk lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateListening  SessionState = "listening"
	SessionStateHandsFree  SessionState = "handsfree"
	SessionStateProcessing SessionState = "processing"
	SessionStateConfirm    SessionState = "confirm"
	SessionStateSuccess    SessionState = "success"
	SessionStateError      SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonBootComplete         SessionStateReason = "boot_complete"
	SessionReasonRecordingStarted     SessionStateReason = "recording_started"
	SessionReasonHandsFreeStarted     SessionStateReason = "handsfree_started"
	SessionReasonRecordingRestarted   SessionStateReason = "recording_restarted"
	SessionReasonTranscribing         SessionStateReason = "transcribing"
	SessionReasonRecordingDiscarded   SessionStateReason = "recording_discarded"
	SessionReasonNoTranscript         SessionStateReason = "no_transcript"
	SessionReasonActionExecuted       SessionStateReason = "action_executed"
	SessionReasonActionSuppressed     SessionStateReason = "action_suppressed"
	SessionReasonAwaitingConfirmation SessionStateReason = "awaiting_confirmation"
	SessionReasonConfirmationDone     SessionStateReason = "confirmation_done"
	SessionReasonConfirmationCanceled SessionStateReason = "confirmation_canceled"
	SessionReasonConfirmationExpired  SessionStateReason = "confirmation_expired"
	SessionReasonExecutionFailed      SessionStateReason = "execution_failed"
	SessionReasonTranscriptionFailed  SessionStateReason = "transcription_failed"
	SessionReasonProcessingTimeout    SessionStateReason = "processing_timeout"
	SessionReasonDisplayDone          SessionStateReason = "display_done"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup        ErrorCode = "startup"
	ErrorCodeAudioStop      ErrorCode = "audio_stop"
	ErrorCodeAudioStream    ErrorCode = "audio_stream"
	ErrorCodeTranscription  ErrorCode = "transcription"
	ErrorCodeClassification ErrorCode = "classification"
	ErrorCodeExecution      ErrorCode = "execution"
	ErrorCodeConfirmation   ErrorCode = "confirmation"
	ErrorCodeSpeech         ErrorCode = "speech"
	ErrorCodeHistory        ErrorCode = "history"
	ErrorCodeTimeout        ErrorCode = "timeout"
)

// ActionType enumerates every action the assistant can resolve an
// utterance into. The set is closed: classifier output that does not map
// onto one of these becomes ActionTypeText.
type ActionType string

const (
	ActionTypeText           ActionType = "type_text"
	ActionOpenApp            ActionType = "open_app"
	ActionOpenURL            ActionType = "open_url"
	ActionWebSearch          ActionType = "web_search"
	ActionVolumeControl      ActionType = "volume_control"
	ActionSystemControl      ActionType = "system_control"
	ActionSpotifyControl     ActionType = "spotify_control"
	ActionDiscordControl     ActionType = "discord_control"
	ActionSendEmail          ActionType = "send_email"
	ActionClipboardFormat    ActionType = "clipboard_format"
	ActionClipboardTranslate ActionType = "clipboard_translate"
	ActionClipboardSummarize ActionType = "clipboard_summarize"
	ActionRespond            ActionType = "respond"
	ActionClarify            ActionType = "clarify"
	ActionNone               ActionType = "no_action"
)

// ActionEnvelope is the normalized result of intent resolution, shared
// between the classifier, the execution gate and the UI.
type ActionEnvelope struct {
	ActionType           ActionType        `json:"action_type"`
	Payload              map[string]string `json:"payload,omitempty"`
	RefinedText          string            `json:"refined_text,omitempty"`
	ResponseText         string            `json:"response_text,omitempty"`
	RequiresConfirmation bool              `json:"requires_confirmation"`
}

// Conversational reports whether the envelope carries a reply the user is
// expected to read or listen to.
func (e ActionEnvelope) Conversational() bool {
	switch e.ActionType {
	case ActionRespond, ActionClarify:
		return true
	}
	return e.ResponseText != ""
}

// PendingAction is a classified-but-unexecuted action parked by the
// execution gate until the user confirms or cancels it.
type PendingAction struct {
	Envelope   ActionEnvelope `json:"envelope"`
	Transcript string         `json:"transcript"`
	Summary    string         `json:"summary"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ExecutionResult is what the action executor reports back.
type ExecutionResult struct {
	Executed         bool   `json:"executed"`
	ExecutionError   string `json:"execution_error,omitempty"`
	ExecutionMessage string `json:"execution_message,omitempty"`
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a
// provider. Confidence and duration are advisory metadata, never decision
// inputs.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	Confidence    float64        `json:"confidence"`
	DurationMs    int64          `json:"duration_ms"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// ConversationRole distinguishes transcript entries from assistant replies.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// ConversationEntry is one line of the append-only conversation log.
type ConversationEntry struct {
	ID            string           `json:"id"`
	Role          ConversationRole `json:"role"`
	Content       string           `json:"content"`
	Timestamp     time.Time        `json:"timestamp"`
	ActionTaken   string           `json:"action_taken,omitempty"`
	ActionSuccess bool             `json:"action_success"`
}

// CustomCommand is a user-defined trigger phrase mapped to a named command.
type CustomCommand struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Trigger string `json:"trigger"`
}

// ProcessResult is returned once recording is stopped and the utterance is
// resolved, and possibly executed.
type ProcessResult struct {
	Transcript string          `json:"transcript"`
	Envelope   ActionEnvelope  `json:"envelope"`
	Pending    *PendingAction  `json:"pending,omitempty"`
	Execution  ExecutionResult `json:"execution"`
}

// Status summarizes the current runtime status.
type Status struct {
	State      SessionState `json:"state"`
	Active     bool         `json:"active"`
	SessionID  uint64       `json:"sessionId"`
	AudioLevel float64      `json:"audioLevel"`
	Message    string       `json:"message,omitempty"`
}
