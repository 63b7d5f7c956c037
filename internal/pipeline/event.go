package pipeline

import "github.com/VISHAAL-1/ai-interview-platform/internal/judge"

const (
	EventStatus     = "status"
	EventTranscript = "transcript_result"
	EventFollowUp   = "followup"
	EventEvaluation = "evaluation"
	EventError      = "error"
)

// StatusConverted is broadcast once the clip has been normalized.
const StatusConverted = "Audio converted to WAV. Starting transcription..."

// Event represents a pipeline progress message broadcast to the room.
type Event struct {
	Type       string        `json:"type"`
	Message    string        `json:"message,omitempty"`
	Text       *string       `json:"text,omitempty"`
	Question   string        `json:"question,omitempty"`
	Evaluation *judge.Result `json:"evaluation,omitempty"`
}

// MessageType implements room.Typed.
func (e Event) MessageType() string { return e.Type }

func statusEvent(msg string) Event { return Event{Type: EventStatus, Message: msg} }

// transcript_result always carries text, even when empty.
func transcriptEvent(text string) Event { return Event{Type: EventTranscript, Text: &text} }

func followUpEvent(q string) Event { return Event{Type: EventFollowUp, Question: q} }

func evaluationEvent(r judge.Result) Event { return Event{Type: EventEvaluation, Evaluation: &r} }

// ErrorEvent is the terminal event of a failed run.
func ErrorEvent(cause string) Event {
	return Event{Type: EventError, Message: "Pipeline failed: " + cause}
}
