// Package acoustic extracts voice-quality features from normalized audio and
// combines them with transcript-derived metrics into the judge payload.
package acoustic

import (
	"context"
	"math"
	"strings"
)

// minDuration keeps speech rate finite for zero-length audio.
const minDuration = 1e-6

// Features holds the raw openSMILE descriptors used for scoring.
// The zero value is the "unavailable" state.
type Features struct {
	Jitter   float64 `json:"jitter"`
	Shimmer  float64 `json:"shimmer"`
	Loudness float64 `json:"loudness"`
	Voicing  float64 `json:"voicing"`
}

// Derived holds metrics computed from the transcript and audio length.
type Derived struct {
	SpeechRate float64 `json:"speech_rate"`
	PauseRatio float64 `json:"pause_ratio"`
}

// Payload is the five-value vector sent to the judge.
type Payload struct {
	Jitter     float64 `json:"jitter"`
	Shimmer    float64 `json:"shimmer"`
	Loudness   float64 `json:"loudness"`
	SpeechRate float64 `json:"speech_rate"`
	PauseRatio float64 `json:"pause_ratio"`
}

// Derive computes speech rate (words per second) and pause ratio.
func Derive(transcript string, durationSec, voicing float64) Derived {
	words := len(strings.Fields(transcript))
	return Derived{
		SpeechRate: float64(words) / math.Max(durationSec, minDuration),
		PauseRatio: max(0, min(1, 1-voicing)),
	}
}

// NewPayload merges extracted features with derived metrics.
func NewPayload(f Features, d Derived) Payload {
	return Payload{
		Jitter:     f.Jitter,
		Shimmer:    f.Shimmer,
		Loudness:   f.Loudness,
		SpeechRate: d.SpeechRate,
		PauseRatio: d.PauseRatio,
	}
}

// Extractor produces acoustic features for a WAV file.
type Extractor interface {
	Extract(ctx context.Context, wavPath string) (Features, error)
}

// Result is either Ok(Features) or Unavailable(Reason).
type Result struct {
	Features Features
	Reason   string
	ok       bool
}

// Ok wraps successfully extracted features.
func Ok(f Features) Result { return Result{Features: f, ok: true} }

// Unavailable records why extraction was skipped; features stay zero.
func Unavailable(reason string) Result { return Result{Reason: reason} }

// Available reports whether the result carries real features.
func (r Result) Available() bool { return r.ok }

// Status is the human-readable annotation attached to feedback.
func (r Result) Status() string {
	if r.ok {
		return "Acoustic features extracted."
	}
	return "Acoustic analysis unavailable: " + r.Reason
}

// Extract runs ext and folds any failure into Unavailable. A nil extractor
// means acoustic analysis is not configured.
func Extract(ctx context.Context, ext Extractor, wavPath string) Result {
	if ext == nil {
		return Unavailable("not configured")
	}
	f, err := ext.Extract(ctx, wavPath)
	if err != nil {
		return Unavailable(err.Error())
	}
	return Ok(f)
}
