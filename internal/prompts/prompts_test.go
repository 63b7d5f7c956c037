package prompts

import (
	"strings"
	"testing"

	"github.com/VISHAAL-1/ai-interview-platform/internal/acoustic"
)

func TestEvaluation(t *testing.T) {
	p := acoustic.Payload{Jitter: 0.012, Shimmer: 0.08, Loudness: 61.5, SpeechRate: 2.5, PauseRatio: 0.25}
	got := Evaluation("What is a goroutine?", `A "lightweight" thread.`, p)

	for _, want := range []string{
		"What is a goroutine?",
		`"A \"lightweight\" thread."`,
		"jitter: 0.012",
		"shimmer: 0.08",
		"loudness: 61.5",
		"speech_rate: 2.5",
		"pause_ratio: 0.25",
		"correctness_score",
		"combined_score",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestEvaluation_ZeroPayload(t *testing.T) {
	got := Evaluation("Q", "", acoustic.Payload{})
	if !strings.Contains(got, "jitter: 0 ") || !strings.Contains(got, "pause_ratio: 0 ") {
		t.Errorf("zero payload not rendered as 0:\n%s", got)
	}
}

func TestFollowUp(t *testing.T) {
	got := FollowUp("I used channels for fan-out.")
	if !strings.Contains(got, "Answer: I used channels for fan-out.") {
		t.Errorf("transcript not embedded:\n%s", got)
	}
	if !strings.Contains(got, "ONE follow-up question") {
		t.Error("missing instruction")
	}
}
