package judge

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseMode records which strategy recovered a judge reply.
type ParseMode string

const (
	ModeDirect   ParseMode = "direct"
	ModeEmbedded ParseMode = "embedded"
	ModeSentinel ParseMode = "sentinel"
)

// SentinelFeedback is the feedback carried by the fallback result.
const SentinelFeedback = "Could not parse judge response."

// Sentinel is returned when a reply contains no usable JSON object.
func Sentinel() Result {
	return Result{Feedback: SentinelFeedback}
}

// score accepts a JSON number, a numeric string or null.
type score float64

func (s *score) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*s = score(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return err
	}
	*s = score(f)
	return nil
}

type wireResult struct {
	Correctness score  `json:"correctness_score"`
	Fluency     score  `json:"fluency_score"`
	Combined    score  `json:"combined_score"`
	Feedback    string `json:"feedback"`
}

// Parse never fails: it tries the whole reply, then the span from the first
// '{' to the last '}', then falls back to Sentinel. An object carrying none
// of the result keys is not a result. Scores are clamped to [0,100]; absent
// keys read as zero values.
func Parse(raw string) (Result, ParseMode) {
	if r, ok := decode(strings.TrimSpace(raw)); ok {
		return r, ModeDirect
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if r, ok := decode(raw[start : end+1]); ok {
			return r, ModeEmbedded
		}
	}
	return Sentinel(), ModeSentinel
}

func decode(s string) (Result, bool) {
	if !strings.HasPrefix(s, "{") {
		return Result{}, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil || !hasResultKey(keys) {
		return Result{}, false
	}
	var w wireResult
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return Result{}, false
	}
	return Result{
		CorrectnessScore: clamp(float64(w.Correctness)),
		FluencyScore:     clamp(float64(w.Fluency)),
		CombinedScore:    clamp(float64(w.Combined)),
		Feedback:         w.Feedback,
	}, true
}

func hasResultKey(keys map[string]json.RawMessage) bool {
	for _, k := range []string{"correctness_score", "fluency_score", "combined_score", "feedback"} {
		if _, ok := keys[k]; ok {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(100, v))
}
