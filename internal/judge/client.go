// Package judge scores interview answers and generates follow-up questions
// through an external generative model.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/VISHAAL-1/ai-interview-platform/internal/acoustic"
	"github.com/VISHAAL-1/ai-interview-platform/internal/metrics"
	"github.com/VISHAAL-1/ai-interview-platform/internal/prompts"
)

// Result is a scored evaluation. Scores are always within [0,100].
type Result struct {
	CorrectnessScore float64 `json:"correctness_score"`
	FluencyScore     float64 `json:"fluency_score"`
	CombinedScore    float64 `json:"combined_score"`
	Feedback         string  `json:"feedback"`
}

// Completer sends a single-turn prompt and returns the raw reply text.
// jsonMode asks the backend to constrain the reply to a JSON object.
type Completer interface {
	Complete(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// Client wraps a Completer with the scoring and follow-up contracts.
type Client struct {
	completer Completer
}

func New(c Completer) *Client {
	return &Client{completer: c}
}

// Score evaluates a transcript against the question and acoustic payload.
// Only remote failures are returned; unparsable replies yield Sentinel.
func (c *Client) Score(ctx context.Context, question, transcript string, p acoustic.Payload) (Result, error) {
	raw, err := c.completer.Complete(ctx, prompts.Evaluation(question, transcript, p), true)
	if err != nil {
		return Result{}, fmt.Errorf("judge score: %w", err)
	}

	res, mode := Parse(raw)
	metrics.JudgeParse.WithLabelValues(string(mode)).Inc()
	if mode == ModeSentinel {
		slog.Warn("judge reply not parsable", "reply_len", len(raw))
	}
	return res, nil
}

// FollowUp asks for one follow-up question about the transcript.
func (c *Client) FollowUp(ctx context.Context, transcript string) (string, error) {
	raw, err := c.completer.Complete(ctx, prompts.FollowUp(transcript), false)
	if err != nil {
		return "", fmt.Errorf("judge followup: %w", err)
	}
	return strings.TrimSpace(raw), nil
}
