package prompts

import (
	"fmt"
	"strconv"

	"github.com/VISHAAL-1/ai-interview-platform/internal/acoustic"
)

const evaluationTemplate = `Evaluate a candidate's interview answer.

You MUST return a JSON object with ONLY these keys:
- correctness_score (0-100)
- fluency_score (0-100)
- combined_score (0-100)
- feedback (string)

--- Interview Question ---
%s

--- Transcript ---
%s

--- Acoustic Features (from real audio analysis) ---
jitter: %s (vocal stability)
shimmer: %s (amplitude stability)
loudness: %s (speaking energy)
speech_rate: %s (words per second)
pause_ratio: %s (silence proportion)

Interpretation rules for fluency:
- High jitter/shimmer means a shaky or unclear voice: reduce fluency score
- Very low or very high speech rate means slow or rushed speech: reduce fluency score
- High pause_ratio means too many pauses: reduce fluency score
- Loudness too low means low confidence

Rate correctness ONLY on meaning and quality of the transcript.`

const followUpTemplate = `You are an AI interviewer.
Given the candidate's answer, generate ONE follow-up question.
Make it relevant and non-repetitive.

Answer: %s

Output ONLY the follow-up question as plain text.`

// Evaluation builds the scoring prompt for one answer.
func Evaluation(question, transcript string, p acoustic.Payload) string {
	return fmt.Sprintf(evaluationTemplate,
		question,
		strconv.Quote(transcript),
		num(p.Jitter), num(p.Shimmer), num(p.Loudness), num(p.SpeechRate), num(p.PauseRatio),
	)
}

// FollowUp builds the prompt requesting a single follow-up question.
func FollowUp(transcript string) string {
	return fmt.Sprintf(followUpTemplate, transcript)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
