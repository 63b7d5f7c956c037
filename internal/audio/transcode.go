package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// TranscodeError is returned when ffmpeg fails or produces audio outside the
// normalized format. Output holds whatever the tool wrote to stderr/stdout.
type TranscodeError struct {
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("ffmpeg failed: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg failed: %v: %s", e.Err, e.Output)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// FFmpeg converts arbitrary containers into normalized PCM WAV.
type FFmpeg struct {
	binary string
}

// NewFFmpeg creates a transcoder using the given ffmpeg executable (name or path).
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// Args returns the ffmpeg argument list for converting in to out.
func (f *FFmpeg) Args(in, out string) []string {
	return []string{
		"-i", in,
		"-nostats", "-loglevel", "error",
		"-y",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		out,
	}
}

// Transcode runs ffmpeg and verifies the output header. It blocks the calling
// goroutine only; cancellation of ctx kills the subprocess.
func (f *FFmpeg) Transcode(ctx context.Context, in, out string) error {
	slog.Debug("transcoding audio", "input", filepath.Base(in), "output", filepath.Base(out))

	cmd := exec.CommandContext(ctx, f.binary, f.Args(in, out)...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return &TranscodeError{Output: strings.TrimSpace(output.String()), Err: err}
	}

	info, err := Probe(out)
	if err != nil {
		return &TranscodeError{Err: err}
	}
	if !info.Normalized() {
		return &TranscodeError{Err: fmt.Errorf("unexpected output format: %d ch, %d Hz, %d bit", info.Channels, info.SampleRate, info.BitDepth)}
	}
	return nil
}
