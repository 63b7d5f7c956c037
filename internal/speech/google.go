// Package speech transcribes normalized WAV audio with Google Cloud
// Speech-to-Text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/VISHAAL-1/ai-interview-platform/internal/audio"
)

var (
	ErrCredentialsMissing = errors.New("speech credentials file not found")
	ErrTranscription      = errors.New("transcription failed")
)

// Recognizer is the subset of the Speech client used for one request.
type Recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

// ClientFactory builds a Recognizer from a service-account credentials file.
type ClientFactory func(ctx context.Context, credentialsFile string) (Recognizer, error)

type googleClient struct {
	c *speechapi.Client
}

func (g googleClient) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return g.c.Recognize(ctx, req)
}

func (g googleClient) Close() error { return g.c.Close() }

// NewGoogleClient is the production ClientFactory.
func NewGoogleClient(ctx context.Context, credentialsFile string) (Recognizer, error) {
	c, err := speechapi.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	return googleClient{c: c}, nil
}

// Google transcribes audio via synchronous Recognize calls. A fresh client
// is built per call so no credential state is shared between runs.
type Google struct {
	credentialsFile string
	language        string
	newClient       ClientFactory
}

func NewGoogle(credentialsFile, language string, factory ClientFactory) *Google {
	if language == "" {
		language = "en-US"
	}
	if factory == nil {
		factory = NewGoogleClient
	}
	return &Google{credentialsFile: credentialsFile, language: language, newClient: factory}
}

// Transcribe returns the space-joined top alternative of every result.
// Silence yields an empty string and no error.
func (g *Google) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if fi, err := os.Stat(g.credentialsFile); g.credentialsFile == "" || err != nil || fi.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrCredentialsMissing, g.credentialsFile)
	}

	content, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("%w: read audio: %v", ErrTranscription, err)
	}

	client, err := g.newClient(ctx, g.credentialsFile)
	if err != nil {
		return "", fmt.Errorf("%w: create client: %v", ErrTranscription, err)
	}
	defer client.Close()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            audio.SampleRate,
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
