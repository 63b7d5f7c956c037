package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

type fakeRecognizer struct {
	resp   *speechpb.RecognizeResponse
	err    error
	req    *speechpb.RecognizeRequest
	closed bool
}

func (f *fakeRecognizer) Recognize(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeRecognizer) Close() error {
	f.closed = true
	return nil
}

func factoryFor(r *fakeRecognizer) ClientFactory {
	return func(context.Context, string) (Recognizer, error) { return r, nil }
}

func result(texts ...string) *speechpb.SpeechRecognitionResult {
	alts := make([]*speechpb.SpeechRecognitionAlternative, 0, len(texts))
	for _, t := range texts {
		alts = append(alts, &speechpb.SpeechRecognitionAlternative{Transcript: t})
	}
	return &speechpb.SpeechRecognitionResult{Alternatives: alts}
}

func fixtures(t *testing.T) (creds, wav string) {
	t.Helper()
	dir := t.TempDir()
	creds = filepath.Join(dir, "sa.json")
	wav = filepath.Join(dir, "a.wav")
	if err := os.WriteFile(creds, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wav, []byte("RIFF...."), 0o644); err != nil {
		t.Fatal(err)
	}
	return creds, wav
}

func TestTranscribe_JoinsTopAlternatives(t *testing.T) {
	creds, wav := fixtures(t)
	rec := &fakeRecognizer{resp: &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		result("I have five years", "I had five years"),
		result("of Go experience."),
		{},
	}}}

	text, err := NewGoogle(creds, "", factoryFor(rec)).Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "I have five years of Go experience." {
		t.Errorf("got %q", text)
	}
	if !rec.closed {
		t.Error("client not closed")
	}

	cfg := rec.req.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 || cfg.GetSampleRateHertz() != 16000 {
		t.Errorf("unexpected encoding config: %v", cfg)
	}
	if cfg.GetLanguageCode() != "en-US" || !cfg.GetEnableAutomaticPunctuation() {
		t.Errorf("unexpected language config: %v", cfg)
	}
	if string(rec.req.GetAudio().GetContent()) != "RIFF...." {
		t.Error("audio content not sent inline")
	}
}

func TestTranscribe_SilenceIsEmpty(t *testing.T) {
	creds, wav := fixtures(t)
	rec := &fakeRecognizer{resp: &speechpb.RecognizeResponse{}}

	text, err := NewGoogle(creds, "en-US", factoryFor(rec)).Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty transcript, got %q", text)
	}
}

func TestTranscribe_CredentialsMissing(t *testing.T) {
	_, wav := fixtures(t)
	called := false
	factory := func(context.Context, string) (Recognizer, error) {
		called = true
		return &fakeRecognizer{}, nil
	}

	for _, creds := range []string{"", filepath.Join(t.TempDir(), "absent.json"), t.TempDir()} {
		_, err := NewGoogle(creds, "", factory).Transcribe(context.Background(), wav)
		if !errors.Is(err, ErrCredentialsMissing) {
			t.Errorf("creds %q: expected ErrCredentialsMissing, got %v", creds, err)
		}
	}
	if called {
		t.Error("client must not be built without credentials")
	}
}

func TestTranscribe_Failures(t *testing.T) {
	creds, wav := fixtures(t)

	rec := &fakeRecognizer{err: errors.New("deadline exceeded")}
	if _, err := NewGoogle(creds, "", factoryFor(rec)).Transcribe(context.Background(), wav); !errors.Is(err, ErrTranscription) {
		t.Errorf("recognize error: expected ErrTranscription, got %v", err)
	}
	if !rec.closed {
		t.Error("client not closed after failure")
	}

	broken := func(context.Context, string) (Recognizer, error) { return nil, errors.New("bad key") }
	if _, err := NewGoogle(creds, "", broken).Transcribe(context.Background(), wav); !errors.Is(err, ErrTranscription) {
		t.Errorf("factory error: expected ErrTranscription, got %v", err)
	}

	if _, err := NewGoogle(creds, "", factoryFor(&fakeRecognizer{})).Transcribe(context.Background(), filepath.Join(t.TempDir(), "none.wav")); !errors.Is(err, ErrTranscription) {
		t.Errorf("missing audio: expected ErrTranscription, got %v", err)
	}
}
