package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/VISHAAL-1/ai-interview-platform/internal/pipeline"
	"github.com/VISHAAL-1/ai-interview-platform/internal/room"
)

// echoRunner records clips and answers each with a status event.
type echoRunner struct {
	hub     *room.Hub
	mu      sync.Mutex
	clips   []pipeline.Clip
	release chan struct{}
}

func (e *echoRunner) Run(_ context.Context, clip pipeline.Clip) error {
	e.mu.Lock()
	e.clips = append(e.clips, clip)
	e.mu.Unlock()
	if e.release != nil {
		<-e.release
	}
	e.hub.Broadcast(clip.RoomID, pipeline.Event{Type: pipeline.EventStatus, Message: "ran " + clip.Question})
	return nil
}

func (e *echoRunner) received() []pipeline.Clip {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]pipeline.Clip(nil), e.clips...)
}

type fixture struct {
	hub     *room.Hub
	runner  *echoRunner
	handler *Handler
	srv     *httptest.Server
}

func newFixture(t *testing.T, cfg HandlerConfig) *fixture {
	t.Helper()
	hub := room.NewHub()
	runner := &echoRunner{hub: hub}
	cfg.Hub = hub
	if cfg.Runner == nil {
		cfg.Runner = runner
	}
	h := NewHandler(cfg)
	mux := http.NewServeMux()
	mux.Handle("GET /ws/{room_id}", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{hub: hub, runner: runner, handler: h, srv: srv}
}

func (f *fixture) dial(t *testing.T, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	waitFor(t, func() bool { return f.hub.Count(roomID) > 0 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err = json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func audioMsg(question string, interviewID any, audio []byte) map[string]any {
	return map[string]any{
		"type":         "audio_data",
		"question":     question,
		"interview_id": interviewID,
		"data":         base64.StdEncoding.EncodeToString(audio),
	}
}

func TestHandler_RebroadcastsOtherMessagesUnchanged(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	a := f.dial(t, "room-1")
	b := f.dial(t, "room-1")
	waitFor(t, func() bool { return f.hub.Count("room-1") == 2 })

	raw := `{"type":"chat","text":"hello",  "extra":[1,2]}`
	if err := a.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*websocket.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != raw {
			t.Errorf("got %s, want %s", data, raw)
		}
	}
}

func TestHandler_DispatchesAudio(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	c := f.dial(t, "room-2")

	if err := c.WriteJSON(audioMsg("Tell me about Go", 42, []byte("webm"))); err != nil {
		t.Fatal(err)
	}
	msg := readJSON(t, c)
	if msg["type"] != "status" || msg["message"] != "ran Tell me about Go" {
		t.Errorf("unexpected event %v", msg)
	}

	clips := f.runner.received()
	if len(clips) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(clips))
	}
	got := clips[0]
	if got.RoomID != "room-2" || got.InterviewID != 42 || string(got.Audio) != "webm" {
		t.Errorf("unexpected clip %+v", got)
	}
}

func TestHandler_InterviewIDForms(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	c := f.dial(t, "room-3")

	for _, id := range []any{"17", nil} {
		if err := c.WriteJSON(audioMsg("q", id, []byte("x"))); err != nil {
			t.Fatal(err)
		}
		readJSON(t, c)
	}
	clips := f.runner.received()
	if len(clips) != 2 || clips[0].InterviewID != 17 || clips[1].InterviewID != 0 {
		t.Errorf("unexpected clips %+v", clips)
	}
}

func TestHandler_DataURLPrefix(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	c := f.dial(t, "room-4")

	msg := audioMsg("q", 1, nil)
	msg["data"] = "data:audio/webm;base64," + base64.StdEncoding.EncodeToString([]byte("abc"))
	if err := c.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}
	readJSON(t, c)
	if clips := f.runner.received(); len(clips) != 1 || string(clips[0].Audio) != "abc" {
		t.Errorf("unexpected clips %+v", clips)
	}
}

func TestHandler_InvalidAudioYieldsErrorEvent(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	c := f.dial(t, "room-5")

	msg := audioMsg("q", 1, nil)
	msg["data"] = "!!!not-base64!!!"
	if err := c.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}
	ev := readJSON(t, c)
	if ev["type"] != "error" || !strings.HasPrefix(ev["message"].(string), "Pipeline failed: invalid audio payload") {
		t.Errorf("unexpected event %v", ev)
	}
	if len(f.runner.received()) != 0 {
		t.Error("runner must not be invoked for invalid audio")
	}
}

func TestHandler_RejectsWhenPoolFull(t *testing.T) {
	f := newFixture(t, HandlerConfig{MaxConcurrent: 1})
	f.runner.release = make(chan struct{})
	c := f.dial(t, "room-6")

	if err := c.WriteJSON(audioMsg("first", 1, []byte("a"))); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(f.runner.received()) == 1 })

	if err := c.WriteJSON(audioMsg("second", 1, []byte("b"))); err != nil {
		t.Fatal(err)
	}
	ev := readJSON(t, c)
	if ev["type"] != "error" || !strings.Contains(ev["message"].(string), "server busy") {
		t.Errorf("unexpected event %v", ev)
	}

	close(f.runner.release)
	if ev = readJSON(t, c); ev["message"] != "ran first" {
		t.Errorf("unexpected event %v", ev)
	}
	f.handler.Wait()
}

func TestHandler_ReadLoopNotBlockedByRun(t *testing.T) {
	f := newFixture(t, HandlerConfig{MaxConcurrent: 2})
	f.runner.release = make(chan struct{})
	c := f.dial(t, "room-7")

	if err := c.WriteJSON(audioMsg("slow", 1, []byte("a"))); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if ev := readJSON(t, c); ev["type"] != "ping" {
		t.Errorf("relay blocked behind run, got %v", ev)
	}
	close(f.runner.release)
	f.handler.Wait()
}

func TestHandler_DisconnectLeavesRoom(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	c := f.dial(t, "room-8")
	c.Close()
	waitFor(t, func() bool { return f.hub.Count("room-8") == 0 })
	if len(f.hub.Rooms()) != 0 {
		t.Errorf("rooms left: %v", f.hub.Rooms())
	}
}

func TestHandler_RoomsAreIsolated(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	a := f.dial(t, "alpha")
	b := f.dial(t, "beta")

	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"note","n":1}`)); err != nil {
		t.Fatal(err)
	}
	readJSON(t, a)

	b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := b.ReadMessage(); err == nil {
		t.Errorf("beta received alpha traffic: %s", data)
	}
}

func TestHandler_OriginCheck(t *testing.T) {
	f := newFixture(t, HandlerConfig{AllowedOrigins: []string{"http://localhost:5173"}})
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/r"

	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected disallowed origin to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}

	header = http.Header{"Origin": {"http://localhost:5173"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestParseInterviewID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"null", 0, false},
		{"12", 12, false},
		{`"34"`, 34, false},
		{`" 5 "`, 5, false},
		{`"abc"`, 0, true},
		{"1.5", 0, true},
	}
	for _, tc := range tests {
		got, err := parseInterviewID(json.RawMessage(tc.raw))
		if (err != nil) != tc.wantErr {
			t.Errorf("%q: err = %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %d, want %d", tc.raw, got, tc.want)
		}
	}
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSink) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, string(data))
	return nil
}

func (r *recordingSink) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestHandler_CloseRejectsNewRuns(t *testing.T) {
	hub := room.NewHub()
	runner := &echoRunner{hub: hub, release: make(chan struct{})}
	h := NewHandler(HandlerConfig{Hub: hub, Runner: runner})
	sink := &recordingSink{}
	hub.Connect("room-c", sink)

	msg := func(q string) []byte {
		b, _ := json.Marshal(audioMsg(q, 1, []byte("a")))
		return b
	}
	h.dispatch("room-c", msg("before"))
	waitFor(t, func() bool { return len(runner.received()) == 1 })

	h.Close()
	h.dispatch("room-c", msg("after"))

	got := sink.received()
	if len(got) != 1 || !strings.Contains(got[0], "server shutting down") {
		t.Fatalf("expected one shutdown error event, got %v", got)
	}

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	close(runner.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after in-flight run finished")
	}
	if n := len(runner.received()); n != 1 {
		t.Errorf("runs after close: got %d clips, want 1", n)
	}
}

func TestHandler_CloseDropsConnections(t *testing.T) {
	f := newFixture(t, HandlerConfig{})
	c := f.dial(t, "room-d")

	f.handler.Close()
	f.handler.Close()

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed")
	}
	waitFor(t, func() bool { return f.hub.Count("room-d") == 0 })
	f.handler.Wait()
}
