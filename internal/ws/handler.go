package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/VISHAAL-1/ai-interview-platform/internal/metrics"
	"github.com/VISHAAL-1/ai-interview-platform/internal/pipeline"
	"github.com/VISHAAL-1/ai-interview-platform/internal/room"
)

const maxMessageBytes = 32 << 20

// Runner evaluates one clip.
type Runner interface {
	Run(ctx context.Context, clip pipeline.Clip) error
}

// HandlerConfig holds the shared collaborators for all connections.
type HandlerConfig struct {
	Hub    *room.Hub
	Runner Runner
	// BaseContext parents every run so a dropped connection does not
	// cancel work in flight. Defaults to context.Background.
	BaseContext    context.Context
	MaxConcurrent  int
	SendBuffer     int
	AllowedOrigins []string // empty allows any origin
}

// Handler manages room connections and dispatches audio onto a bounded run pool.
type Handler struct {
	cfg      HandlerConfig
	sem      chan struct{}
	runs     sync.WaitGroup
	upgrader websocket.Upgrader

	// mu guards closing and conns, and orders runs.Add before Wait.
	mu      sync.Mutex
	closing bool
	conns   map[*connSink]struct{}
}

// NewHandler creates a WebSocket handler with a run concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	h := &Handler{
		cfg:   cfg,
		sem:   make(chan struct{}, cfg.MaxConcurrent),
		conns: make(map[*connSink]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  16384,
		WriteBufferSize: 16384,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, err := url.Parse(origin); err != nil {
		return false
	}
	return slices.Contains(h.cfg.AllowedOrigins, origin)
}

// inbound is a client message. Only audio_data fields are interpreted.
type inbound struct {
	Type        string          `json:"type"`
	Question    string          `json:"question"`
	InterviewID json.RawMessage `json:"interview_id"`
	Data        string          `json:"data"`
}

// ServeHTTP upgrades the connection and joins it to the room in the path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	sink := newConnSink(conn, h.cfg.SendBuffer)
	if !h.track(sink) {
		sink.close()
		return
	}
	go sink.writePump()

	h.cfg.Hub.Connect(roomID, sink)
	metrics.ConnectionsActive.Inc()
	slog.Info("connection opened", "room_id", roomID, "remote", r.RemoteAddr)

	defer func() {
		h.cfg.Hub.Disconnect(roomID, sink)
		h.untrack(sink)
		sink.close()
		metrics.ConnectionsActive.Dec()
		slog.Info("connection closed", "room_id", roomID)
	}()

	h.readLoop(conn, roomID)
}

func (h *Handler) readLoop(conn *websocket.Conn, roomID string) {
	conn.SetReadLimit(maxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("read failed", "room_id", roomID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		h.dispatch(roomID, data)
	}
}

// dispatch routes one text frame. It never waits for a run to finish.
func (h *Handler) dispatch(roomID string, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("ignoring non-json message", "room_id", roomID, "error", err)
		return
	}
	if msg.Type != "audio_data" {
		h.cfg.Hub.BroadcastRaw(roomID, data)
		return
	}

	clip, err := decodeClip(roomID, msg)
	if err != nil {
		h.cfg.Hub.Broadcast(roomID, pipeline.ErrorEvent(err.Error()))
		return
	}

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		metrics.RunsRejected.Inc()
		h.cfg.Hub.Broadcast(roomID, pipeline.ErrorEvent("server shutting down"))
		return
	}
	h.runs.Add(1)
	h.mu.Unlock()

	select {
	case h.sem <- struct{}{}:
	default:
		h.runs.Done()
		metrics.RunsRejected.Inc()
		slog.Warn("run pool full", "room_id", roomID)
		h.cfg.Hub.Broadcast(roomID, pipeline.ErrorEvent("server busy, try again"))
		return
	}

	go func() {
		defer h.runs.Done()
		defer func() { <-h.sem }()
		_ = h.cfg.Runner.Run(h.cfg.BaseContext, clip)
	}()
}

// Close stops admitting runs and closes every open connection. Runs already
// admitted keep going; use Wait to drain them. Safe to call more than once.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closing = true
	sinks := make([]*connSink, 0, len(h.conns))
	for s := range h.conns {
		sinks = append(sinks, s)
	}
	h.mu.Unlock()

	for _, s := range sinks {
		s.close()
	}
}

// Wait blocks until every dispatched run has finished. Call it after Close
// so no run can be admitted concurrently.
func (h *Handler) Wait() {
	h.runs.Wait()
}

func (h *Handler) track(s *connSink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[s] = struct{}{}
	return true
}

func (h *Handler) untrack(s *connSink) {
	h.mu.Lock()
	delete(h.conns, s)
	h.mu.Unlock()
}

func decodeClip(roomID string, msg inbound) (pipeline.Clip, error) {
	interviewID, err := parseInterviewID(msg.InterviewID)
	if err != nil {
		return pipeline.Clip{}, fmt.Errorf("invalid interview_id: %w", err)
	}
	payload := msg.Data
	if i := strings.Index(payload, "base64,"); i >= 0 {
		payload = payload[i+len("base64,"):]
	}
	audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return pipeline.Clip{}, fmt.Errorf("invalid audio payload: %w", err)
	}
	if len(audio) == 0 {
		return pipeline.Clip{}, fmt.Errorf("invalid audio payload: empty")
	}
	return pipeline.Clip{
		RoomID:      roomID,
		InterviewID: interviewID,
		Question:    msg.Question,
		Audio:       audio,
	}, nil
}

// parseInterviewID accepts a JSON number, a numeric string, null or absence.
func parseInterviewID(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	return strconv.ParseInt(s, 10, 64)
}
