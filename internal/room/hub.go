// Package room fans messages out to every connection joined to a room.
package room

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/VISHAAL-1/ai-interview-platform/internal/metrics"
)

// Sink receives serialized messages for one connection. Implementations
// must be comparable (typically a pointer) and must not block for long.
type Sink interface {
	Send(data []byte) error
}

// Typed messages report their type for metrics.
type Typed interface {
	MessageType() string
}

// Hub is a mutex-guarded registry of room id to connected sinks.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Sink]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: map[string]map[Sink]struct{}{}}
}

// Connect adds sink to roomID, creating the room on first join.
func (h *Hub) Connect(roomID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sinks, ok := h.rooms[roomID]
	if !ok {
		sinks = map[Sink]struct{}{}
		h.rooms[roomID] = sinks
		metrics.RoomsActive.Inc()
	}
	sinks[sink] = struct{}{}
}

// Disconnect removes sink; the room is deleted once empty. Unknown sinks
// and rooms are ignored.
func (h *Hub) Disconnect(roomID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomID, sink)
}

func (h *Hub) removeLocked(roomID string, sink Sink) bool {
	sinks, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok = sinks[sink]; !ok {
		return false
	}
	delete(sinks, sink)
	if len(sinks) == 0 {
		delete(h.rooms, roomID)
		metrics.RoomsActive.Dec()
	}
	return true
}

// Broadcast serializes msg once and delivers it to every sink in roomID.
// Broadcasting to an empty or unknown room is a no-op.
func (h *Hub) Broadcast(roomID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast marshal", "room_id", roomID, "error", err)
		return
	}
	label := "relay"
	if t, ok := msg.(Typed); ok {
		label = t.MessageType()
	}
	metrics.Broadcasts.WithLabelValues(label).Inc()
	h.BroadcastRaw(roomID, data)
}

// BroadcastRaw delivers already-serialized data. Sends happen outside the
// lock on a snapshot of the room; sinks whose Send fails are removed.
func (h *Hub) BroadcastRaw(roomID string, data []byte) {
	h.mu.RLock()
	snapshot := make([]Sink, 0, len(h.rooms[roomID]))
	for s := range h.rooms[roomID] {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	var failed []Sink
	for _, s := range snapshot {
		if err := s.Send(data); err != nil {
			slog.Warn("sink send failed, removing", "room_id", roomID, "error", err)
			failed = append(failed, s)
		}
	}
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	for _, s := range failed {
		if h.removeLocked(roomID, s) {
			metrics.SinkDropped.Inc()
		}
	}
	h.mu.Unlock()
}

// Count returns the number of sinks in roomID.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Rooms returns the ids of all non-empty rooms.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}
