package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VISHAAL-1/ai-interview-platform/internal/health"
	"github.com/VISHAAL-1/ai-interview-platform/internal/room"
	"github.com/VISHAAL-1/ai-interview-platform/internal/store"
	"github.com/VISHAAL-1/ai-interview-platform/internal/trace"
)

// defaultTraceRunLimit is how many runs are returned when the caller omits
// the ?limit= query parameter.
const defaultTraceRunLimit = 20

type evaluationReader interface {
	ListEvaluations(ctx context.Context, interviewID int64) ([]store.Evaluation, error)
	Summarize(ctx context.Context, interviewID int64) (*store.Summary, error)
}

type traceReader interface {
	ListRuns(ctx context.Context, roomID string, limit, offset int) ([]trace.Run, int, error)
	GetRun(ctx context.Context, runID string) (*trace.Run, []trace.Span, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type deps struct {
	wsHandler http.Handler
	hub       *room.Hub
	evals     evaluationReader // nil without a database
	traces    traceReader
	db        pinger
	tools     *health.Registry
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("GET /ws/{room_id}", d.wsHandler)
	mux.HandleFunc("GET /health", d.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/rooms", d.handleRooms)
	mux.HandleFunc("GET /api/interviews/{id}/evaluations", d.handleEvaluations)
	mux.HandleFunc("GET /api/interviews/{id}/summary", d.handleSummary)
	registerTraceRoutes(mux, d.traces)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func (d deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "database": "disabled"}
	if d.tools != nil {
		infos := d.tools.StatusAll(r.Context())
		resp["services"] = infos
		if !health.Ready(infos) {
			resp["status"] = "degraded"
		}
	}
	if d.db != nil {
		resp["database"] = "ok"
		if err := d.db.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d deps) handleRooms(w http.ResponseWriter, r *http.Request) {
	ids := d.hub.Rooms()
	slices.Sort(ids)
	rooms := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, map[string]any{"room_id": id, "connections": d.hub.Count(id)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func interviewID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid interview id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (d deps) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	if d.evals == nil {
		http.Error(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	id, ok := interviewID(w, r)
	if !ok {
		return
	}
	evals, err := d.evals.ListEvaluations(r.Context(), id)
	if err != nil {
		slog.Error("list evaluations", "interview_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interview_id": id, "evaluations": evals})
}

func (d deps) handleSummary(w http.ResponseWriter, r *http.Request) {
	if d.evals == nil {
		http.Error(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	id, ok := interviewID(w, r)
	if !ok {
		return
	}
	sum, err := d.evals.Summarize(r.Context(), id)
	if err != nil {
		slog.Error("summarize interview", "interview_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func registerTraceRoutes(mux *http.ServeMux, traces traceReader) {
	mux.HandleFunc("GET /api/traces/rooms/{room_id}/runs", func(w http.ResponseWriter, r *http.Request) {
		if traces == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceRunLimit)
		offset := queryInt(r, "offset", 0)
		runs, total, err := traces.ListRuns(r.Context(), r.PathValue("room_id"), limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "total": total})
	})

	mux.HandleFunc("GET /api/traces/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if traces == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		run, spans, err := traces.GetRun(r.Context(), r.PathValue("id"))
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "spans": spans})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// withCORS allows browser clients from the configured origins to read the
// JSON API. An empty list allows any origin.
func withCORS(origins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(origins) == 0 || slices.Contains(origins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
