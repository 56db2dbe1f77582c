package agent

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/debuck1718/smartstudent/internal/middleware"
)

const maxPushBody = 64 << 10

// Router mounts the agent's control endpoints and the page channel; every
// other request goes to the cache-first proxy.
func (a *Agent) Router(pageChannel http.Handler, limiter *middleware.RateLimiter) http.Handler {
	limit := middleware.RateLimit(limiter, middleware.ByIPAndPath, 60, time.Minute)

	mux := http.NewServeMux()
	mux.Handle("GET /agent/ws", pageChannel)
	mux.Handle("POST /agent/push", limit(http.HandlerFunc(a.handlePush)))
	mux.Handle("POST /agent/sync", limit(http.HandlerFunc(a.handleSync)))
	mux.HandleFunc("GET /agent/health", a.handleHealth)
	mux.Handle("/", a.cache)

	return middleware.RequestLogger(a.logger)(mux)
}

func (a *Agent) handlePush(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}
	if err := a.Push(r.Context(), data); err != nil {
		if errors.Is(err, ErrMalformedPush) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *Agent) handleSync(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		tag = SyncTag
	}
	res, err := a.Sync(r.Context(), tag)
	if err != nil {
		a.logger.Error("sync", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "drain failed"})
		return
	}
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type health struct {
	State            State `json:"state"`
	Pages            int   `json:"pages"`
	Online           bool  `json:"online"`
	PendingReminders int   `json:"pending_reminders"`
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{
		State:            a.State(),
		Pages:            a.pages.ClientCount(),
		Online:           a.Online(),
		PendingReminders: a.PendingReminders(),
	}
	status := http.StatusOK
	if h.State != StateActivated {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
