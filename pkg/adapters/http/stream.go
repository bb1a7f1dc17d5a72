package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/pipeprep"
	"github.com/aretw0/pipeprep/pkg/domain"
)

// Event is a server-sent event.
type Event struct {
	Name string
	Data string

	diff *domain.SessionDiff
}

// StreamManager fans session diffs and notifications out to SSE subscribers.
// It implements pipeprep.Listener.
type StreamManager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[chan<- Event]struct{} // SessionID -> Set of Channels
}

var _ pipeprep.Listener = (*StreamManager)(nil)

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[string]map[chan<- Event]struct{}),
	}
}

func (sm *StreamManager) Subscribe(sessionID string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- Event]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Subscribers returns the number of open streams of a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

func (sm *StreamManager) Broadcast(sessionID string, ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- ev:
		default:
			// Slow client
			sm.logger.Warn("SSE: Client buffer full, dropping event", "session_id", sessionID, "event", ev.Name)
		}
	}
}

// SessionChanged broadcasts a "diff" event.
func (sm *StreamManager) SessionChanged(sessionID string, diff *domain.SessionDiff) {
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		sm.logger.Error("SSE: Diff encode failed", "session_id", sessionID, "error", err)
		return
	}
	sm.Broadcast(sessionID, Event{Name: "diff", Data: string(data), diff: diff})
}

// Notified broadcasts a "notification" event.
func (sm *StreamManager) Notified(sessionID string, n domain.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	sm.Broadcast(sessionID, Event{Name: "notification", Data: string(data)})
}

// watches reports whether a diff touches any of the watched fields.
// Notifications always pass.
func watches(ev Event, fields []string) bool {
	if len(fields) == 0 || ev.diff == nil {
		return true
	}
	d := ev.diff
	for _, field := range fields {
		switch strings.TrimSpace(field) {
		case "step":
			if d.Step != nil {
				return true
			}
		case "status":
			if d.Status != nil || d.RunID != nil {
				return true
			}
		case "datasource":
			if d.Datasource != nil {
				return true
			}
		case "credential":
			if d.CredentialID != nil {
				return true
			}
		case "sources":
			if d.Sources != nil {
				return true
			}
		case "inputs":
			if len(d.Inputs) > 0 {
				return true
			}
		}
	}
	return false
}

// SubscribeEvents handles the GET /events request (SSE).
// Without session_id it streams graph reloads when a watcher is configured.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.streamReloads(w, r, flusher)
		return
	}

	var watchList []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		watchList = strings.Split(raw, ",")
	}

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	s.logger.Info("SSE: Subscribing to session updates", "session_id", sessionID)
	writeSSEHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", sessionID)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !watches(ev, watchList) {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) streamReloads(w http.ResponseWriter, r *http.Request, flusher http.Flusher) {
	if s.watcher == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "graph watching not enabled"})
		return
	}
	events, err := s.watcher.Watch(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSSEHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: reload\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}
