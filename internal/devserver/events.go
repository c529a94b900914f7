package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// publish fans an event out to every live subscriber. Slow subscribers miss
// events instead of blocking the request that produced them.
func (s *Server) publish(eventType string, data any) {
	payload, err := json.Marshal(map[string]any{
		"type": eventType,
		"data": data,
		"at":   s.cfg.Clock.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.cfg.Logger.Errorf("devserver: encode %s event: %v", eventType, err)
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- payload:
		default:
			s.cfg.Logger.Warnf("devserver: subscriber %d is full, dropped %s", id, eventType)
		}
	}
}

func (s *Server) subscribe() (int, <-chan []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan []byte, subscriberBuffer)
	s.subscribers[id] = ch
	return id, ch
}

func (s *Server) unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subscribers, id)
}

// Subscribers reports the number of open event channels.
func (s *Server) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subscribers)
}

// streamToken accepts the token from the query string, which is all a
// browser EventSource can send, or from a bearer header.
func streamToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return bearerToken(r)
}

func (s *Server) readyEvent(acc *account) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type": "ready",
		"data": map[string]any{"user_id": acc.id},
	})
	return payload
}

// handleEventStream serves Server-Sent Events, or hands websocket upgrade
// requests to handleEventSocket so one path serves both transports.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleEventSocket(w, r)
		return
	}

	acc, _, err := s.authenticate(streamToken(r))
	if err != nil {
		writeText(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeText(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	id, events := s.subscribe()
	defer s.unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintf(w, "data: %s\n\n", s.readyEvent(acc))
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case payload := <-events:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleEventSocket(w http.ResponseWriter, r *http.Request) {
	acc, _, err := s.authenticate(streamToken(r))
	if err != nil {
		writeText(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Debugf("devserver: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.subscribe()
	defer s.unsubscribe(id)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, s.readyEvent(acc)); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case payload := <-events:
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
