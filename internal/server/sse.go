package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// streamBacklog is how many recent events are kept for Last-Event-ID
	// replay.
	streamBacklog = 500

	streamKeepalive = 15 * time.Second
)

type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// Stream fans published lifecycle events out to SSE clients and keeps a
// bounded backlog for reconnecting clients. It implements events.Publisher.
type Stream struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	lastID  uint64
	backlog []streamEvent // oldest first, at most streamBacklog entries
}

type streamClient struct {
	topics []string
	ch     chan streamEvent
}

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{clients: make(map[*streamClient]struct{})}
}

// Publish implements events.Publisher.
func (h *Stream) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	h.broadcast(topic, payload)
	return nil
}

func (h *Stream) Close() error { return nil }

func (h *Stream) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	evt := streamEvent{ID: h.lastID, Topic: topic, Data: payload}
	h.backlog = append(h.backlog, evt)
	if len(h.backlog) > streamBacklog {
		h.backlog = h.backlog[len(h.backlog)-streamBacklog:]
	}

	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			// slow client, drop
		}
	}
}

// subscribe registers a client and returns the backlog after lastID that
// matches its topics. Registration and replay happen under one lock so no
// event is both replayed and delivered.
func (h *Stream) subscribe(topics []string, lastID uint64) (*streamClient, []streamEvent) {
	c := &streamClient{topics: topics, ch: make(chan streamEvent, 64)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}

	var replay []streamEvent
	if lastID > 0 {
		for _, evt := range h.backlog {
			if evt.ID > lastID && c.wants(evt.Topic) {
				replay = append(replay, evt)
			}
		}
	}
	return c, replay
}

func (h *Stream) unsubscribe(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (c *streamClient) wants(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, p := range c.topics {
		if matchTopic(p, topic) {
			return true
		}
	}
	return false
}

// matchTopic matches a dot-separated topic against a NATS-style pattern:
// "*" matches one token, a trailing ">" matches one or more.
func matchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	tok := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(tok)
		}
		if i >= len(tok) || (p != "*" && p != tok[i]) {
			return false
		}
	}
	return len(pat) == len(tok)
}

// handleEventStream handles GET /v1/events/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	client, replay := s.hub.subscribe(topics, lastID)
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, evt := range replay {
		writeStreamEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, evt streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
