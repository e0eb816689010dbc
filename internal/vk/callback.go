package vk

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ivolkov/matchbot/pkg/logging"
)

// CallbackSource is the Callback API (webhook) event source. Its Handler is
// mounted on the HTTP router; decoded message events come out of Events.
type CallbackSource struct {
	confirmation string
	secret       string
	logger       *logging.Logger

	events chan Event

	mu     sync.Mutex
	closed bool
}

// NewCallbackSource creates a webhook event source. confirmation is the
// string VK expects back during endpoint verification; secret, when set, is
// required on every delivery.
func NewCallbackSource(confirmation, secret string, buffer int, logger *logging.Logger) *CallbackSource {
	if logger == nil {
		logger = logging.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &CallbackSource{
		confirmation: confirmation,
		secret:       secret,
		logger:       logger,
		events:       make(chan Event, buffer),
	}
}

// Events returns the stream of decoded message events.
func (s *CallbackSource) Events(_ context.Context) <-chan Event {
	return s.events
}

// Close stops the stream. The HTTP handler keeps answering "ok" so VK does
// not mark the endpoint broken during shutdown; events arriving after Close
// are dropped.
func (s *CallbackSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

type callbackEnvelope struct {
	Type    string          `json:"type"`
	GroupID int             `json:"group_id"`
	Secret  string          `json:"secret"`
	Object  json.RawMessage `json:"object"`
}

// ServeHTTP implements the Callback API contract: answer confirmation
// requests with the configured string, everything else with "ok".
func (s *CallbackSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env callbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.logger.Error("callback decode failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if env.Type == "confirmation" {
		w.Write([]byte(s.confirmation))
		return
	}

	if s.secret != "" && env.Secret != s.secret {
		s.logger.Warn("callback with wrong secret dropped", "type", env.Type)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if env.Type == "message_new" {
		// Re-wrap so the decoder sees the same shape long poll delivers.
		raw, _ := json.Marshal(map[string]any{"type": env.Type, "object": json.RawMessage(env.Object)})
		if event, ok := decodeMessageNew(raw); ok {
			s.deliver(event)
		}
	}

	w.Write([]byte("ok"))
}

func (s *CallbackSource) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("callback event dropped, queue full", "user_id", event.UserID)
	}
}
