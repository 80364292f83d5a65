// Package notify implements the Notification Bus: server-sent-event
// delivery of consent lifecycle updates, grounded in the xdg-cloister
// approval server's handleEvents/FormatSSE pattern (the teacher repo's own
// push mechanism is a demo-quality WebSocket handler and was not used,
// since spec mandates SSE).
package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hushh-labs/consent-core/pkg/ledger"
	"github.com/hushh-labs/consent-core/pkg/metrics"
)

// EventType names the four SSE event kinds the bus can emit.
type EventType string

const (
	EventConsentUpdate  EventType = "consent_update"
	EventConsentResolved EventType = "consent_resolved"
	EventConsentTimeout EventType = "consent_timeout"
	EventHeartbeat      EventType = "heartbeat"
)

// Envelope is a single SSE message: event/id/data, per spec §4.6.
type Envelope struct {
	Type EventType
	ID   string
	Data interface{}
}

// FormatSSE renders an Envelope as a text/event-stream message.
func FormatSSE(e Envelope) string {
	data, err := json.Marshal(e.Data)
	if err != nil {
		data = []byte(`{}`)
	}
	return fmt.Sprintf("event: %s\nid: %s\ndata: %s\n\n", e.Type, e.ID, data)
}

// HeartbeatInterval matches the original SSE route's 30s cadence.
const HeartbeatInterval = 30 * time.Second

// PollInterval matches the original's 0.5s poll loop, bounding
// human-perceptible push latency to under one second per spec §4.6.
const PollInterval = 500 * time.Millisecond

// flushWriter is the minimal surface the bus needs from an HTTP response:
// write bytes and force them out immediately.
type flushWriter interface {
	io.Writer
	http.Flusher
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// eventKey is the dedup key used to guarantee at-most-once delivery per
// connection (spec invariant 8): request_id when present, else the token
// identifier (event_key on the ledger event).
func eventKey(e ledger.Event) string {
	if e.RequestID != "" {
		return e.RequestID
	}
	return e.EventKey
}

// Bus delivers ledger events to subscribed HTTP clients via SSE.
type Bus struct {
	ledger  *ledger.Ledger
	metrics *metrics.Collector
}

func NewBus(l *ledger.Ledger) *Bus {
	return &Bus{ledger: l, metrics: metrics.NewCollector()}
}

// Subscribe streams all consent updates for a user until the client
// disconnects. Each subscription tracks its own connection start time and
// a dedup set, per spec §4.6 — no cross-subscription shared state.
func (b *Bus) Subscribe(w http.ResponseWriter, r *http.Request, userID string) error {
	fw, flusher, err := prepareStream(w)
	if err != nil {
		return err
	}

	connectionStartMS := time.Now().UnixMilli()
	notified := make(map[string]bool)

	b.metrics.IncActiveSSESubscriptions("full", 1)
	defer b.metrics.IncActiveSSESubscriptions("full", -1)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-heartbeat.C:
			if _, err := io.WriteString(fw, FormatSSE(Envelope{Type: EventHeartbeat})); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			events, err := b.ledger.RecentEventsAfter(r.Context(), userID, connectionStartMS, 100)
			if err != nil {
				continue
			}
			for _, e := range events {
				key := eventKey(e)
				if notified[key] {
					continue
				}
				notified[key] = true
				if _, err := io.WriteString(fw, FormatSSE(Envelope{
					Type: EventConsentUpdate,
					ID:   key,
					Data: e,
				})); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

// SubscribeSpecific streams events scoped to a single request_id and
// terminates on the first resolving event (CONSENT_GRANTED/DENIED) or on a
// consent_timeout after timeout elapses, per spec §4.6.
func (b *Bus) SubscribeSpecific(w http.ResponseWriter, r *http.Request, userID, requestID string, timeout time.Duration) error {
	fw, flusher, err := prepareStream(w)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	b.metrics.IncActiveSSESubscriptions("poll", 1)
	defer b.metrics.IncActiveSSESubscriptions("poll", -1)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-heartbeat.C:
			if _, err := io.WriteString(fw, FormatSSE(Envelope{Type: EventHeartbeat})); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			resolved, err := b.ledger.Resolved(r.Context(), userID, requestID)
			if err == nil && resolved != nil {
				_, _ = io.WriteString(fw, FormatSSE(Envelope{
					Type: EventConsentResolved,
					ID:   requestID,
					Data: resolved,
				}))
				flusher.Flush()
				return nil
			}
			if time.Now().After(deadline) {
				_, _ = io.WriteString(fw, FormatSSE(Envelope{
					Type: EventConsentTimeout,
					ID:   requestID,
					Data: map[string]string{"request_id": requestID},
				}))
				flusher.Flush()
				return nil
			}
		}
	}
}

func prepareStream(w http.ResponseWriter) (flushWriter, http.Flusher, error) {
	setSSEHeaders(w)
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil, nil, fmt.Errorf("notify: response writer does not support flushing")
	}
	flusher.Flush()
	return w.(flushWriter), flusher, nil
}
