// Package ledger implements the Consent Ledger: an append-only event store
// with "latest per group" projections for pending requests, active tokens,
// and history. Adapted from pkg/audit's entry/logger idiom, retargeted to
// the consent event model and its five projections.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Action enumerates the consent ledger's event kinds.
type Action string

const (
	ActionRequested          Action = "REQUESTED"
	ActionConsentGranted     Action = "CONSENT_GRANTED"
	ActionConsentDenied      Action = "CONSENT_DENIED"
	ActionRevoked            Action = "REVOKED"
	ActionOperationPerformed Action = "OPERATION_PERFORMED"
)

// Event is a single append-only ledger record. Scope is stored exactly as
// granted; projections compare it by string equality only, never coerced
// to a broader form.
type Event struct {
	ID                int64
	EventKey          string // token signature, request id, or synthetic id
	UserID            string
	AgentID           string
	Scope             string
	Action            Action
	RequestID         string // nullable; correlates REQUESTED with its resolution
	ScopeDescription  string
	IssuedAt          int64 // ms since epoch
	ExpiresAt         int64 // ms since epoch, 0 if n/a
	PollTimeoutAt     int64 // ms since epoch, 0 if n/a
	TokenRaw          string // full HCT wire token; set only on CONSENT_GRANTED events
	Metadata          map[string]string
}

// PendingRequest is the projection of the latest REQUESTED event per
// request_id, not yet past its poll timeout.
type PendingRequest struct {
	RequestID        string
	AgentID          string
	Scope            string
	ScopeDescription string
	RequestedAtMS    int64
	PollTimeoutAtMS  int64
}

// ActiveToken is the projection of the latest GRANTED event per
// (user_id, scope_str), not superseded by a REVOKED event, not expired.
type ActiveToken struct {
	Scope            string
	ScopeDescription string
	TokenID          string // the full HCT wire token, valid against Codec.Validate
	IssuedAtMS       int64
	ExpiresAtMS      int64
}

// Page is a paginated slice of history events.
type Page struct {
	Events     []Event
	Page       int
	Limit      int
	Total      int  // exact when the backend supports counted queries
	TotalExact bool
}

// Store is the Consent Ledger's storage contract. Both the in-memory and
// Postgres-backed implementations satisfy this interface; projections are
// computed the same way regardless of backend ("portable post-processing
// fallback" per spec §4.4) so behavior never depends on which backend is
// wired in.
type Store interface {
	Append(ctx context.Context, e Event) (int64, error)
	AllForUser(ctx context.Context, userID string) ([]Event, error)
	// AllForUserAfter supports the Notification Bus's recent_events_after
	// query directly at the storage layer for efficiency; the in-memory
	// backend just filters AllForUser.
	AllForUserAfter(ctx context.Context, userID string, afterMS int64) ([]Event, error)
}

// Ledger wraps a Store with the projection operations named in spec §4.4.
type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func (l *Ledger) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func nowMS(l *Ledger) int64 { return l.clock().UnixMilli() }

// Append unconditionally inserts an event. No in-place mutation ever
// happens anywhere in this package.
func (l *Ledger) Append(ctx context.Context, e Event) (int64, error) {
	return l.store.Append(ctx, e)
}

// sortStrict orders events by issued_at, ties broken by id, per spec
// §4.4's strict event order requirement.
func sortStrict(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].IssuedAt != events[j].IssuedAt {
			return events[i].IssuedAt < events[j].IssuedAt
		}
		return events[i].ID < events[j].ID
	})
}

// latestPerRequestID reduces events to the last event per request_id, in
// strict chronological order.
func latestPerRequestID(events []Event) map[string]Event {
	sortStrict(events)
	latest := make(map[string]Event)
	for _, e := range events {
		if e.RequestID == "" {
			continue
		}
		latest[e.RequestID] = e
	}
	return latest
}

// latestPerScope reduces events to the last event per scope, restricted to
// the actions relevant to the active-token projection.
func latestPerScope(events []Event, actions ...Action) map[string]Event {
	sortStrict(events)
	allowed := make(map[Action]bool, len(actions))
	for _, a := range actions {
		allowed[a] = true
	}
	latest := make(map[string]Event)
	for _, e := range events {
		if !allowed[e.Action] {
			continue
		}
		latest[e.Scope] = e
	}
	return latest
}

// Pending returns the latest-per-request_id REQUESTED events whose poll
// timeout has not yet elapsed.
func (l *Ledger) Pending(ctx context.Context, userID string) ([]PendingRequest, error) {
	events, err := l.store.AllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := nowMS(l)

	latest := latestPerRequestID(events)
	var out []PendingRequest
	for _, e := range latest {
		if e.Action == ActionRequested && e.PollTimeoutAt > now {
			out = append(out, PendingRequest{
				RequestID:        e.RequestID,
				AgentID:          e.AgentID,
				Scope:            e.Scope,
				ScopeDescription: e.ScopeDescription,
				RequestedAtMS:    e.IssuedAt,
				PollTimeoutAtMS:  e.PollTimeoutAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAtMS < out[j].RequestedAtMS })
	return out, nil
}

// Active returns the latest-per-(user,scope) GRANTED events not superseded
// by a REVOKED event and not expired.
func (l *Ledger) Active(ctx context.Context, userID string) ([]ActiveToken, error) {
	events, err := l.store.AllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := nowMS(l)

	latest := latestPerScope(events, ActionConsentGranted, ActionRevoked)
	var out []ActiveToken
	for _, e := range latest {
		if e.Action == ActionConsentGranted && e.ExpiresAt > now {
			out = append(out, ActiveToken{
				Scope:            e.Scope,
				ScopeDescription: e.ScopeDescription,
				TokenID:          e.TokenRaw,
				IssuedAtMS:       e.IssuedAt,
				ExpiresAtMS:      e.ExpiresAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out, nil
}

// IsActive is the existence-only form of Active, for a single scope.
func (l *Ledger) IsActive(ctx context.Context, userID, scopeStr string) bool {
	events, err := l.store.AllForUser(ctx, userID)
	if err != nil {
		return false
	}
	now := nowMS(l)

	latest := latestPerScope(events, ActionConsentGranted, ActionRevoked)
	e, ok := latest[scopeStr]
	return ok && e.Action == ActionConsentGranted && e.ExpiresAt > now
}

// History returns a page of all events for a user, most recent first.
func (l *Ledger) History(ctx context.Context, userID string, page, limit int) (Page, error) {
	events, err := l.store.AllForUser(ctx, userID)
	if err != nil {
		return Page{}, err
	}
	sortStrict(events)
	// reverse for most-recent-first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start > len(events) {
		start = len(events)
	}
	end := start + limit
	if end > len(events) {
		end = len(events)
	}

	return Page{
		Events:     events[start:end],
		Page:       page,
		Limit:      limit,
		Total:      len(events),
		TotalExact: true,
	}, nil
}

// Resolved returns the latest GRANTED/DENIED event for a request_id, if any.
func (l *Ledger) Resolved(ctx context.Context, userID, requestID string) (*Event, error) {
	events, err := l.store.AllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortStrict(events)

	var latest *Event
	for i := range events {
		e := events[i]
		if e.RequestID != requestID {
			continue
		}
		if e.Action != ActionConsentGranted && e.Action != ActionConsentDenied {
			continue
		}
		cp := e
		latest = &cp
	}
	return latest, nil
}

// RecentEventsAfter returns events visible to the Notification Bus: action
// in {REQUESTED, CONSENT_GRANTED, CONSENT_DENIED, REVOKED}, issued after
// afterMS, oldest first, capped at limit.
func (l *Ledger) RecentEventsAfter(ctx context.Context, userID string, afterMS int64, limit int) ([]Event, error) {
	events, err := l.store.AllForUserAfter(ctx, userID, afterMS)
	if err != nil {
		return nil, err
	}
	var relevant []Event
	for _, e := range events {
		switch e.Action {
		case ActionRequested, ActionConsentGranted, ActionConsentDenied, ActionRevoked:
			relevant = append(relevant, e)
		}
	}
	sortStrict(relevant)
	if limit > 0 && len(relevant) > limit {
		relevant = relevant[:limit]
	}
	return relevant, nil
}

// RecentlyDenied reports whether any CONSENT_DENIED event for (user, scope)
// falls within the cooldown window, to suppress re-request spam. This
// matches the Python original's was_recently_denied exactly: it queries for
// the existence of a CONSENT_DENIED row newer than the cutoff directly,
// regardless of any GRANTED or REVOKED event that may have happened since
// — it is not a "latest event wins" projection. Default cooldown is 60s,
// matching the original's default.
func (l *Ledger) RecentlyDenied(ctx context.Context, userID, scopeStr string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	events, err := l.store.AllForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	cutoff := nowMS(l) - cooldown.Milliseconds()
	for _, e := range events {
		if e.Scope == scopeStr && e.Action == ActionConsentDenied && e.IssuedAt > cutoff {
			return true, nil
		}
	}
	return false, nil
}

// LogOperation appends an OPERATION_PERFORMED event for a vault-owner
// self-operation, distinct from token lifecycle events (spec §12 item 1 /
// consent_db.py::log_operation).
func (l *Ledger) LogOperation(ctx context.Context, userID, operation, target string, metadata map[string]string) (int64, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["operation"] = operation
	if target != "" {
		metadata["target"] = target
	}
	return l.store.Append(ctx, Event{
		EventKey: "op_" + uuid.NewString(),
		UserID:   userID,
		AgentID:  "self",
		Scope:    "vault.owner",
		Action:   ActionOperationPerformed,
		IssuedAt: nowMS(l),
		Metadata: metadata,
	})
}
