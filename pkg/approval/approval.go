// Package approval implements the Approval Coordinator: the request/approve/
// deny state machine that sits between a developer's consent request and the
// Token Codec, grounded in api/routes/developer.py's request_consent handler
// and the Consent Ledger's REQUESTED/GRANTED/DENIED event sequence.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hushh-labs/consent-core/internal/resilience"
	"github.com/hushh-labs/consent-core/pkg/ledger"
	"github.com/hushh-labs/consent-core/pkg/scope"
	"github.com/hushh-labs/consent-core/pkg/token"
)

// PollTimeout matches developer.py's 120-second MCP poll timeout.
const PollTimeout = 120 * time.Second

// DefaultCooldown matches the ledger's RecentlyDenied default.
const DefaultCooldown = 60 * time.Second

// Developer is a registered external caller of the consent API.
type Developer struct {
	Name          string
	ApprovedScopes []string // "*" means all scopes
}

// ApprovesScope reports whether dev is authorized to request scopeStr.
func (d Developer) ApprovesScope(scopeStr string) bool {
	for _, s := range d.ApprovedScopes {
		if s == "*" || s == scopeStr {
			return true
		}
	}
	return false
}

// DeveloperRegistry resolves a developer token to its registration record,
// grounded in shared.REGISTERED_DEVELOPERS.
type DeveloperRegistry interface {
	Lookup(developerToken string) (Developer, bool)
}

// MemoryRegistry is an in-memory DeveloperRegistry, suitable for the mock
// developer population a deployment seeds at startup.
type MemoryRegistry struct {
	byToken map[string]Developer
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{byToken: make(map[string]Developer)}
}

func (r *MemoryRegistry) Register(developerToken string, dev Developer) {
	r.byToken[developerToken] = dev
}

func (r *MemoryRegistry) Lookup(developerToken string) (Developer, bool) {
	dev, ok := r.byToken[developerToken]
	return dev, ok
}

// Status enumerates the outcomes RequestConsent can return, per spec §4.5.
// StatusRequested and StatusPendingExists share the wire value "pending":
// both leave exactly one open request, and they differ only in whether this
// call appended it.
type Status string

const (
	StatusAlreadyGranted  Status = "already_granted"
	StatusPendingExists   Status = "pending"
	StatusDeniedCooldown  Status = "denied_cooldown"
	StatusRequested       Status = "pending"
)

// Result is RequestConsent's outcome.
type Result struct {
	Status       Status
	Message      string
	ConsentToken string // set only on StatusAlreadyGranted
	ExpiresAtMS  int64  // set only on StatusAlreadyGranted
	RequestID    string // set on StatusRequested and StatusPendingExists
}

// Unauthorized is returned when the developer token is unregistered.
type Unauthorized struct{ Reason string }

func (e *Unauthorized) Error() string { return e.Reason }

// Forbidden is returned when a registered developer requests a scope it is
// not approved for.
type Forbidden struct{ Reason string }

func (e *Forbidden) Error() string { return e.Reason }

// Coordinator implements the request/approve/deny/wait-for-resolution state
// machine (spec §4.5), backed by the Consent Ledger as the single source of
// truth for pending and active state — it holds no mutable state of its own.
type Coordinator struct {
	ledger     *ledger.Ledger
	registry   DeveloperRegistry
	codec      *token.Codec
	now        func() time.Time
	postGrantRetry *resilience.Retry
}

// New builds a Coordinator. postGrantRetry bounds the wait RequestConsent's
// caller may perform after a grant before giving up, per spec §4.5's "bounded
// retry against the active projection" note.
func New(l *ledger.Ledger, registry DeveloperRegistry, codec *token.Codec) *Coordinator {
	return &Coordinator{
		ledger:   l,
		registry: registry,
		codec:    codec,
		now:      time.Now,
		postGrantRetry: resilience.NewRetry(resilience.RetryStrategy{
			MaxAttempts:     5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     500 * time.Millisecond,
			Multiplier:      1.0,
		}),
	}
}

func (c *Coordinator) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// RequestConsent implements developer.py's request_consent handler: verify
// the developer, verify scope approval, short-circuit on an existing grant
// or a pending request, refuse during a denial cooldown, and otherwise
// append a REQUESTED event with a fresh 8-character request id and a
// 120-second poll timeout.
func (c *Coordinator) RequestConsent(ctx context.Context, developerToken, userID, scopeStr string, expiryHours int) (Result, error) {
	dev, ok := c.registry.Lookup(developerToken)
	if !ok {
		return Result{}, &Unauthorized{Reason: "Unauthorized: Invalid developer token"}
	}

	normalized := scope.Normalize(scopeStr)
	if !dev.ApprovesScope(normalized) {
		return Result{}, &Forbidden{Reason: fmt.Sprintf("Scope '%s' not approved for this developer", normalized)}
	}

	active, err := c.ledger.Active(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	for _, a := range active {
		if a.Scope == normalized {
			return Result{
				Status:       StatusAlreadyGranted,
				Message:      "User has already granted consent for this scope.",
				ConsentToken: a.TokenID,
				ExpiresAtMS:  a.ExpiresAtMS,
			}, nil
		}
	}

	pending, err := c.ledger.Pending(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	for _, p := range pending {
		if p.Scope == normalized {
			return Result{
				Status:    StatusPendingExists,
				Message:   "Consent request already pending. Waiting for user approval.",
				RequestID: p.RequestID,
			}, nil
		}
	}

	denied, err := c.ledger.RecentlyDenied(ctx, userID, normalized, DefaultCooldown)
	if err != nil {
		return Result{}, err
	}
	if denied {
		return Result{
			Status:  StatusDeniedCooldown,
			Message: "This scope was recently denied; please wait before requesting again.",
		}, nil
	}

	requestID := uuid.NewString()[:8]
	nowMS := c.clock().UnixMilli()

	_, err = c.ledger.Append(ctx, ledger.Event{
		EventKey:         "req_" + requestID,
		UserID:           userID,
		AgentID:          dev.Name,
		Scope:            normalized,
		Action:           ledger.ActionRequested,
		RequestID:        requestID,
		ScopeDescription: scope.Describe(normalized),
		IssuedAt:         nowMS,
		PollTimeoutAt:    nowMS + PollTimeout.Milliseconds(),
		Metadata: map[string]string{
			"developer_token": developerToken,
			"expiry_hours":    fmt.Sprintf("%d", expiryHours),
		},
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Status:    StatusRequested,
		Message:   fmt.Sprintf("Consent request submitted. User must approve in their dashboard. Request ID: %s", requestID),
		RequestID: requestID,
	}, nil
}

// Grant records the user's approval of a pending request and returns the
// newly issued token, per spec §4.5's GRANTED transition.
func (c *Coordinator) Grant(ctx context.Context, userID, requestID string, ttl time.Duration) (*token.Token, error) {
	pending, err := c.findPending(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	tok := c.codec.Issue(userID, pending.AgentID, pending.Scope, ttl)

	_, err = c.ledger.Append(ctx, ledger.Event{
		EventKey:         tok.Signature,
		UserID:           userID,
		AgentID:          pending.AgentID,
		Scope:            pending.Scope,
		Action:           ledger.ActionConsentGranted,
		RequestID:        requestID,
		ScopeDescription: pending.ScopeDescription,
		IssuedAt:         tok.IssuedAt,
		ExpiresAt:        tok.ExpiresAt,
		TokenRaw:         tok.Raw,
	})
	if err != nil {
		return nil, err
	}

	return tok, nil
}

// Deny records the user's refusal of a pending request.
func (c *Coordinator) Deny(ctx context.Context, userID, requestID string) error {
	pending, err := c.findPending(ctx, userID, requestID)
	if err != nil {
		return err
	}

	_, err = c.ledger.Append(ctx, ledger.Event{
		EventKey:         "deny_" + requestID,
		UserID:           userID,
		AgentID:          pending.AgentID,
		Scope:            pending.Scope,
		Action:           ledger.ActionConsentDenied,
		RequestID:        requestID,
		ScopeDescription: pending.ScopeDescription,
		IssuedAt:         c.clock().UnixMilli(),
	})
	return err
}

func (c *Coordinator) findPending(ctx context.Context, userID, requestID string) (ledger.PendingRequest, error) {
	pending, err := c.ledger.Pending(ctx, userID)
	if err != nil {
		return ledger.PendingRequest{}, err
	}
	for _, p := range pending {
		if p.RequestID == requestID {
			return p, nil
		}
	}
	return ledger.PendingRequest{}, fmt.Errorf("approval: no pending request %q for user %q", requestID, userID)
}

// AwaitGrant polls the active projection for up to five bounded attempts
// after a grant is recorded elsewhere, for synchronous callers that would
// rather block briefly than poll the SSE stream themselves; no HTTP handler
// in this module calls it. Per spec §4.5 this is a convenience,
// not the primary notification path — the Notification Bus is.
func (c *Coordinator) AwaitGrant(ctx context.Context, userID, scopeStr string) (bool, error) {
	found := false
	err := c.postGrantRetry.Execute(ctx, func() error {
		if c.ledger.IsActive(ctx, userID, scopeStr) {
			found = true
			return nil
		}
		return fmt.Errorf("approval: scope not yet active")
	})
	if found {
		return true, nil
	}
	return false, err
}
