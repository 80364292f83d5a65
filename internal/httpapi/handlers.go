// Package httpapi wires the gin HTTP surface for the consent core: the
// developer-facing request-consent endpoint, the self-issuance/session
// endpoints, the ledger read endpoints, and the two SSE streams — the exact
// route table in spec §6, grounded in api/routes/developer.py and
// api/routes/session.py.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hushh-labs/consent-core/internal/tracing"
	"github.com/hushh-labs/consent-core/pkg/approval"
	"github.com/hushh-labs/consent-core/pkg/ledger"
	"github.com/hushh-labs/consent-core/pkg/metrics"
	"github.com/hushh-labs/consent-core/pkg/notify"
	"github.com/hushh-labs/consent-core/pkg/revocation"
	"github.com/hushh-labs/consent-core/pkg/scope"
	"github.com/hushh-labs/consent-core/pkg/token"
)

// SessionTTL is the fixed lifetime of a self-issued session (vault-owner or
// otherwise) token, matching session.py's 24-hour grant.
const SessionTTL = 24 * time.Hour

// Handlers bundles the collaborators every route needs.
type Handlers struct {
	Codec       *token.Codec
	Ledger      *ledger.Ledger
	Coordinator *approval.Coordinator
	Revocation  *revocation.Index
	Bus         *notify.Bus
	Logger      *logrus.Logger
	Tracer      *tracing.TracerProvider
	Metrics     *metrics.Collector
	PollTimeout time.Duration
}

// metricsCollector returns h.Metrics, or a fresh no-registry-dependent
// Collector if the caller didn't wire one (keeps handlers nil-safe in
// tests that don't care about metrics).
func (h *Handlers) metricsCollector() *metrics.Collector {
	if h.Metrics != nil {
		return h.Metrics
	}
	return metrics.NewCollector()
}

func (h *Handlers) log(c *gin.Context) *logrus.Entry {
	requestID, _ := c.Get("RequestID")
	return h.Logger.WithField("request_id", requestID)
}

// RequestConsent implements POST /api/v1/request-consent.
func (h *Handlers) RequestConsent(c *gin.Context) {
	var body RequestConsentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	result, err := h.Coordinator.RequestConsent(c.Request.Context(), body.DeveloperToken, body.UserID, body.Scope, body.ExpiryHours)
	if err != nil {
		h.respondCoordinatorError(c, err)
		return
	}
	h.metricsCollector().RecordApprovalOutcome(string(result.Status))

	c.JSON(http.StatusOK, ConsentResponse{
		Status:       string(result.Status),
		Message:      result.Message,
		ConsentToken: result.ConsentToken,
		ExpiresAt:    result.ExpiresAtMS,
		RequestID:    result.RequestID,
	})
}

func (h *Handlers) respondCoordinatorError(c *gin.Context, err error) {
	var unauth *approval.Unauthorized
	var forbidden *approval.Forbidden
	switch {
	case errors.As(err, &unauth):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": unauth.Reason})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": forbidden.Reason})
	default:
		h.log(c).WithError(err).Error("request-consent failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Ledger unavailable"})
	}
}

// IssueToken implements POST /api/consent/issue-token: self-issuance for an
// already-authenticated principal. "session" is special-cased to the
// master scope, mirroring session.py's ConsentScope.VAULT_OWNER grant.
func (h *Handlers) IssueToken(c *gin.Context) {
	var body IssueTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	scopeStr := body.Scope
	if scopeStr == "session" {
		scopeStr = scope.MasterScope
	} else {
		scopeStr = scope.Normalize(scopeStr)
	}

	tok := h.Codec.Issue(body.UserID, "self", scopeStr, SessionTTL)
	timer := h.metricsCollector().NewLedgerTimer(string(ledger.ActionConsentGranted))

	_, err := h.Ledger.Append(c.Request.Context(), ledger.Event{
		EventKey:         tok.Signature,
		UserID:           body.UserID,
		AgentID:          "self",
		Scope:            scopeStr,
		Action:           ledger.ActionConsentGranted,
		ScopeDescription: scope.Describe(scopeStr),
		IssuedAt:         tok.IssuedAt,
		ExpiresAt:        tok.ExpiresAt,
		TokenRaw:         tok.Raw,
	})
	timer.Stop()
	if err != nil {
		h.metricsCollector().RecordTokenOperation("issue", "error")
		h.log(c).WithError(err).Error("issue-token: ledger append failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Ledger unavailable"})
		return
	}
	h.metricsCollector().RecordTokenOperation("issue", "ok")

	c.JSON(http.StatusOK, SessionTokenResponse{
		SessionToken: tok.Raw,
		IssuedAt:     tok.IssuedAt,
		ExpiresAt:    tok.ExpiresAt,
		Scope:        body.Scope,
	})
}

// Active implements GET /api/consent/active?userId=.
func (h *Handlers) Active(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "userId is required"})
		return
	}

	active, err := h.Ledger.Active(c.Request.Context(), userID)
	if err != nil {
		h.log(c).WithError(err).Error("active: ledger read failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active})
}

// History implements GET /api/consent/history?userId=&page=&limit=.
func (h *Handlers) History(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "userId is required"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.Ledger.History(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.log(c).WithError(err).Error("history: ledger read failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId": userID,
		"page":   result.Page,
		"limit":  result.Limit,
		"total":  result.Total,
		"items":  result.Events,
	})
}

// Logout implements POST /api/consent/logout: revokes every active
// vault.owner (session) token for the user. External API tokens granted to
// developers are untouched, matching session.py's logout semantics.
func (h *Handlers) Logout(c *gin.Context) {
	var body LogoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	active, err := h.Ledger.Active(c.Request.Context(), body.UserID)
	if err != nil {
		h.log(c).WithError(err).Error("logout: ledger read failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Ledger unavailable"})
		return
	}

	now := time.Now().UnixMilli()
	for _, a := range active {
		if a.Scope != scope.MasterScope {
			continue
		}
		_, err := h.Ledger.Append(c.Request.Context(), ledger.Event{
			EventKey: a.TokenID,
			UserID:   body.UserID,
			Scope:    a.Scope,
			Action:   ledger.ActionRevoked,
			IssuedAt: now,
		})
		if err != nil {
			h.log(c).WithError(err).Error("logout: revoke append failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Session tokens for " + body.UserID + " marked for revocation",
	})
}

// ListScopes implements the supplemented GET /api/v1/list-scopes endpoint.
func (h *Handlers) ListScopes(c *gin.Context) {
	known := []string{
		"attr.food.*", "attr.professional.*", "attr.financial.*", scope.MasterScope,
	}
	out := make([]gin.H, 0, len(known))
	for _, s := range known {
		out = append(out, gin.H{"name": s, "description": scope.Describe(s)})
	}
	c.JSON(http.StatusOK, gin.H{"scopes": out})
}

// Validate implements POST /api/consent/validate: the validate /
// validate_with_ledger operation of spec §4.2, exposed for callers that
// enforce the Context Gate over RPC rather than linking pkg/token directly.
func (h *Handlers) Validate(c *gin.Context) {
	var body ValidateTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if h.Revocation != nil {
		_, _ = h.Revocation.AdmitIfRevokedDurably(c.Request.Context(), body.Token)
	}

	var tok *token.Token
	var verr *token.ValidationError
	if body.WithLedger {
		tok, verr = h.Codec.ValidateWithLedger(c.Request.Context(), body.Token, body.ExpectedScope, h.Revocation, h.Ledger)
	} else {
		tok, verr = h.Codec.Validate(body.Token, body.ExpectedScope, h.Revocation)
	}

	if verr != nil {
		h.metricsCollector().RecordTokenOperation("validate", "error")
		h.metricsCollector().RecordTokenValidationError(string(verr.Code))
		c.JSON(validationHTTPStatus(verr), ValidateTokenResponse{Valid: false, Reason: verr.Reason})
		return
	}
	h.metricsCollector().RecordTokenOperation("validate", "ok")

	c.JSON(http.StatusOK, ValidateTokenResponse{Valid: true, UserID: tok.UserID, Scope: tok.Scope})
}

// Events implements GET /api/consent/events/{user_id}: the full SSE stream.
func (h *Handlers) Events(c *gin.Context) {
	userID := c.Param("user_id")
	_ = h.Bus.Subscribe(c.Writer, c.Request, userID)
}

// EventsPoll implements GET /api/consent/events/{user_id}/poll/{request_id}.
func (h *Handlers) EventsPoll(c *gin.Context) {
	userID := c.Param("user_id")
	requestID := c.Param("request_id")
	timeout := h.PollTimeout
	if timeout <= 0 {
		timeout = approval.PollTimeout
	}
	_ = h.Bus.SubscribeSpecific(c.Writer, c.Request, userID, requestID, timeout)
}
