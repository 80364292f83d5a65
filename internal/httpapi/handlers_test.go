package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/hushh-labs/consent-core/internal/ratelimit"
	"github.com/hushh-labs/consent-core/pkg/approval"
	"github.com/hushh-labs/consent-core/pkg/ledger"
	"github.com/hushh-labs/consent-core/pkg/notify"
	"github.com/hushh-labs/consent-core/pkg/revocation"
	"github.com/hushh-labs/consent-core/pkg/token"
)

func newTestRouter(t *testing.T) (*gin.Engine, *ledger.Ledger, *approval.Coordinator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledger.New(ledger.NewMemoryStore())
	registry := approval.NewMemoryRegistry()
	registry.Register("dev-token", approval.Developer{Name: "acme", ApprovedScopes: []string{"attr.food.*"}})

	codec, err := token.NewCodec([]byte("secret"))
	require.NoError(t, err)

	coord := approval.New(l, registry, codec)
	idx := revocation.New(nil)
	bus := notify.NewBus(l)

	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))

	h := &Handlers{Codec: codec, Ledger: l, Coordinator: coord, Revocation: idx, Bus: bus, Logger: logger}
	router := NewRouter(h, ratelimit.NewLimiters(), "")
	return router, l, coord
}

func TestRequestConsentEndpointReturnsPending(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, _ := json.Marshal(RequestConsentBody{
		DeveloperToken: "dev-token", UserID: "u1", Scope: "attr.food.*", ExpiryHours: 24,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/request-consent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ConsentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "pending", resp.Status)
	require.Len(t, resp.RequestID, 8)
}

func TestRequestConsentEndpointUnauthorized(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, _ := json.Marshal(RequestConsentBody{
		DeveloperToken: "bogus", UserID: "u1", Scope: "attr.food.*",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/request-consent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueTokenThenActiveEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, _ := json.Marshal(IssueTokenBody{UserID: "u1", Scope: "session"})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/issue-token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess SessionTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.SessionToken)

	req2 := httptest.NewRequest(http.MethodGet, "/api/consent/active?userId=u1", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestLogoutRevokesSessionToken(t *testing.T) {
	router, l, _ := newTestRouter(t)

	body, _ := json.Marshal(IssueTokenBody{UserID: "u1", Scope: "session"})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/issue-token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	logoutBody, _ := json.Marshal(LogoutBody{UserID: "u1"})
	req2 := httptest.NewRequest(http.MethodPost, "/api/consent/logout", bytes.NewReader(logoutBody))
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	require.False(t, l.IsActive(req2.Context(), "u1", "vault.owner"))
}

func issueSessionToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	body, _ := json.Marshal(IssueTokenBody{UserID: "u1", Scope: "session"})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/issue-token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess SessionTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess.SessionToken
}

func TestValidateEndpointAcceptsMatchingScope(t *testing.T) {
	router, _, _ := newTestRouter(t)
	tok := issueSessionToken(t, router)

	body, _ := json.Marshal(ValidateTokenBody{Token: tok, ExpectedScope: "vault.owner"})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ValidateTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Valid)
	require.Equal(t, "u1", resp.UserID)
}

func TestValidateEndpointRejectsScopeMismatchWith403(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// a non-master token: the session token's vault.owner satisfies every scope
	issueBody, _ := json.Marshal(IssueTokenBody{UserID: "u1", Scope: "attr.food.*"})
	issueReq := httptest.NewRequest(http.MethodPost, "/api/consent/issue-token", bytes.NewReader(issueBody))
	issueReq.Header.Set("Content-Type", "application/json")
	issueRec := httptest.NewRecorder()
	router.ServeHTTP(issueRec, issueReq)
	require.Equal(t, http.StatusOK, issueRec.Code)
	var issued SessionTokenResponse
	require.NoError(t, json.Unmarshal(issueRec.Body.Bytes(), &issued))
	tok := issued.SessionToken

	body, _ := json.Marshal(ValidateTokenBody{Token: tok, ExpectedScope: "attr.finance.*"})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp ValidateTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Valid)
}

func TestValidateEndpointRejectsMalformedTokenWith401(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, _ := json.Marshal(ValidateTokenBody{Token: "not-a-real-token", ExpectedScope: "attr.food.*"})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListScopesEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/list-scopes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestConsentRateLimited(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for i := 0; i < 10; i++ {
		body, _ := json.Marshal(RequestConsentBody{
			DeveloperToken: "dev-token", UserID: "u1", Scope: "attr.food.*",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/request-consent", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.1.1.1:9999"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		// first call appends the request; subsequent calls for the same
		// scope short-circuit to the existing one but still count against budget
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}

	body, _ := json.Marshal(RequestConsentBody{
		DeveloperToken: "dev-token", UserID: "u1", Scope: "attr.food.*",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/request-consent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.1.1.1:9999"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
