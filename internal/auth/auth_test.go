package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pomflow/backend/internal/config"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Warn(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

const testIssuer = "https://test-issuer.com"

func fakeToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	headerBytes, err := json.Marshal(map[string]interface{}{"alg": "RS256", "typ": "JWT", "kid": "test-key"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(headerBytes) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
}

func validClaims(email string) map[string]interface{} {
	return map[string]interface{}{
		"iss":   testIssuer,
		"aud":   "test-client",
		"sub":   "test-user",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-1 * time.Minute).Unix(),
		"email": email,
	}
}

func newTestAuth() *Auth {
	verifier := oidc.NewVerifier(testIssuer, &MockKeySet{}, &oidc.Config{
		ClientID:          "test-client",
		SkipClientIDCheck: true,
	})
	return &Auth{apiVerifier: verifier, verifier: verifier, logger: &NoOpLogger{}}
}

func TestRequireAuth_BearerToken_StoresUser(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("GET", "/pipeline/projects/p1", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken(t, validClaims("user@acme.com")))
	rec := httptest.NewRecorder()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		assert.True(t, ok, "user should be in context")
		assert.Equal(t, "user@acme.com", user.Email)
		assert.Equal(t, "test-user", user.Subject)
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(nextHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_Cookie(t *testing.T) {
	a := newTestAuth()

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: "id_token", Value: fakeToken(t, validClaims("dev@startup.io"))})
	rec := httptest.NewRecorder()

	called := false
	a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user, _ := UserFromContext(r.Context())
		assert.Equal(t, "dev@startup.io", user.Email)
	})).ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestRequireAuth_Rejections(t *testing.T) {
	a := newTestAuth()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims("user@acme.com")
		claims["exp"] = time.Now().Add(-time.Hour).Unix()
		req := httptest.NewRequest("GET", "/pipeline/projects/p1", nil)
		req.Header.Set("Authorization", "Bearer "+fakeToken(t, claims))
		rec := httptest.NewRecorder()
		a.RequireAuth(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid token")
	})

	t.Run("email without domain", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/pipeline/projects/p1", nil)
		req.Header.Set("Authorization", "Bearer "+fakeToken(t, validClaims("nobody")))
		rec := httptest.NewRecorder()
		a.RequireAuth(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("API client without credentials", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/projects", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		a.RequireAuth(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
	})

	t.Run("browser without session", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/pipeline/projects/p1", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		rec := httptest.NewRecorder()
		a.RequireAuth(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}

func TestRequireAuth_BypassMode(t *testing.T) {
	cfg := &config.Config{
		Environment:   "DEV",
		DevModeBypass: true,
	}
	a, err := New(context.Background(), cfg, &NoOpLogger{})
	require.NoError(t, err)
	assert.True(t, a.Bypassed())

	e := echo.New()
	g := e.Group("/pipeline", a.Middleware())
	g.GET("/whoami", func(c echo.Context) error {
		user, ok := UserFromContext(c.Request().Context())
		assert.True(t, ok)
		return c.String(http.StatusOK, user.Email)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("GET", "/pipeline/whoami", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DevEmail, rec.Body.String())
}

func TestNew_IncompleteConfig(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Environment: "PROD"}, &NoOpLogger{})
	assert.EqualError(t, err, "auth configuration is incomplete")

	_, err = New(context.Background(), &config.Config{Environment: "PROD", DevModeBypass: true}, &NoOpLogger{})
	assert.Error(t, err, "bypass only applies in DEV")
}
