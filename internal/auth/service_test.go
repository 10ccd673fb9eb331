package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/florianilch/finctl/internal/apiclient"
	"github.com/florianilch/finctl/internal/apierror"
	"github.com/florianilch/finctl/internal/credstore"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newService(t *testing.T, handler http.Handler) (*Service, credstore.Store) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	store := credstore.NewMemoryStore()
	svc, err := New(ts.URL+"/api", store, WithTimeout(5*time.Second))
	require.NoError(t, err)
	return svc, store
}

func TestLoginSendsFormAndStoresCredentials(t *testing.T) {
	expiresAt := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	access := signedToken(t, "alice@example.com", expiresAt)

	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "alice@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))

		writeJSON(w, http.StatusOK, map[string]string{
			"access_token":  access,
			"refresh_token": "r1",
			"token_type":    "bearer",
		})
	}))

	token, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, access, token.AccessToken)
	assert.True(t, expiresAt.Equal(token.Expiry), "expiry taken from exp claim")

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, access, stored.AccessToken)
	assert.Equal(t, "r1", stored.RefreshToken)
}

func TestLoginRejected(t *testing.T) {
	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
	}))

	_, err := svc.Login(context.Background(), "alice@example.com", "wrong")

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindAPI, apiErr.Kind)
	assert.Equal(t, "Incorrect email or password", apiErr.Message)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestLoginValidationError(t *testing.T) {
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "username"}, "msg": "value is not a valid email address"}},
		})
	}))

	_, err := svc.Login(context.Background(), "alice", "s3cret")
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestLoginRequiresCredentials(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := svc.Login(context.Background(), "", "s3cret")
	assert.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRefreshSendsJSONBody(t *testing.T) {
	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/refresh-token", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"refresh_token":"r1"}`, string(body))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "a2",
			"refresh_token": "r2",
			"token_type":    "bearer",
			"expires_in":    900,
		})
	}))

	token, err := svc.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", token.AccessToken)
	assert.Equal(t, "r2", token.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), token.Expiry, time.Minute)

	// Persisting is the transport's job
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestRefreshRejected(t *testing.T) {
	svc, _ := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
	}))

	_, err := svc.Refresh(context.Background(), "revoked")

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid refresh token", apiErr.Message)

	var retrieveErr *oauth2.RetrieveError
	assert.ErrorAs(t, err, &retrieveErr)
}

func TestRefreshWithoutToken(t *testing.T) {
	svc, _ := newService(t, http.NotFoundHandler())

	_, err := svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, apiclient.ErrNoRefreshToken)
}

func TestRefreshUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	svc, err := New(base, credstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), "r1")
	assert.ErrorIs(t, err, apierror.ErrNetwork)
}

func TestLogoutAndStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, http.NotFoundHandler())

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.LoggedIn)

	expiresAt := time.Now().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, store.Save(ctx, &oauth2.Token{
		AccessToken:  signedToken(t, "bob@example.com", expiresAt),
		RefreshToken: "r1",
	}))

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.LoggedIn)
	assert.True(t, status.HasRefreshToken)
	assert.Equal(t, "bob@example.com", status.Subject)
	assert.True(t, expiresAt.Equal(status.ExpiresAt))
	assert.True(t, status.Expired(time.Now()))

	require.NoError(t, svc.Logout(ctx))
	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.LoggedIn)
}

func TestInspectAccessToken(t *testing.T) {
	expiresAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	claims, err := InspectAccessToken(signedToken(t, "carol", expiresAt))
	require.NoError(t, err)
	assert.Equal(t, "carol", claims.Subject)
	assert.True(t, expiresAt.Equal(claims.ExpiresAt))

	_, err = InspectAccessToken("opaque-token")
	assert.Error(t, err)
}

func TestWithExpiryKeepsOpaqueTokens(t *testing.T) {
	token := withExpiry(&oauth2.Token{AccessToken: "opaque"})
	assert.True(t, token.Expiry.IsZero())

	explicit := time.Now().Add(time.Hour)
	token = withExpiry(&oauth2.Token{AccessToken: signedToken(t, "dave", time.Now()), Expiry: explicit})
	assert.Equal(t, explicit, token.Expiry)
}

func TestEndpoints(t *testing.T) {
	base, err := parseBase("https://finance.example.com/api")
	require.NoError(t, err)

	assert.Equal(t, "https://finance.example.com/api/auth/token", Endpoint(base).TokenURL)
	assert.Equal(t, "https://finance.example.com/api/auth/refresh-token", RefreshEndpoint(base).TokenURL)
	assert.Equal(t, oauth2.AuthStyleInParams, Endpoint(base).AuthStyle)

	_, err = parseBase("localhost:8000")
	assert.Error(t, err)
}
