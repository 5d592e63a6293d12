package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripgate/tripgate/internal/auth"
	"github.com/tripgate/tripgate/internal/auth/jwt"
	"github.com/tripgate/tripgate/internal/config"
	"github.com/tripgate/tripgate/internal/middleware"
	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/ratelimit"
	"github.com/tripgate/tripgate/internal/session"
)

const testSecret = "server-test-secret"

// staticResolver resolves from a fixed user set.
type staticResolver struct {
	users map[string]*auth.User
}

func (r *staticResolver) Resolve(_ context.Context, userID string) (*auth.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return user, nil
}

type testEnv struct {
	server  *Server
	store   session.Store
	redis   *miniredis.Miniredis
	limiter *ratelimit.RedisLimiter
}

func newTestEnv(t *testing.T, users map[string]*auth.User) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := session.NewRedisStore(client, session.RedisConfig{})
	require.NoError(t, err)

	binder, err := auth.NewSessionBinder(store)
	require.NoError(t, err)

	verifier, err := jwt.NewVerifier(&jwt.Config{Secret: testSecret})
	require.NoError(t, err)

	pipeline, err := auth.NewPipeline(verifier, &staticResolver{users: users},
		auth.WithSessionBinder(binder))
	require.NoError(t, err)

	limiter, err := ratelimit.NewRedisLimiter(client, ratelimit.RedisConfig{
		Requests: 50,
		Window:   time.Minute,
		FailOpen: true,
	})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Auth.Secret = testSecret
	cfg.Production = true

	srv, err := New(cfg, observability.NopLogger(), pipeline, store,
		WithLimiter(limiter),
		WithRedisClient(client),
	)
	require.NoError(t, err)

	return &testEnv{server: srv, store: store, redis: mr, limiter: limiter}
}

func (e *testEnv) request(t *testing.T, method, path, bearer, deviceID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	if deviceID != "" {
		req.Header.Set(middleware.DeviceIDHeader, deviceID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func bearerFor(t *testing.T, subject string) string {
	t.Helper()

	signer, err := jwt.NewSigner(&jwt.Config{Secret: testSecret})
	require.NoError(t, err)

	token, err := signer.Sign(subject, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seedSession(t *testing.T, store session.Store, userID, sessionID, deviceID string) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, store.Create(context.Background(), &session.Session{
		ID:        sessionID,
		UserID:    userID,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}, time.Hour))
}

func proUsers() map[string]*auth.User {
	return map[string]*auth.User{
		"user-42": {ID: "user-42", Email: "ada@example.com", Name: "Ada", Tier: auth.TierPro},
		"free-1":  {ID: "free-1", Email: "bob@example.com", Name: "Bob", Tier: auth.TierFree},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.request(t, http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	env.redis.Close()

	rec = env.request(t, http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, proUsers())
	seedSession(t, env.store, "user-42", "sess-1", "device-a")

	rec := env.request(t, http.MethodGet, "/v1/me", bearerFor(t, "user-42"), "device-a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "user-42", user["id"])
	assert.Equal(t, "pro", user["tier"])

	sess := data["session"].(map[string]interface{})
	assert.Equal(t, "sess-1", sess["id"])
	assert.Equal(t, "device-a", sess["deviceId"])
}

func TestMeWithoutDevice(t *testing.T) {
	env := newTestEnv(t, proUsers())

	rec := env.request(t, http.MethodGet, "/v1/me", bearerFor(t, "user-42"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.NotContains(t, data, "session")
}

func TestMeUnauthenticated(t *testing.T) {
	env := newTestEnv(t, proUsers())

	rec := env.request(t, http.MethodGet, "/v1/me", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutBoundSession(t *testing.T) {
	env := newTestEnv(t, proUsers())
	seedSession(t, env.store, "user-42", "sess-1", "device-a")

	rec := env.request(t, http.MethodPost, "/v1/sessions/logout", bearerFor(t, "user-42"), "device-a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.store.Get(context.Background(), "user-42", "sess-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLogoutNamedSession(t *testing.T) {
	env := newTestEnv(t, proUsers())
	seedSession(t, env.store, "user-42", "sess-1", "device-a")

	rec := env.request(t, http.MethodPost, "/v1/sessions/logout",
		bearerFor(t, "user-42"), "", `{"sessionId":"sess-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.store.Get(context.Background(), "user-42", "sess-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLogoutRevokedSession(t *testing.T) {
	env := newTestEnv(t, proUsers())
	seedSession(t, env.store, "user-42", "sess-1", "device-a")
	require.NoError(t, env.store.Revoke(context.Background(), "user-42", "sess-1"))

	rec := env.request(t, http.MethodPost, "/v1/sessions/logout",
		bearerFor(t, "user-42"), "", `{"sessionId":"sess-1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SESSION_REVOKED", body.Error.Code)

	// The revoked record stays until its TTL runs out.
	sess, err := env.store.Get(context.Background(), "user-42", "sess-1")
	require.NoError(t, err)
	assert.NotNil(t, sess.RevokedAt)
}

func TestLogoutNothingToEnd(t *testing.T) {
	env := newTestEnv(t, proUsers())

	rec := env.request(t, http.MethodPost, "/v1/sessions/logout", bearerFor(t, "user-42"), "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t, proUsers())
	seedSession(t, env.store, "user-42", "sess-1", "device-a")
	seedSession(t, env.store, "user-42", "sess-2", "device-b")
	seedSession(t, env.store, "free-1", "sess-3", "device-c")

	rec := env.request(t, http.MethodPost, "/v1/sessions/logout-all", bearerFor(t, "user-42"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["sessions"])

	// The other user's session survives.
	_, err := env.store.Get(context.Background(), "free-1", "sess-3")
	assert.NoError(t, err)
}

func TestOptimizeTrip(t *testing.T) {
	env := newTestEnv(t, proUsers())

	rec := env.request(t, http.MethodPost, "/v1/trips/optimize",
		bearerFor(t, "user-42"), "",
		`{"origin":"Lisbon","destination":"Porto","departureDate":"2026-09-15"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "queued", data["status"])
	assert.NotEmpty(t, data["tripId"])
}

func TestOptimizeTripRequiresPro(t *testing.T) {
	env := newTestEnv(t, proUsers())

	rec := env.request(t, http.MethodPost, "/v1/trips/optimize",
		bearerFor(t, "free-1"), "",
		`{"origin":"Lisbon","destination":"Porto","departureDate":"2026-09-15"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SUBSCRIPTION_REQUIRED", body.Error.Code)
	assert.Equal(t, "pro", body.Error.Details["requiredTier"])
}

func TestOptimizeTripValidation(t *testing.T) {
	env := newTestEnv(t, proUsers())

	rec := env.request(t, http.MethodPost, "/v1/trips/optimize",
		bearerFor(t, "user-42"), "",
		`{"origin":"","destination":"Porto","departureDate":"not-a-date"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	errs := body.Error.Details["errors"].(map[string]interface{})
	assert.Contains(t, errs, "origin")
	assert.Contains(t, errs, "departureDate")
}

func TestRateLimitHeadersOnRoutes(t *testing.T) {
	env := newTestEnv(t, proUsers())
	require.NoError(t, env.limiter.SetLimit(2, time.Minute))

	rec := env.request(t, http.MethodGet, "/v1/me", bearerFor(t, "user-42"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = env.request(t, http.MethodGet, "/v1/me", bearerFor(t, "user-42"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/v1/me", bearerFor(t, "user-42"), "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different user keeps an untouched window.
	rec = env.request(t, http.MethodGet, "/v1/me", bearerFor(t, "free-1"), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
