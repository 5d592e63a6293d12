package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripgate/tripgate/internal/apierror"
	"github.com/tripgate/tripgate/internal/auth/jwt"
	"github.com/tripgate/tripgate/internal/session"
)

const pipelineSecret = "pipeline-test-secret"

// fakeResolver resolves from a fixed user set.
type fakeResolver struct {
	users   map[string]*User
	deleted map[string]bool
	err     error
}

func (r *fakeResolver) Resolve(_ context.Context, userID string) (*User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.deleted[userID] {
		return nil, ErrUserDeleted
	}
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func newTestPipeline(t *testing.T, resolver UserResolver, opts ...PipelineOption) *Pipeline {
	t.Helper()

	verifier, err := jwt.NewVerifier(&jwt.Config{Secret: pipelineSecret})
	require.NoError(t, err)

	p, err := NewPipeline(verifier, resolver, opts...)
	require.NoError(t, err)
	return p
}

func bearerFor(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()

	signer, err := jwt.NewSigner(&jwt.Config{Secret: pipelineSecret})
	require.NoError(t, err)

	token, err := signer.Sign(subject, ttl)
	require.NoError(t, err)
	return "Bearer " + token
}

func proUser(id string) *User {
	return &User{ID: id, Email: id + "@example.com", Name: "Test User", Tier: TierPro}
}

func assertDenied(t *testing.T, err error, status int, code string) {
	t.Helper()

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr), "expected an api error, got %v", err)
	assert.Equal(t, status, apiErr.Status())
	assert.Equal(t, code, apiErr.Code())
}

func TestAuthorize(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*User{"user-42": proUser("user-42")}}
	p := newTestPipeline(t, resolver)

	identity, err := p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.User.ID)
	assert.Equal(t, TierPro, identity.User.Tier)
	assert.Equal(t, "user-42", identity.Claims.Subject)
	assert.Nil(t, identity.Session)
}

func TestAuthorizeMissingHeader(t *testing.T) {
	p := newTestPipeline(t, &fakeResolver{})

	_, err := p.Authorize(context.Background(), "", "")
	assertDenied(t, err, 401, "UNAUTHORIZED")
}

func TestAuthorizeMalformedHeader(t *testing.T) {
	p := newTestPipeline(t, &fakeResolver{})

	for _, header := range []string{"Token abc", "Bearer", "bearer abc"} {
		_, err := p.Authorize(context.Background(), header, "")
		assertDenied(t, err, 401, "UNAUTHORIZED")
	}
}

func TestAuthorizeExpiredToken(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*User{"user-42": proUser("user-42")}}
	p := newTestPipeline(t, resolver)

	_, err := p.Authorize(context.Background(), bearerFor(t, "user-42", -time.Hour), "")
	assertDenied(t, err, 401, "TOKEN_EXPIRED")
}

func TestAuthorizeInvalidToken(t *testing.T) {
	p := newTestPipeline(t, &fakeResolver{})

	_, err := p.Authorize(context.Background(), "Bearer not-a-real-token", "")
	assertDenied(t, err, 401, "INVALID_TOKEN")
}

func TestAuthorizeUnknownUser(t *testing.T) {
	// Valid token, but no account behind the subject.
	p := newTestPipeline(t, &fakeResolver{users: map[string]*User{}})

	_, err := p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "")
	assertDenied(t, err, 401, "UNAUTHORIZED")

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "user not found", apiErr.Message)
}

func TestAuthorizeDeletedUser(t *testing.T) {
	// Valid token for a soft-deleted account: same status and code as
	// an unknown subject, but the message names the deletion.
	p := newTestPipeline(t, &fakeResolver{deleted: map[string]bool{"user-42": true}})

	_, err := p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "")
	assertDenied(t, err, 401, "UNAUTHORIZED")

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "account deleted", apiErr.Message)
}

func TestAuthorizeResolverUnavailable(t *testing.T) {
	p := newTestPipeline(t, &fakeResolver{err: context.DeadlineExceeded})

	_, err := p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "")
	assertDenied(t, err, 503, "SERVICE_UNAVAILABLE")
}

func TestAuthorizeBindsSession(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := session.NewRedisStore(client, session.RedisConfig{})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.Create(context.Background(), &session.Session{
		ID:        "sess-1",
		UserID:    "user-42",
		DeviceID:  "device-a",
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}, time.Hour))

	binder, err := NewSessionBinder(store)
	require.NoError(t, err)

	resolver := &fakeResolver{users: map[string]*User{"user-42": proUser("user-42")}}
	p := newTestPipeline(t, resolver, WithSessionBinder(binder))

	// Matching device binds the session.
	identity, err := p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "device-a")
	require.NoError(t, err)
	require.NotNil(t, identity.Session)
	assert.Equal(t, "sess-1", identity.Session.ID)

	// Unknown device authenticates without a session.
	identity, err = p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "device-z")
	require.NoError(t, err)
	assert.Nil(t, identity.Session)

	// No device id presented, binding is skipped entirely.
	identity, err = p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "")
	require.NoError(t, err)
	assert.Nil(t, identity.Session)
}

func TestAuthorizeBindingFailureIsNonFatal(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := session.NewRedisStore(client, session.RedisConfig{})
	require.NoError(t, err)

	binder, err := NewSessionBinder(store)
	require.NoError(t, err)

	mr.Close()

	resolver := &fakeResolver{users: map[string]*User{"user-42": proUser("user-42")}}
	p := newTestPipeline(t, resolver, WithSessionBinder(binder))

	identity, err := p.Authorize(context.Background(), bearerFor(t, "user-42", time.Hour), "device-a")
	require.NoError(t, err)
	assert.Nil(t, identity.Session)
}

func TestAuthorizeOptional(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*User{"user-42": proUser("user-42")}}
	p := newTestPipeline(t, resolver)
	ctx := context.Background()

	// Credentials present and valid.
	identity, err := p.AuthorizeOptional(ctx, bearerFor(t, "user-42", time.Hour), "")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "user-42", identity.User.ID)

	// No credentials means anonymous, not denied.
	identity, err = p.AuthorizeOptional(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, identity)

	// A bad token also degrades to anonymous.
	identity, err = p.AuthorizeOptional(ctx, "Bearer garbage", "")
	require.NoError(t, err)
	assert.Nil(t, identity)

	// An expired token likewise.
	identity, err = p.AuthorizeOptional(ctx, bearerFor(t, "user-42", -time.Hour), "")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestAuthorizeOptionalInfrastructureFailure(t *testing.T) {
	p := newTestPipeline(t, &fakeResolver{err: context.DeadlineExceeded})

	_, err := p.AuthorizeOptional(context.Background(), bearerFor(t, "user-42", time.Hour), "")
	assertDenied(t, err, 503, "SERVICE_UNAVAILABLE")
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	_, ok := UserFromContext(ctx)
	assert.False(t, ok)
	_, ok = SessionFromContext(ctx)
	assert.False(t, ok)

	user := proUser("user-42")
	sess := &session.Session{ID: "sess-1", UserID: "user-42"}

	ctx = ContextWithUser(ctx, user)
	ctx = ContextWithSession(ctx, sess)

	gotUser, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, gotUser)

	gotSess, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, sess, gotSess)
}
