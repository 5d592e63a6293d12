package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tripgate/tripgate/internal/observability"
)

// defaultResolveTimeout bounds a single account lookup.
const defaultResolveTimeout = 2 * time.Second

// rowQuerier is the slice of pgxpool.Pool the resolver needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const resolveUserQuery = `
SELECT id, email, name, COALESCE(avatar_url, ''), tier,
       COALESCE(timezone, 'UTC'), COALESCE(locale, 'en'), deleted_at
FROM users
WHERE id = $1`

// postgresResolver loads accounts from the users table. Soft-deleted
// rows are reported as ErrUserDeleted so denials can name the deletion
// rather than a generic miss.
type postgresResolver struct {
	db      rowQuerier
	timeout time.Duration
	logger  observability.Logger
}

// ResolverOption is a functional option for the postgres resolver.
type ResolverOption func(*postgresResolver)

// WithResolveTimeout bounds a single account lookup.
func WithResolveTimeout(timeout time.Duration) ResolverOption {
	return func(r *postgresResolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithResolverLogger sets the logger for the resolver.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *postgresResolver) {
		r.logger = logger
	}
}

// NewPostgresResolver creates a resolver backed by the users table.
func NewPostgresResolver(db rowQuerier, opts ...ResolverOption) (UserResolver, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}

	r := &postgresResolver{
		db:      db,
		timeout: defaultResolveTimeout,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resolve returns the account for the given id.
func (r *postgresResolver) Resolve(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		user      User
		tier      string
		deletedAt *time.Time
	)
	err := r.db.QueryRow(ctx, resolveUserQuery, userID).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&tier,
		&user.Timezone,
		&user.Locale,
		&deletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if deletedAt != nil {
		return nil, ErrUserDeleted
	}

	parsed, err := ParseTier(tier)
	if err != nil {
		// A corrupt tier column should not lock the account out entirely.
		r.logger.Warn("account has unknown tier, treating as free",
			observability.String("user_id", user.ID),
			observability.String("tier", tier),
		)
		parsed = TierFree
	}
	user.Tier = parsed

	return &user, nil
}

// Ensure postgresResolver implements UserResolver.
var _ UserResolver = (*postgresResolver)(nil)
