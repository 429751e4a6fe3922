package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/sitegate/internal/core"
	"github.com/target/sitegate/internal/data/database"
	"github.com/target/sitegate/internal/data/pgxutil"
	apperrors "github.com/target/sitegate/internal/errors"
)

var _ core.ProfileRepository = (*ProfileRepo)(nil)

// ProfileRepo provides database operations for profiles.
type ProfileRepo struct {
	DB *sql.DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db}
}

// Count returns the number of profiles, optionally only those created at or after since.
func (r *ProfileRepo) Count(ctx context.Context, since *time.Time) (int, error) {
	qopts := []database.ListQueryOption{database.WithCountOnly()}
	if since != nil {
		qopts = append(qopts, database.WithCondition(
			database.WhereCond("created_at", database.GreaterThanOrEqual, since.UTC()),
		))
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("profiles", qopts...))

	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

// Ensure inserts a profile row for id if none exists. createdAt is the
// identity's creation time; a zero value uses now().
func (r *ProfileRepo) Ensure(ctx context.Context, id string, createdAt time.Time) error {
	if id == "" {
		return errors.New("profile id is required")
	}
	var created any
	if !createdAt.IsZero() {
		created = createdAt.UTC()
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO profiles (id, created_at, updated_at)
			VALUES ($1, COALESCE($2::timestamptz, now()), now())
			ON CONFLICT (id) DO NOTHING`, id, created)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to ensure profile: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Health pings the database.
func (r *ProfileRepo) Health(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
