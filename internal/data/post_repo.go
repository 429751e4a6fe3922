package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/sitegate/internal/core"
	"github.com/target/sitegate/internal/data/database"
	"github.com/target/sitegate/internal/data/pgxutil"
	"github.com/target/sitegate/internal/domain/model"
	apperrors "github.com/target/sitegate/internal/errors"
)

var _ core.PostRepository = (*PostRepo)(nil)

// ErrPostNotFound is returned when a post does not exist.
var ErrPostNotFound = apperrors.NotFound("post not found")

const (
	defaultPostLimit = 50
	maxPostLimit     = 100
)

// PostRepo provides database operations for posts.
type PostRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewPostRepo creates a new PostRepo with real time provider.
func NewPostRepo(db *sql.DB) *PostRepo {
	return &PostRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewPostRepoWithTimeProvider creates a new PostRepo with a custom time provider (useful for tests).
func NewPostRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *PostRepo {
	return &PostRepo{DB: db, timeProvider: tp}
}

// Create inserts a new post. Slug normalization is the caller's job; the
// repository stores what it is given.
func (r *PostRepo) Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error) {
	if req == nil {
		return nil, errors.New("create post request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	published := false
	if req.Published != nil {
		published = *req.Published
	}
	now := r.timeProvider.Now().UTC()

	var out model.Post
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO posts (title, slug, content, published, image_url, author_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING `+postColumnList,
			req.Title,
			req.Slug,
			nullIfEmpty(req.Content),
			published,
			nullIfEmpty(req.ImageURL),
			req.AuthorID,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Post])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a post by ID.
func (r *PostRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return r.getOne(ctx, `SELECT `+postColumnList+` FROM posts WHERE id = $1`, id)
}

// GetPublishedBySlug retrieves a published post by slug.
func (r *PostRepo) GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return r.getOne(ctx, `SELECT `+postColumnList+` FROM posts WHERE slug = $1 AND published`, slug)
}

// List returns an author's posts, most recently updated first.
func (r *PostRepo) List(ctx context.Context, opts model.PostsListOptions) ([]*model.Post, error) {
	if strings.TrimSpace(opts.AuthorID) == "" {
		return nil, apperrors.ValidationField("author_id", "author_id is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPostLimit
	}
	limit = min(limit, maxPostLimit)

	qopts := []database.ListQueryOption{
		database.WithColumns(postColumns...),
		database.WithCondition(database.WhereCond("author_id", database.Equal, opts.AuthorID)),
		database.WithOrderBy("DESC", "updated_at", "id"),
		database.WithLimit(limit),
		database.WithOffset(max(opts.Offset, 0)),
	}
	if opts.Published != nil {
		qopts = append(qopts, database.WithCondition(database.WhereCond("published", database.Equal, *opts.Published)))
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("posts", qopts...))

	var rowsOut []model.Post
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Post])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", apperrors.MapDBError(err))
	}

	res := make([]*model.Post, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update applies the set fields of req and bumps updated_at.
func (r *PostRepo) Update(ctx context.Context, id string, req model.UpdatePostRequest) (*model.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	setClause, args := r.buildUpdateClause(req)
	args = append(args, id)
	query := "UPDATE posts SET " + setClause + " WHERE id = $" + strconv.Itoa(len(args)) + " RETURNING " + postColumnList

	var out model.Post
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Post])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

func (r *PostRepo) buildUpdateClause(req model.UpdatePostRequest) (string, []any) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 7)
	set := func(col string, v any) {
		args = append(args, v)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Slug != nil {
		set("slug", *req.Slug)
	}
	if req.Content != nil {
		set("content", nullIfEmpty(req.Content))
	}
	if req.Published != nil {
		set("published", *req.Published)
	}
	if req.ImageURL != nil {
		set("image_url", nullIfEmpty(req.ImageURL))
	}
	set("updated_at", r.timeProvider.Now().UTC())
	return strings.Join(setParts, ", "), args
}

// Delete deletes a post by ID.
func (r *PostRepo) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", apperrors.MapDBError(err))
	}
	return affected > 0, nil
}

// Counts returns total, published and draft post counts in one scan.
func (r *PostRepo) Counts(ctx context.Context) (*model.PostCounts, error) {
	var c model.PostCounts
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE published),
		       COUNT(*) FILTER (WHERE NOT published)
		FROM posts`).Scan(&c.Total, &c.Published, &c.Drafts)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", apperrors.MapDBError(err))
	}
	return &c, nil
}

// --- helpers ---

var postColumns = []string{
	"id", "title", "slug", "content", "published", "image_url", "author_id", "created_at", "updated_at",
}

var postColumnList = strings.Join(postColumns, ", ")

func (r *PostRepo) getOne(ctx context.Context, q string, args ...any) (*model.Post, error) {
	var post model.Post
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		post, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Post])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, apperrors.MapDBError(err)
	}
	return &post, nil
}

// nullIfEmpty stores empty optional text as NULL.
func nullIfEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
