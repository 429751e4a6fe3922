package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/sitegate/internal/core"
	"github.com/target/sitegate/internal/domain/model"
	apperrors "github.com/target/sitegate/internal/errors"
)

const (
	defaultPostCacheTTL = 5 * time.Minute
	postSlugCachePrefix = "post:slug:"
)

var (
	errPostNotFound      = apperrors.NotFound("post not found")
	errPostCacheDisabled = apperrors.Internal("post cache is not configured")
)

// PostServiceOptions groups dependencies for PostService.
type PostServiceOptions struct {
	Repo     core.PostRepository  // Required
	Cache    core.CacheRepository // Optional: public posts are cached by slug when set
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// PostService enforces slug rules and author-only access on top of the post repository.
type PostService struct {
	repo     core.PostRepository
	cache    core.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewPostService constructs a new PostService.
func NewPostService(opts PostServiceOptions) *PostService {
	if opts.Repo == nil {
		panic("PostRepository is required")
	}
	s := &PostService{repo: opts.Repo, cache: opts.Cache, cacheTTL: opts.CacheTTL, logger: opts.Logger}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultPostCacheTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "post_service")
	return s
}

// Create stores a new post owned by authorID. The slug defaults to the
// slugified title.
func (s *PostService) Create(ctx context.Context, authorID string, req model.CreatePostRequest) (*model.Post, error) {
	req.AuthorID = authorID
	req.Title = strings.TrimSpace(req.Title)

	if req.Slug != nil && strings.TrimSpace(*req.Slug) != "" {
		slug, err := normalizeSlug(*req.Slug)
		if err != nil {
			return nil, err
		}
		req.Slug = &slug
	} else {
		req.Slug = slugFromTitle(req.Title)
	}

	if err := req.Validate(); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	post, err := s.repo.Create(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// Get returns the post with id when authorID owns it.
func (s *PostService) Get(ctx context.Context, authorID, id string) (*model.Post, error) {
	return s.owned(ctx, authorID, id)
}

// List returns the author's posts, most recently updated first.
func (s *PostService) List(ctx context.Context, authorID string, opts model.PostsListOptions) ([]*model.Post, error) {
	opts.AuthorID = authorID
	posts, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Update applies req to a post owned by authorID. A new title without an
// explicit slug regenerates the slug.
func (s *PostService) Update(ctx context.Context, authorID, id string, req model.UpdatePostRequest) (*model.Post, error) {
	current, err := s.owned(ctx, authorID, id)
	if err != nil {
		return nil, err
	}

	switch {
	case req.Slug != nil:
		slug, err := normalizeSlug(*req.Slug)
		if err != nil {
			return nil, err
		}
		req.Slug = &slug
	case req.Title != nil:
		req.Slug = slugFromTitle(*req.Title)
	}

	if err := req.Validate(); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	post, err := s.repo.Update(ctx, current.ID, req)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	s.invalidate(ctx, current.Slug, post.Slug)
	return post, nil
}

// Delete removes a post owned by authorID.
func (s *PostService) Delete(ctx context.Context, authorID, id string) error {
	current, err := s.owned(ctx, authorID, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, current.ID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if !deleted {
		return errPostNotFound
	}
	s.invalidate(ctx, current.Slug)
	return nil
}

// GetPublishedBySlug returns a published post for anonymous readers.
func (s *PostService) GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errPostNotFound
	}
	if post := s.cached(ctx, slug); post != nil {
		return post, nil
	}
	post, err := s.repo.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	s.store(ctx, slug, post)
	return post, nil
}

// owned loads a post and hides posts of other authors as not found.
func (s *PostService) owned(ctx context.Context, authorID, id string) (*model.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errPostNotFound
	}
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, errPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	if authorID == "" || post.AuthorID != authorID {
		return nil, errPostNotFound
	}
	return post, nil
}

// EvictCached drops the cached copy of the published post at slug and
// reports whether an entry was removed.
func (s *PostService) EvictCached(ctx context.Context, slug string) (bool, error) {
	if s.cache == nil {
		return false, errPostCacheDisabled
	}
	slug = model.Slugify(slug)
	if slug == "" {
		return false, apperrors.ValidationField("slug", "slug must contain letters or digits")
	}
	return s.cache.Delete(ctx, postSlugCachePrefix+slug)
}

func (s *PostService) cached(ctx context.Context, slug string) *model.Post {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, postSlugCachePrefix+slug)
	if err != nil {
		s.logger.WarnContext(ctx, "post cache read failed", "slug", slug, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var post model.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		s.logger.WarnContext(ctx, "post cache entry is corrupt", "slug", slug, "error", err)
		return nil
	}
	return &post
}

func (s *PostService) store(ctx context.Context, slug string, post *model.Post) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(post)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, postSlugCachePrefix+slug, raw, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "post cache write failed", "slug", slug, "error", err)
	}
}

func (s *PostService) invalidate(ctx context.Context, slugs ...*string) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		if slug == nil || *slug == "" {
			continue
		}
		if _, dup := seen[*slug]; dup {
			continue
		}
		seen[*slug] = struct{}{}
		if _, err := s.cache.Delete(ctx, postSlugCachePrefix+*slug); err != nil {
			s.logger.WarnContext(ctx, "post cache invalidation failed", "slug", *slug, "error", err)
		}
	}
}

// normalizeSlug slugifies raw and rejects input with nothing left.
func normalizeSlug(raw string) (string, error) {
	slug := model.Slugify(raw)
	if slug == "" {
		return "", apperrors.ValidationField("slug", "slug must contain letters or digits")
	}
	return slug, nil
}

func slugFromTitle(title string) *string {
	slug := model.Slugify(title)
	if slug == "" {
		return nil
	}
	return &slug
}
