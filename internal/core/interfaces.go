package core

import (
	"context"
	"time"

	"github.com/target/sitegate/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	Create(ctx context.Context, req *model.CreatePostRequest) (*model.Post, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// GetPublishedBySlug only returns posts with published=true.
	GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error)
	List(ctx context.Context, opts model.PostsListOptions) ([]*model.Post, error)
	Update(ctx context.Context, id string, req model.UpdatePostRequest) (*model.Post, error)
	Delete(ctx context.Context, id string) (bool, error)
	// Counts aggregates totals across all authors.
	Counts(ctx context.Context) (*model.PostCounts, error)
}

// ProfileRepository defines the interface for profile data operations.
type ProfileRepository interface {
	// Count returns the number of profiles, restricted to those created at or
	// after since when it is non-nil.
	Count(ctx context.Context, since *time.Time) (int, error)
	// Ensure creates the profile for an identity on first sight. It never
	// overwrites an existing row.
	Ensure(ctx context.Context, id string, createdAt time.Time) error
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}
