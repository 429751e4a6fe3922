package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/target/sitegate/internal/core"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/domain/model"
)

// Activity kinds.
const (
	ActivitySignedIn       = "login"
	ActivityAccountCreated = "account_created"
	ActivityPostCreated    = "post_created"
	ActivityPostUpdated    = "post_updated"
)

const (
	activityPostLimit = 5
	activityMaxItems  = 10
)

// ActivityService builds a user's recent activity feed.
type ActivityService struct {
	posts  core.PostRepository
	logger *slog.Logger
}

// NewActivityService constructs a new ActivityService.
func NewActivityService(posts core.PostRepository, logger *slog.Logger) *ActivityService {
	if posts == nil {
		panic("PostRepository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityService{posts: posts, logger: logger.With("component", "activity_service")}
}

// Recent returns at most ten items, newest first. Post lookups that fail
// only drop the post items.
func (s *ActivityService) Recent(ctx context.Context, id domainauth.Identity) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, activityPostLimit+2)
	if id.LastSignInAt != nil {
		items = append(items, model.ActivityItem{Kind: ActivitySignedIn, Message: "Signed in", At: *id.LastSignInAt})
	}
	if !id.CreatedAt.IsZero() {
		items = append(items, model.ActivityItem{Kind: ActivityAccountCreated, Message: "Account created", At: id.CreatedAt})
	}

	posts, err := s.posts.List(ctx, model.PostsListOptions{AuthorID: id.ID, Limit: activityPostLimit})
	if err != nil {
		s.logger.WarnContext(ctx, "could not load post activity", "user_id", id.ID, "error", err)
	}
	for _, p := range posts {
		postID := p.ID
		item := model.ActivityItem{Kind: ActivityPostCreated, Message: "Created post: " + p.Title, At: p.CreatedAt, PostID: &postID}
		if p.UpdatedAt.After(p.CreatedAt) {
			item.Kind = ActivityPostUpdated
			item.Message = "Updated post: " + p.Title
			item.At = p.UpdatedAt
		}
		items = append(items, item)
	}

	slices.SortStableFunc(items, func(a, b model.ActivityItem) int {
		return cmp.Compare(b.At.UnixNano(), a.At.UnixNano())
	})
	if len(items) > activityMaxItems {
		items = items[:activityMaxItems]
	}
	return items
}
