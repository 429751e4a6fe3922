// Package mocks provides mock implementations of the core repository ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockPostRepository(ctrl)
//	mockRepo.EXPECT().GetByID(gomock.Any(), id).Return(post, nil)
package mocks

// Create, GetByID, GetPublishedBySlug, List, Update, Delete, Counts
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=post_repository_mock.go github.com/target/sitegate/internal/core PostRepository

// Count, Ensure
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_repository_mock.go github.com/target/sitegate/internal/core ProfileRepository

// Set, Get, Delete, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/sitegate/internal/core CacheRepository
