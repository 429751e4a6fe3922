package httpx

import (
	"context"
	"net/http"

	"github.com/target/sitegate/internal/domain/model"
)

const (
	defaultPostsLimit = 50
	maxPostsLimit     = 100
)

// PostServiceInterface defines the post operations exposed over HTTP.
type PostServiceInterface interface {
	Create(ctx context.Context, authorID string, req model.CreatePostRequest) (*model.Post, error)
	Get(ctx context.Context, authorID, id string) (*model.Post, error)
	List(ctx context.Context, authorID string, opts model.PostsListOptions) ([]*model.Post, error)
	Update(ctx context.Context, authorID, id string, req model.UpdatePostRequest) (*model.Post, error)
	Delete(ctx context.Context, authorID, id string) error
	GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error)
}

// PostHandlers serves the author posts API. Every handler except Public
// runs behind RequireIdentity.
type PostHandlers struct {
	Svc PostServiceInterface
}

func callerID(r *http.Request) string {
	if id, ok := GetIdentityFromContext(r.Context()); ok {
		return id.ID
	}
	return ""
}

// List handles GET /api/posts?limit&offset&published.
func (h *PostHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultPostsLimit, maxPostsLimit)
	posts, err := h.Svc.List(r.Context(), callerID(r), model.PostsListOptions{
		Published: parseBoolQuery(r, "published"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	WriteJSON(w, http.StatusOK, posts)
}

// Create handles POST /api/posts.
func (h *PostHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePostRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	post, err := h.Svc.Create(r.Context(), callerID(r), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, post)
}

// Get handles GET /api/posts/{id}.
func (h *PostHandlers) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.Svc.Get(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, post)
}

// Update handles PUT /api/posts/{id}.
func (h *PostHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdatePostRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	post, err := h.Svc.Update(r.Context(), callerID(r), r.PathValue("id"), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /api/posts/{id}.
func (h *PostHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Public handles GET /api/public/posts/{slug}.
func (h *PostHandlers) Public(w http.ResponseWriter, r *http.Request) {
	post, err := h.Svc.GetPublishedBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, post)
}
