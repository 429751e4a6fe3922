package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/domain/model"
	apperrors "github.com/target/sitegate/internal/errors"
	"github.com/target/sitegate/internal/testutil"
)

// fakePostService records the author each call was made for.
type fakePostService struct {
	author     string
	listOpts   model.PostsListOptions
	lastUpdate model.UpdatePostRequest
	posts    map[string]*model.Post
	err      error
}

func (f *fakePostService) Create(_ context.Context, authorID string, req model.CreatePostRequest) (*model.Post, error) {
	f.author = authorID
	if f.err != nil {
		return nil, f.err
	}
	return &model.Post{ID: "p-1", Title: req.Title, AuthorID: authorID}, nil
}

func (f *fakePostService) Get(_ context.Context, authorID, id string) (*model.Post, error) {
	f.author = authorID
	if p, ok := f.posts[id]; ok && p.AuthorID == authorID {
		return p, nil
	}
	return nil, apperrors.NotFound("post not found")
}

func (f *fakePostService) List(_ context.Context, authorID string, opts model.PostsListOptions) ([]*model.Post, error) {
	f.author = authorID
	f.listOpts = opts
	return nil, f.err
}

func (f *fakePostService) Update(_ context.Context, authorID, id string, req model.UpdatePostRequest) (*model.Post, error) {
	f.author = authorID
	f.lastUpdate = req
	p, ok := f.posts[id]
	if !ok {
		return nil, apperrors.NotFound("post not found")
	}
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Content != nil {
		p.Content = clearedOrSet(*req.Content)
	}
	if req.ImageURL != nil {
		p.ImageURL = clearedOrSet(*req.ImageURL)
	}
	return p, nil
}

func clearedOrSet(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (f *fakePostService) Delete(_ context.Context, authorID, id string) error {
	f.author = authorID
	if _, ok := f.posts[id]; !ok {
		return apperrors.NotFound("post not found")
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePostService) GetPublishedBySlug(_ context.Context, slug string) (*model.Post, error) {
	for _, p := range f.posts {
		if p.Slug != nil && *p.Slug == slug && p.Published {
			return p, nil
		}
	}
	return nil, apperrors.NotFound("post not found")
}

func asUser(r *http.Request, id string) *http.Request {
	return r.WithContext(SetIdentityInContext(r.Context(), &domainauth.Identity{ID: id}))
}

func postsMux(svc *fakePostService) *http.ServeMux {
	h := &PostHandlers{Svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts", h.List)
	mux.HandleFunc("POST /api/posts", h.Create)
	mux.HandleFunc("GET /api/posts/{id}", h.Get)
	mux.HandleFunc("PUT /api/posts/{id}", h.Update)
	mux.HandleFunc("DELETE /api/posts/{id}", h.Delete)
	mux.HandleFunc("GET /api/public/posts/{slug}", h.Public)
	return mux
}

func TestPostHandlers_List(t *testing.T) {
	svc := &fakePostService{}
	rec := httptest.NewRecorder()
	postsMux(svc).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/posts?limit=500&offset=-3&published=true", nil), "u-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "u-1", svc.author)
	assert.Equal(t, maxPostsLimit, svc.listOpts.Limit)
	assert.Zero(t, svc.listOpts.Offset)
	require.NotNil(t, svc.listOpts.Published)
	assert.True(t, *svc.listOpts.Published)
}

func TestPostHandlers_Create(t *testing.T) {
	svc := &fakePostService{}
	mux := postsMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":"Hello"}`))
	mux.ServeHTTP(rec, asUser(req, "u-1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var post model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "u-1", post.AuthorID)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":"x","content":null,"author_id":"someone"}`))
	mux.ServeHTTP(rec, asUser(req, "u-1"))
	require.Equal(t, http.StatusCreated, rec.Code, "author_id in the body is ignored")
	assert.Equal(t, "u-1", svc.author)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "u-1", post.AuthorID)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":"x","bogus":1}`))
	mux.ServeHTTP(rec, asUser(req, "u-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	svc.err = apperrors.ValidationField("title", "title is required")
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":""}`))
	mux.ServeHTTP(rec, asUser(req, "u-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"validation","message":"title is required","field":"title"}`, rec.Body.String())
}

func TestPostHandlers_OwnershipAndLifecycle(t *testing.T) {
	svc := &fakePostService{posts: map[string]*model.Post{
		"p-1": {ID: "p-1", Title: "Mine", AuthorID: "u-1"},
	}}
	mux := postsMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/posts/p-1", nil), "u-2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/posts/p-1", strings.NewReader(`{"title":"Renamed"}`))
	mux.ServeHTTP(rec, asUser(req, "u-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Renamed")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/posts/p-1", nil), "u-1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/posts/p-1", nil), "u-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostHandlers_UpdateClearsFields(t *testing.T) {
	svc := &fakePostService{posts: map[string]*model.Post{
		"p-1": {ID: "p-1", Title: "Mine", AuthorID: "u-1", Content: testutil.StringPtr("body"), ImageURL: testutil.StringPtr("https://img.example/a.png")},
	}}
	mux := postsMux(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/posts/p-1", strings.NewReader(`{"content":null}`))
	mux.ServeHTTP(rec, asUser(req, "u-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastUpdate.Content)
	assert.Empty(t, *svc.lastUpdate.Content)
	assert.Nil(t, svc.lastUpdate.ImageURL, "absent image_url is left alone")

	var post model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Nil(t, post.Content)
	require.NotNil(t, post.ImageURL)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/posts/p-1", strings.NewReader(`{"title":"Mine","image_url":null}`))
	mux.ServeHTTP(rec, asUser(req, "u-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cleared))
	assert.Nil(t, cleared.ImageURL)
	assert.Nil(t, cleared.Content)
}

func TestPostHandlers_Public(t *testing.T) {
	svc := &fakePostService{posts: map[string]*model.Post{
		"p-1": {ID: "p-1", Title: "Live", Slug: testutil.StringPtr("live"), Published: true},
		"p-2": {ID: "p-2", Title: "Draft", Slug: testutil.StringPtr("draft")},
	}}
	mux := postsMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public/posts/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public/posts/draft", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteAppError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, context.DeadlineExceeded)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal","message":"internal error"}`, rec.Body.String())
}
