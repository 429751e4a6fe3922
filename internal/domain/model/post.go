//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	maxPostTitleLen = 200
	maxPostSlugLen  = 200
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases s, collapses every run of characters outside [a-z0-9]
// into a single hyphen and trims leading and trailing hyphens.
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// Post is a blog post row.
type Post struct {
	ID        string    `json:"id"                  db:"id"`
	Title     string    `json:"title"               db:"title"`
	Slug      *string   `json:"slug,omitempty"      db:"slug"`
	Content   *string   `json:"content,omitempty"   db:"content"`
	Published bool      `json:"published"           db:"published"`
	ImageURL  *string   `json:"image_url,omitempty" db:"image_url"`
	AuthorID  string    `json:"author_id"           db:"author_id"`
	CreatedAt time.Time `json:"created_at"          db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"          db:"updated_at"`
}

// PostsListOptions controls paging and filtering for listing posts.
// AuthorID is required by the repository; Published filters when set.
type PostsListOptions struct {
	AuthorID  string
	Published *bool
	Limit     int
	Offset    int
}

// PostCounts aggregates post totals for the admin dashboard.
type PostCounts struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Drafts    int `json:"drafts"`
}

// CreatePostRequest represents parameters to create a Post.
// AuthorID is filled from the caller's identity, never from the request body.
type CreatePostRequest struct {
	Title     string  `json:"title"`
	Slug      *string `json:"slug,omitempty"`
	Content   *string `json:"content,omitempty"`
	Published *bool   `json:"published,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
	AuthorID  string  `json:"-"`
}

// UnmarshalJSON decodes a create body, rejecting unknown keys. A client
// supplied author_id is accepted and dropped.
func (r *CreatePostRequest) UnmarshalJSON(b []byte) error {
	type fields CreatePostRequest
	var body struct {
		fields
		AuthorID json.RawMessage `json:"author_id"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return err
	}
	*r = CreatePostRequest(body.fields)
	r.AuthorID = ""
	return nil
}

// UpdatePostRequest represents parameters to update a Post.
// A nil field is left unchanged. Content and ImageURL pointing at "" are
// cleared to NULL.
type UpdatePostRequest struct {
	Title     *string `json:"title,omitempty"`
	Slug      *string `json:"slug,omitempty"`
	Content   *string `json:"content,omitempty"`
	Published *bool   `json:"published,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
}

// UnmarshalJSON decodes an update body. An explicit null for content or
// image_url clears the column; an absent key leaves it unchanged. author_id
// is accepted and ignored. Other unknown keys are rejected.
func (r *UpdatePostRequest) UnmarshalJSON(b []byte) error {
	var body struct {
		Title     *string         `json:"title"`
		Slug      *string         `json:"slug"`
		Content   json.RawMessage `json:"content"`
		Published *bool           `json:"published"`
		ImageURL  json.RawMessage `json:"image_url"`
		AuthorID  json.RawMessage `json:"author_id"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return err
	}
	content, err := clearableString(body.Content)
	if err != nil {
		return err
	}
	imageURL, err := clearableString(body.ImageURL)
	if err != nil {
		return err
	}
	*r = UpdatePostRequest{
		Title:     body.Title,
		Slug:      body.Slug,
		Content:   content,
		Published: body.Published,
		ImageURL:  imageURL,
	}
	return nil
}

// clearableString maps an absent key to nil and a JSON null to "".
func clearableString(raw json.RawMessage) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v == nil {
		empty := ""
		return &empty, nil
	}
	return v, nil
}

// Validate validates CreatePostRequest.
func (r *CreatePostRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, maxPostTitleLen)),
		validation.Field(&r.Slug, validation.NilOrNotEmpty, validation.RuneLength(1, maxPostSlugLen)),
		validation.Field(&r.ImageURL, validation.When(r.ImageURL != nil && *r.ImageURL != "", is.URL)),
		validation.Field(&r.AuthorID, validation.Required, is.UUID),
	)
}

// HasUpdates reports whether any field is set in UpdatePostRequest.
func (r *UpdatePostRequest) HasUpdates() bool {
	return r.Title != nil || r.Slug != nil || r.Content != nil || r.Published != nil || r.ImageURL != nil
}

// Validate validates UpdatePostRequest, ensuring at least one field is set.
func (r *UpdatePostRequest) Validate() error {
	if !r.HasUpdates() {
		return validation.NewError("validation_no_updates", "at least one field must be updated")
	}
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.RuneLength(1, maxPostTitleLen)),
		validation.Field(&r.Slug, validation.NilOrNotEmpty, validation.RuneLength(1, maxPostSlugLen)),
		validation.Field(&r.ImageURL, validation.When(r.ImageURL != nil && *r.ImageURL != "", is.URL)),
	)
}
