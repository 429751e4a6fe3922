// Package model holds the persisted post and profile types and the
// read models served by the dashboard endpoints.
//
//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// Profile is the public profile row attached to an identity.
type Profile struct {
	ID        string    `json:"id"                   db:"id"`
	Username  *string   `json:"username,omitempty"   db:"username"`
	FullName  *string   `json:"full_name,omitempty"  db:"full_name"`
	AvatarURL *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Website   *string   `json:"website,omitempty"    db:"website"`
	CreatedAt time.Time `json:"created_at"           db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"           db:"updated_at"`
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	Users          int `json:"users"`
	Posts          int `json:"posts"`
	PublishedPosts int `json:"published_posts"`
	DraftPosts     int `json:"draft_posts"`
	RecentSignups  int `json:"recent_signups"`
	ActiveUsers    int `json:"active_users"`
}

// ActivityItem is one entry of a user's activity feed.
type ActivityItem struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
	PostID  *string   `json:"post_id,omitempty"`
}
