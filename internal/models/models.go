package models

import "time"

// User represents an account within the VidTube platform. Password holds the
// bcrypt hash, never the clear text. RefreshToken holds the single currently
// valid refresh token for the account, or "" when no session is active.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sanitized returns a copy of the user with credential fields cleared, safe
// to attach to request contexts and response payloads.
func (u User) Sanitized() User {
	u.Password = ""
	u.RefreshToken = ""
	return u
}

// Summary projects the public slice of a user shown on owned resources.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL}
}

// UserSummary is the public owner information embedded in videos and tweets.
type UserSummary struct {
	ID        string
	Username  string
	FullName  string
	AvatarURL string
}

// Video is a published (or draft) video owned by exactly one user.
// Unpublished videos are visible only to their owner.
type Video struct {
	ID           string
	OwnerID      string
	Owner        UserSummary
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Duration     float64
	Views        int64
	IsPublished  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VideoFilter describes a listing query over published videos.
type VideoFilter struct {
	Page     int
	Limit    int
	Query    string
	SortBy   string
	SortType string
	OwnerID  string
}

// MaxTweetLength bounds tweet content, measured in runes.
const MaxTweetLength = 280

// Tweet is a short text post owned by exactly one user.
type Tweet struct {
	ID        string
	OwnerID   string
	Owner     UserSummary
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscription records that a subscriber follows a channel (both are users).
type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// ChannelStats aggregates the subscription counters shown on a channel page.
type ChannelStats struct {
	SubscriberCount      int64
	ChannelsSubscribedTo int64
	IsSubscribed         bool
}

// WatchEntry is one row of a user's watch history, newest first.
type WatchEntry struct {
	Video     Video
	WatchedAt time.Time
}

// TokenPair groups the signed credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
