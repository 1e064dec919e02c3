package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// UserHandler implements the account profile and channel endpoints.
type UserHandler struct {
	Users        UserStore
	History      WatchHistoryStore
	Storage      AssetStorage
	Cleaner      AssetCleaner
	ChannelStats channels.StatsProvider

	MaxUploadBytes int64
}

// Current handles GET /api/v1/users/current-user.
func (h UserHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	respondData(ctx, w, http.StatusOK, newUserResponse(user), "current user fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account: full name and/or
// email.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if fullName == "" && email == "" {
		respondError(ctx, w, http.StatusBadRequest, "at least one of fullName or email is required")
		return
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid email address")
			return
		}
	}

	user, err := h.Users.UpdateProfile(ctx, identity.ID, fullName, email)
	if err != nil {
		respondStoreError(ctx, w, err, "user not found")
		return
	}

	respondData(ctx, w, http.StatusOK, newUserResponse(user), "account updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar (multipart).
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, imageUpdate{
		field:    "avatar",
		prefix:   "avatars",
		update:   h.Users.UpdateAvatar,
		previous: func(u models.User) string { return u.AvatarURL },
		message:  "avatar updated successfully",
	})
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image (multipart).
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, imageUpdate{
		field:    "coverImage",
		prefix:   "covers",
		update:   h.Users.UpdateCoverImage,
		previous: func(u models.User) string { return u.CoverImageURL },
		message:  "cover image updated successfully",
	})
}

type imageUpdate struct {
	field    string
	prefix   string
	update   func(ctx context.Context, userID, location string) (models.User, error)
	previous func(models.User) string
	message  string
}

// updateImage uploads the replacement asset, persists its location and
// schedules the superseded one for background deletion.
func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, op imageUpdate) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	location, err := saveFormAsset(ctx, h.Storage, r, op.field, op.prefix)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respondError(ctx, w, http.StatusBadRequest, op.field+" file is required")
			return
		}
		logger.Error("image upload failed", "field", op.field, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "image upload failed")
		return
	}

	user, err := op.update(ctx, identity.ID, location)
	if err != nil {
		h.enqueueCleanup(r, location)
		respondStoreError(ctx, w, err, "user not found")
		return
	}

	if old := op.previous(identity); old != "" && old != location {
		h.enqueueCleanup(r, old)
	}

	respondData(ctx, w, http.StatusOK, newUserResponse(user), op.message)
}

func (h UserHandler) enqueueCleanup(r *http.Request, location string) {
	if h.Cleaner == nil || location == "" {
		return
	}
	if err := h.Cleaner.Enqueue(r.Context(), location); err != nil {
		logging.FromContext(r.Context()).Warn("failed to enqueue asset cleanup", "location", location, "error", err)
	}
}

// ChannelProfile handles GET /api/v1/users/channel/{username}: the public
// profile plus subscription counters, relative to the requesting viewer.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := logging.StartSpan(r.Context(), "users.channel_profile")
	defer span.End()

	viewer, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	username, err := url.PathUnescape(r.PathValue("username"))
	if err != nil || strings.TrimSpace(username) == "" {
		respondError(ctx, w, http.StatusBadRequest, "username is required")
		return
	}
	username = strings.ToLower(strings.TrimSpace(username))

	channel, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		respondStoreError(ctx, w, err, "channel not found")
		return
	}

	stats := models.ChannelStats{}
	if h.ChannelStats != nil {
		stats, err = h.ChannelStats.ChannelStats(ctx, channel.ID, viewer.ID)
		if err != nil {
			logging.FromContext(ctx).Error("channel stats unavailable", "channelId", channel.ID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to load channel stats")
			return
		}
	}

	respondData(ctx, w, http.StatusOK, newChannelResponse(channel, stats), "channel profile fetched successfully")
}

// WatchHistory handles GET /api/v1/users/history: videos the user watched,
// newest first.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	limit := intQueryParam(r.URL.Query().Get("limit"), 20)

	entries, err := h.History.ListForUser(ctx, user.ID, limit)
	if err != nil {
		respondStoreError(ctx, w, err, "watch history not found")
		return
	}

	out := make([]watchEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, watchEntryResponse{
			Video:     newVideoResponse(entry.Video),
			WatchedAt: entry.WatchedAt,
		})
	}

	respondData(ctx, w, http.StatusOK, out, "watch history fetched successfully")
}

func (h UserHandler) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return 32 << 20
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

type channelResponse struct {
	ID                   string `json:"id"`
	Username             string `json:"username"`
	FullName             string `json:"fullName"`
	AvatarURL            string `json:"avatar"`
	CoverImageURL        string `json:"coverImage"`
	SubscriberCount      int64  `json:"subscriberCount"`
	ChannelsSubscribedTo int64  `json:"channelsSubscribedTo"`
	IsSubscribed         bool   `json:"isSubscribed"`
}

func newChannelResponse(user models.User, stats models.ChannelStats) channelResponse {
	return channelResponse{
		ID:                   user.ID,
		Username:             user.Username,
		FullName:             user.FullName,
		AvatarURL:            user.AvatarURL,
		CoverImageURL:        user.CoverImageURL,
		SubscriberCount:      stats.SubscriberCount,
		ChannelsSubscribedTo: stats.ChannelsSubscribedTo,
		IsSubscribed:         stats.IsSubscribed,
	}
}

type watchEntryResponse struct {
	Video     videoResponse `json:"video"`
	WatchedAt time.Time     `json:"watchedAt"`
}
