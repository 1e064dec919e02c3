package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// VideoHandler implements the video publishing endpoints.
type VideoHandler struct {
	Videos  VideoStore
	History WatchHistoryStore
	Storage AssetStorage
	Probe   DurationProber
	Cleaner AssetCleaner

	MaxUploadBytes int64
	NowFunc        func() time.Time
}

// ownedVideoHandler receives a video whose ownership has been verified.
type ownedVideoHandler func(w http.ResponseWriter, r *http.Request, video models.Video)

// RequireOwner guards mutating video routes: it validates the id format
// before touching the store, then confirms the authenticated identity owns
// the video. The loaded video is passed through so handlers do not re-fetch.
func (h VideoHandler) RequireOwner(next ownedVideoHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, ok := CurrentUser(ctx)
		if !ok {
			respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
			return
		}

		videoID := r.PathValue("videoId")
		if _, err := uuid.Parse(videoID); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid video id")
			return
		}

		video, err := h.Videos.FindByID(ctx, videoID)
		if err != nil {
			respondStoreError(ctx, w, err, "video not found")
			return
		}

		if video.OwnerID != user.ID {
			respondError(ctx, w, http.StatusForbidden, "you can only modify your own videos")
			return
		}

		next(w, r, video)
	}
}

// List handles GET /api/v1/videos: published videos with search, sort and
// pagination.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := logging.StartSpan(r.Context(), "videos.list")
	defer span.End()

	query := r.URL.Query()

	filter := models.VideoFilter{
		Page:     intQueryParam(query.Get("page"), 1),
		Limit:    intQueryParam(query.Get("limit"), 10),
		Query:    strings.TrimSpace(query.Get("query")),
		SortBy:   query.Get("sortBy"),
		SortType: strings.ToLower(query.Get("sortType")),
	}

	if ownerID := query.Get("userId"); ownerID != "" {
		if _, err := uuid.Parse(ownerID); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid user id")
			return
		}
		filter.OwnerID = ownerID
	}

	videos, total, err := h.Videos.List(ctx, filter)
	if err != nil {
		respondStoreError(ctx, w, err, "videos not found")
		return
	}

	respondData(ctx, w, http.StatusOK, map[string]any{
		"videos":     videoResponses(videos),
		"pagination": paginationPayload(filter.Page, filter.Limit, total),
	}, "videos fetched successfully")
}

// Create handles POST /api/v1/videos: multipart upload of a video file and
// thumbnail, stored in the object store.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("invalid video payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondError(ctx, w, http.StatusBadRequest, "title and description are required")
		return
	}

	videoFile, videoHeader, err := r.FormFile("videoFile")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "video file is required")
		return
	}
	defer videoFile.Close()

	spooled, cleanup, err := spoolToTemp(videoFile)
	if err != nil {
		logger.Error("spool video upload", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "video upload failed")
		return
	}
	defer cleanup()

	duration := h.probeDuration(r, spooled.Name())

	uploadCtx, uploadSpan := logging.StartSpan(ctx, "videos.upload")
	videoURL, err := h.Storage.Save(uploadCtx, assetKey("videos", videoHeader), spooled)
	uploadSpan.End()
	if err != nil {
		logger.Error("video upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "video upload failed")
		return
	}

	thumbnailURL, err := saveFormAsset(ctx, h.Storage, r, "thumbnail", "thumbnails")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respondError(ctx, w, http.StatusBadRequest, "thumbnail is required")
		} else {
			logger.Error("thumbnail upload failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "thumbnail upload failed")
		}
		h.enqueueCleanup(r, videoURL)
		return
	}

	now := h.now()
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      user.ID,
		Owner:        user.Summary(),
		Title:        title,
		Description:  description,
		VideoURL:     videoURL,
		ThumbnailURL: thumbnailURL,
		Duration:     duration,
		IsPublished:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("failed to create video", "error", err)
		h.enqueueCleanup(r, videoURL, thumbnailURL)
		respondStoreError(ctx, w, err, "owner not found")
		return
	}

	respondData(ctx, w, http.StatusCreated, newVideoResponse(video), "video uploaded successfully")
}

// Get handles GET /api/v1/videos/{videoId}. Unpublished videos are visible
// only to their owner; everyone else sees a 404 rather than a 403 so drafts
// stay undiscoverable.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	videoID := r.PathValue("videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "video not found")
		return
	}

	if !video.IsPublished && video.OwnerID != user.ID {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	if err := h.Videos.IncrementViews(ctx, video.ID); err != nil {
		logger.Warn("failed to increment views", "videoId", video.ID, "error", err)
	} else {
		video.Views++
	}

	if h.History != nil {
		if err := h.History.Record(ctx, user.ID, video.ID); err != nil {
			logger.Warn("failed to record watch history", "videoId", video.ID, "error", err)
		}
	}

	respondData(ctx, w, http.StatusOK, newVideoResponse(video), "video fetched successfully")
}

// Update handles PATCH /api/v1/videos/{videoId} for the owner: title,
// description and/or a replacement thumbnail.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request, video models.Video) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))

	thumbnailURL, err := saveFormAsset(ctx, h.Storage, r, "thumbnail", "thumbnails")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		logger.Error("thumbnail upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "thumbnail upload failed")
		return
	}

	if title == "" && description == "" && thumbnailURL == "" {
		respondError(ctx, w, http.StatusBadRequest, "at least one of title, description or thumbnail is required")
		return
	}

	previousThumbnail := ""
	if title != "" {
		video.Title = title
	}
	if description != "" {
		video.Description = description
	}
	if thumbnailURL != "" {
		previousThumbnail = video.ThumbnailURL
		video.ThumbnailURL = thumbnailURL
	}

	if err := h.Videos.Update(ctx, video); err != nil {
		h.enqueueCleanup(r, thumbnailURL)
		respondStoreError(ctx, w, err, "video not found")
		return
	}

	h.enqueueCleanup(r, previousThumbnail)
	video.UpdatedAt = h.now()
	respondData(ctx, w, http.StatusOK, newVideoResponse(video), "video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId} for the owner. The stored
// media assets are removed in the background after the row is gone.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request, video models.Video) {
	ctx := r.Context()

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		respondStoreError(ctx, w, err, "video not found")
		return
	}

	h.enqueueCleanup(r, video.VideoURL, video.ThumbnailURL)
	respondData(ctx, w, http.StatusOK, newVideoResponse(video), "video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId} for
// the owner, flipping the publish flag.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request, video models.Video) {
	ctx := r.Context()

	video.IsPublished = !video.IsPublished
	if err := h.Videos.SetPublished(ctx, video.ID, video.IsPublished); err != nil {
		respondStoreError(ctx, w, err, "video not found")
		return
	}

	message := "video unpublished successfully"
	if video.IsPublished {
		message = "video published successfully"
	}
	respondData(ctx, w, http.StatusOK, newVideoResponse(video), message)
}

func (h VideoHandler) probeDuration(r *http.Request, path string) float64 {
	if h.Probe == nil {
		return 0
	}
	duration, err := h.Probe.Duration(r.Context(), path)
	if err != nil {
		// a video without a known duration is still publishable
		logging.FromContext(r.Context()).Warn("duration probe failed", "error", err)
		return 0
	}
	return duration
}

func (h VideoHandler) enqueueCleanup(r *http.Request, locations ...string) {
	if h.Cleaner == nil {
		return
	}
	for _, location := range locations {
		if location == "" {
			continue
		}
		if err := h.Cleaner.Enqueue(r.Context(), location); err != nil {
			logging.FromContext(r.Context()).Warn("failed to enqueue asset cleanup", "location", location, "error", err)
		}
	}
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func (h VideoHandler) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return 256 << 20
}

type videoResponse struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	VideoURL     string        `json:"videoFile"`
	ThumbnailURL string        `json:"thumbnail"`
	Duration     float64       `json:"duration"`
	Views        int64         `json:"views"`
	IsPublished  bool          `json:"isPublished"`
	Owner        ownerResponse `json:"owner"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type ownerResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatar"`
}

func newVideoResponse(video models.Video) videoResponse {
	return videoResponse{
		ID:           video.ID,
		Title:        video.Title,
		Description:  video.Description,
		VideoURL:     video.VideoURL,
		ThumbnailURL: video.ThumbnailURL,
		Duration:     video.Duration,
		Views:        video.Views,
		IsPublished:  video.IsPublished,
		Owner:        newOwnerResponse(video.Owner),
		CreatedAt:    video.CreatedAt,
		UpdatedAt:    video.UpdatedAt,
	}
}

func newOwnerResponse(owner models.UserSummary) ownerResponse {
	return ownerResponse{ID: owner.ID, Username: owner.Username, FullName: owner.FullName, AvatarURL: owner.AvatarURL}
}

func videoResponses(videos []models.Video) []videoResponse {
	out := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		out = append(out, newVideoResponse(video))
	}
	return out
}

type paginationResponse struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int64 `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
	Limit       int   `json:"limit"`
}

func paginationPayload(page, limit int, total int64) paginationResponse {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	totalPages := (total + int64(limit) - 1) / int64(limit)
	return paginationResponse{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     int64(page) < totalPages,
		HasPrev:     page > 1 && total > 0,
		Limit:       limit,
	}
}

func intQueryParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
