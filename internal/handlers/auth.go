package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// AuthHandler implements registration and the session lifecycle endpoints.
type AuthHandler struct {
	Users   UserStore
	Tokens  TokenManager
	Storage AssetStorage
	Cleaner AssetCleaner
	Limiter RateLimiter

	MaxUploadBytes int64
	NowFunc        func() time.Time
}

// Register handles POST /api/v1/users/register requests (multipart).
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil || h.Storage == nil {
		logger.Error("registration dependencies unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "registration services unavailable")
		return
	}

	if !allowRequest(h.Limiter, r, "register") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many attempts, slow down")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	fullName := strings.TrimSpace(r.FormValue("fullName"))
	password := r.FormValue("password")

	if username == "" || email == "" || fullName == "" || password == "" {
		respondError(ctx, w, http.StatusBadRequest, "username, email, fullName and password are required")
		return
	}
	if !usernameRe.MatchString(username) {
		respondError(ctx, w, http.StatusBadRequest, "username must be 3-30 lowercase letters, digits or underscores")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(password) < 8 {
		respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	for _, login := range []string{username, email} {
		if _, err := h.Users.FindByLogin(ctx, login); err == nil {
			respondError(ctx, w, http.StatusConflict, "username or email already registered")
			return
		} else if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("register lookup failed", "login", login, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to verify existing accounts")
			return
		}
	}

	avatarURL, err := saveFormAsset(ctx, h.Storage, r, "avatar", "avatars")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respondError(ctx, w, http.StatusBadRequest, "avatar image is required")
			return
		}
		logger.Error("avatar upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "avatar upload failed")
		return
	}

	coverURL, err := saveFormAsset(ctx, h.Storage, r, "coverImage", "covers")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		logger.Error("cover image upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "cover image upload failed")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		h.discardUploads(ctx, avatarURL, coverURL)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      string(hashed),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		// the account does not exist, so nothing references the uploads
		h.discardUploads(ctx, avatarURL, coverURL)
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "username or email already registered")
			return
		}
		logger.Error("register failed to create user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	tokens, err := h.Tokens.IssuePair(ctx, user.ID)
	if err != nil {
		logger.Error("register failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setAuthCookies(w, tokens)
	respondData(ctx, w, http.StatusCreated, sessionPayload(user, tokens), "user registered successfully")
}

// Login handles POST /api/v1/users/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	if !allowRequest(h.Limiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many attempts, slow down")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	login := strings.ToLower(strings.TrimSpace(req.Username))
	if login == "" {
		login = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if login == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "username or email and password are required")
		return
	}

	user, err := h.Users.FindByLogin(ctx, login)
	if err != nil {
		logger.Warn("login user lookup failed", "login", login, "error", err)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokens, err := h.Tokens.IssuePair(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setAuthCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, sessionPayload(user, tokens), "user logged in successfully")
}

// Refresh handles POST /api/v1/users/refresh-token requests. Presenting a
// superseded refresh token always fails: rotation is the revocation point.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Tokens == nil {
		logger.Error("token manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	if !allowRequest(h.Limiter, r, "refresh") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many attempts, slow down")
		return
	}

	presented := refreshTokenFromRequest(r)
	if presented == "" {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	tokens, err := h.Tokens.Refresh(ctx, presented)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenRevoked) {
			logger.Warn("refresh token rejected")
			respondError(ctx, w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		logger.Error("refresh failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to refresh session")
		return
	}

	setAuthCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, tokenPayload(tokens), "access token refreshed")
}

// Logout handles POST /api/v1/users/logout requests for the authenticated
// user. Access tokens already in the wild stay valid until expiry.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.Tokens.Revoke(ctx, user.ID); err != nil {
		logging.FromContext(ctx).Error("logout failed to revoke session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to log out")
		return
	}

	clearAuthCookies(w)
	respondData(ctx, w, http.StatusOK, nil, "user logged out successfully")
}

// ChangePassword handles POST /api/v1/users/change-password requests.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := CurrentUser(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		respondError(ctx, w, http.StatusBadRequest, "old and new passwords are required")
		return
	}
	if len(req.NewPassword) < 8 {
		respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	// the context identity is sanitized; fetch the stored hash
	user, err := h.Users.FindByID(ctx, identity.ID)
	if err != nil {
		respondStoreError(ctx, w, err, "user not found")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "incorrect old password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("change password failed to hash", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		respondStoreError(ctx, w, err, "user not found")
		return
	}

	respondData(ctx, w, http.StatusOK, nil, "password changed successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func tokenPayload(pair models.TokenPair) tokensResponse {
	return tokensResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
}

func sessionPayload(user models.User, pair models.TokenPair) map[string]any {
	return map[string]any{
		"user":   newUserResponse(user),
		"tokens": tokenPayload(pair),
	}
}

func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

func setAuthCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// discardUploads schedules deletion of assets stored for a registration
// that did not complete.
func (h AuthHandler) discardUploads(ctx context.Context, locations ...string) {
	if h.Cleaner == nil {
		return
	}
	for _, location := range locations {
		if location == "" {
			continue
		}
		if err := h.Cleaner.Enqueue(ctx, location); err != nil {
			logging.FromContext(ctx).Warn("failed to schedule upload cleanup", "location", location, "error", err)
		}
	}
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func (h AuthHandler) maxUpload() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return 32 << 20
}
