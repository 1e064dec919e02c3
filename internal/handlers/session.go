package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

type ctxKey int

const currentUserKey ctxKey = iota

// CurrentUser returns the authenticated identity attached by AuthMiddleware.
func CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(currentUserKey).(models.User)
	return user, ok
}

func withCurrentUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// AuthMiddleware is the authentication gate applied to protected routes. It
// resolves an access token to a user identity and attaches it to the request
// context. It never mutates state.
type AuthMiddleware struct {
	Users  UserStore
	Tokens TokenManager
}

// Require wraps a handler so it only runs for authenticated requests. The
// access token is taken from the accessToken cookie first, then from the
// Authorization header. Expired and malformed tokens are deliberately
// indistinguishable to the caller.
func (m AuthMiddleware) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		if m.Users == nil || m.Tokens == nil {
			logger.Error("auth middleware dependencies unavailable", "hasUsers", m.Users != nil, "hasTokens", m.Tokens != nil)
			respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
			return
		}

		token := accessTokenFromRequest(r)
		if token == "" {
			respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
			return
		}

		userID, err := m.Tokens.Verify(token, auth.KindAccess)
		if err != nil {
			logger.Warn("access token rejected")
			respondError(ctx, w, http.StatusUnauthorized, "invalid access token")
			return
		}

		user, err := m.Users.FindByID(ctx, userID)
		if err != nil {
			// covers both missing users and store failures; a stale token for
			// a deleted account must not read differently from a bad one
			logger.Warn("access token user lookup failed", "userId", userID, "error", err)
			respondError(ctx, w, http.StatusUnauthorized, "invalid access token")
			return
		}

		next(w, r.WithContext(withCurrentUser(ctx, user.Sanitized())))
	}
}

func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
