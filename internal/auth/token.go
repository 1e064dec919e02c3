package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrInvalidToken covers every stateless verification failure: bad
	// signature, malformed payload, or expiry. Callers must not be able to
	// tell these apart.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrTokenRevoked indicates a refresh token that verified but no longer
	// matches the single value stored on the user record.
	ErrTokenRevoked = errors.New("refresh token superseded or revoked")
)

// TokenKind selects which signing secret and TTL a token is checked against.
type TokenKind int

const (
	// KindAccess is the short-lived stateless credential.
	KindAccess TokenKind = iota
	// KindRefresh is the longer-lived credential validated against the store.
	KindRefresh
)

// TokenStore persists the single active refresh token on the user record.
type TokenStore interface {
	SetRefreshToken(ctx context.Context, userID, token string) error
	// RotateRefreshToken atomically replaces current with next, failing when
	// the stored value no longer equals current.
	RotateRefreshToken(ctx context.Context, userID, current, next string) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

// TokenConfig carries the signing material injected into the token service.
// Secrets differ per kind so a refresh token can never pass as an access one.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService issues and validates the signed access/refresh token pair.
type TokenService struct {
	cfg   TokenConfig
	store TokenStore
	now   func() time.Time
}

// NewTokenService constructs a TokenService backed by the provided store.
func NewTokenService(cfg TokenConfig, store TokenStore) *TokenService {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		panic("auth: token secrets must not be empty")
	}
	if store == nil {
		panic("auth: token store must not be nil")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 240 * time.Hour
	}
	return &TokenService{cfg: cfg, store: store, now: time.Now}
}

// IssueAccessToken produces a signed token carrying the user id with the
// configured short TTL. Pure computation, no side effects.
func (s *TokenService) IssueAccessToken(userID string) (string, time.Time, error) {
	return s.sign(userID, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

// IssueRefreshToken produces the longer-lived refresh credential.
func (s *TokenService) IssueRefreshToken(userID string) (string, time.Time, error) {
	return s.sign(userID, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

// IssuePair mints an access/refresh pair and persists the refresh token onto
// the user record, overwriting any prior value. That overwrite is what
// invalidates previously issued refresh tokens for the user.
func (s *TokenService) IssuePair(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	pair, err := s.mintPair(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := s.store.SetRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return pair, nil
}

// Refresh exchanges a presented refresh token for a new pair. The stored
// token is swapped for the new one in a single conditional update, so of two
// concurrent refreshes with the same token exactly one succeeds; the loser
// and any holder of a superseded token get ErrTokenRevoked.
func (s *TokenService) Refresh(ctx context.Context, presented string) (models.TokenPair, error) {
	userID, err := s.Verify(presented, KindRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.mintPair(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := s.store.RotateRefreshToken(ctx, userID, presented, pair.RefreshToken); err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Revoke clears the stored refresh token for the user, invalidating all
// future refresh attempts. Already-issued access tokens stay valid until
// their own expiry; stateless tokens cannot be recalled early.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.store.ClearRefreshToken(ctx, userID)
}

// Verify checks signature and expiry for the given kind and returns the user
// id carried by the token. It never consults the store.
func (s *TokenService) Verify(token string, kind TokenKind) (string, error) {
	secret := s.cfg.AccessSecret
	if kind == KindRefresh {
		secret = s.cfg.RefreshSecret
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

func (s *TokenService) mintPair(userID string) (models.TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, refreshExp, err := s.IssueRefreshToken(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) sign(userID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id must be provided")
	}

	now := s.now().UTC()
	expires := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        newTokenID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expires, nil
}
