package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// tokenIssuer mints HS256 access tokens and opaque refresh tokens. Only
// the sha256 of a refresh token is stored.
type tokenIssuer struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshTokenStore
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func (t tokenIssuer) accessToken(user models.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": user.ID.Hex(),
		"sub":    user.ID.Hex(),
		"role":   user.Role,
		"email":  user.Email,
		"iat":    now.Unix(),
		"exp":    now.Add(t.accessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.secret))
}

func (t tokenIssuer) issue(ctx context.Context, user models.User) (*issuedTokens, error) {
	now := time.Now().UTC()

	access, err := t.accessToken(user, now)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	plainRefresh, err := generateRefreshString()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	refresh := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(t.refreshTTL),
		CreatedAt: now,
	}
	if err := t.store.Create(ctx, &refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &issuedTokens{
		AccessToken:    access,
		RefreshToken:   plainRefresh,
		RefreshTokenID: refresh.ID,
		ExpiresIn:      int64(t.accessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
