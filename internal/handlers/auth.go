package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/models"
	"storefront/internal/store"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type AuthResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn"`
	User         models.User `json:"user"`
}

func authResponse(tokens *issuedTokens, user models.User) AuthResponse {
	return AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		User:         user,
	}
}

func Register(users UserStore, issuer tokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] register password hash failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user := models.User{
			Name:         name,
			Email:        req.Email,
			Phone:        strings.TrimSpace(req.Phone),
			PasswordHash: string(hash),
			Role:         models.RoleUser,
		}
		if err := users.Create(ctx, &user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				respondWithError(c, http.StatusConflict, route, "email already registered")
				return
			}
			respondInternal(c, route, err)
			return
		}

		tokens, err := issuer.issue(ctx, user)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Println("[AUTH] [INFO] user registered:", user.ID.Hex())
		c.JSON(http.StatusCreated, authResponse(tokens, user))
	}
}

// authenticate checks email and password. Unknown email and wrong password
// produce the same answer.
func authenticate(ctx context.Context, users UserStore, req LoginRequest) (models.User, bool, error) {
	user, err := users.FindByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return models.User{}, false, nil
	}
	return user, true, nil
}

func Login(users UserStore, issuer tokenIssuer) gin.HandlerFunc {
	return login("POST /api/auth/login", users, issuer, false)
}

// AdminLogin only accepts accounts with role=admin.
func AdminLogin(users UserStore, issuer tokenIssuer) gin.HandlerFunc {
	return login("POST /api/auth/admin/login", users, issuer, true)
}

func login(route string, users UserStore, issuer tokenIssuer, adminOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, ok, err := authenticate(ctx, users, req)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if !ok || (adminOnly && !user.IsAdmin()) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}

		tokens, err := issuer.issue(ctx, user)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, authResponse(tokens, user))
	}
}

// Refresh rotates the refresh token: the presented one is revoked and
// linked to its replacement.
func Refresh(users UserStore, tokens RefreshTokenStore, issuer tokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/refresh"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		token, err := tokens.FindActive(ctx, hashToken(strings.TrimSpace(req.RefreshToken)))
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if token.Expired(time.Now()) {
			_ = tokens.Revoke(ctx, token.ID, nil)
			respondWithError(c, http.StatusUnauthorized, route, "refresh token expired")
			return
		}

		user, err := users.FindByID(ctx, token.UserID)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusUnauthorized, route, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		issued, err := issuer.issue(ctx, user)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if err := tokens.Revoke(ctx, token.ID, &issued.RefreshTokenID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// a concurrent refresh won; drop the token we just minted
				_ = tokens.Revoke(ctx, issued.RefreshTokenID, nil)
				respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
				return
			}
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, authResponse(issued, user))
	}
}

func Logout(tokens RefreshTokenStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		err := tokens.RevokeByHash(ctx, hashToken(strings.TrimSpace(req.RefreshToken)))
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func GetMe(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/auth/me"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := users.FindByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, user)
	}
}
