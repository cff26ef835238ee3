package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (user.User, error)
	CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, role string) (string, error)
	AccessTTL() time.Duration
}

type AuthHandler struct {
	identity Authenticator
	tokens   TokenIssuer
}

func NewAuthHandler(identity Authenticator, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{identity: identity, tokens: tokens}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for the credential lookup
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.identity.Authenticate(cctx, req.Email, req.Password)
	if err != nil {
		RespondDomainError(ctx, err, "Could not sign in")
		return
	}

	accessToken, err := h.tokens.GenerateAccessToken(u.ID, string(u.Role))
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(h.tokens.AccessTTL().Seconds()),
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := currentUser(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// CreateUser is admin only; the route group enforces the role.
func (h *AuthHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.identity.CreateUser(cctx, req)
	if err != nil {
		RespondDomainError(ctx, err, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}
