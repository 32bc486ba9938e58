package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stocktally/backend/pkg/response"
	"github.com/stocktally/backend/pkg/utils"
)

// SignupRequest is the body for POST /signup.
type SignupRequest struct {
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required"`
	OrganizationName string `json:"organization_name" binding:"required"`
}

// LoginRequest is the body for POST /login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignupResponse is the body returned by POST /signup.
type SignupResponse struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// LoginResponse is the body returned by POST /login.
type LoginResponse struct {
	Token          string `json:"token"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// Handler handles the public identity endpoints.
type Handler struct {
	store  Store
	tokens *TokenService
	logger *zap.Logger
}

// NewHandler creates an identity handler.
func NewHandler(store Store, tokens *TokenService, logger *zap.Logger) *Handler {
	return &Handler{store: store, tokens: tokens, logger: logger}
}

// Signup handles POST /signup: creates an organization and its first user.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	// Early exit for a known-taken email. Safety against concurrent signups
	// comes from the store's unique constraint, not from this read; it only
	// saves a wasted bcrypt hash.
	if _, err := h.store.GetUserByEmail(c.Request.Context(), req.Email); err == nil {
		response.Conflict(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}

	user, org, err := h.store.CreateAccount(c.Request.Context(), req.Email, hash, req.OrganizationName)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create account", zap.Error(err), zap.String("organization_name", req.OrganizationName))
		response.Internal(c, "failed to create account")
		return
	}

	response.Created(c, SignupResponse{
		UserID:         user.ID.String(),
		OrganizationID: org.ID.String(),
	})
}

// Login handles POST /login: verifies credentials and issues a session
// token scoped to the user's organization. Unknown email and wrong password
// produce the same response so account existence is never revealed.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("login lookup", zap.Error(err))
			response.Internal(c, "login failed")
			return
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.OrganizationID)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, LoginResponse{
		Token:          token,
		UserID:         user.ID.String(),
		OrganizationID: user.OrganizationID.String(),
	})
}
