package orgs

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/pkg/response"
)

// UpdateSettingsRequest is the body for PUT /settings. The threshold is a
// pointer so an explicit 0 survives binding.
type UpdateSettingsRequest struct {
	DefaultLowStockThreshold *int `json:"default_low_stock_threshold" binding:"required,gte=0"`
}

// Handler handles organization settings endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a settings handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// GetSettings handles GET /settings: returns the caller's organization.
func (h *Handler) GetSettings(c *gin.Context) {
	orgID := middleware.OrganizationID(c)

	org, err := h.store.GetByID(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("load organization", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to load settings")
		return
	}

	response.OK(c, org)
}

// UpdateSettings handles PUT /settings: updates the caller's org default
// low-stock threshold. The org id always comes from the token, never from
// the request, so a caller can only ever mutate its own organization.
func (h *Handler) UpdateSettings(c *gin.Context) {
	orgID := middleware.OrganizationID(c)

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "default_low_stock_threshold must be a non-negative integer")
		return
	}

	org, err := h.store.UpdateDefaultLowStockThreshold(c.Request.Context(), orgID, *req.DefaultLowStockThreshold)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("update settings", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to update settings")
		return
	}

	response.OK(c, org)
}
