package activity

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler handles the activity log endpoint.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an activity handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// List handles GET /activity. Query ?limit=N caps the number of rows
// (default 50, max 200).
func (h *Handler) List(c *gin.Context) {
	orgID := middleware.OrganizationID(c)

	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	list, err := h.store.ListByOrganization(c.Request.Context(), orgID, limit)
	if err != nil {
		h.logger.Error("list activity", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to list activity")
		return
	}
	if list == nil {
		list = []models.StockActivity{}
	}
	response.OK(c, list)
}
