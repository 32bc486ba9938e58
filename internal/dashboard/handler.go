package dashboard

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/internal/orgs"
	"github.com/stocktally/backend/internal/products"
	"github.com/stocktally/backend/pkg/response"
)

// OverviewResponse is the body returned by GET /dashboard.
type OverviewResponse struct {
	TotalProducts            int              `json:"total_products"`
	TotalQuantity            int              `json:"total_quantity"`
	LowStockItems            []models.Product `json:"low_stock_items"`
	DefaultLowStockThreshold int              `json:"default_low_stock_threshold"`
}

// Handler handles the dashboard endpoint.
type Handler struct {
	orgStore     orgs.Store
	productStore products.Store
	logger       *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(orgStore orgs.Store, productStore products.Store, logger *zap.Logger) *Handler {
	return &Handler{orgStore: orgStore, productStore: productStore, logger: logger}
}

// Overview handles GET /dashboard: inventory totals plus the low-stock
// list for the caller's organization.
func (h *Handler) Overview(c *gin.Context) {
	orgID := middleware.OrganizationID(c)

	org, err := h.orgStore.GetByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("load organization for dashboard", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to load dashboard")
		return
	}

	sum, err := h.productStore.Summary(c.Request.Context(), orgID, org.DefaultLowStockThreshold)
	if err != nil {
		h.logger.Error("summarize products", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to load dashboard")
		return
	}

	low := sum.LowStock
	if low == nil {
		low = []models.Product{}
	}
	response.OK(c, OverviewResponse{
		TotalProducts:            sum.TotalProducts,
		TotalQuantity:            sum.TotalQuantity,
		LowStockItems:            low,
		DefaultLowStockThreshold: org.DefaultLowStockThreshold,
	})
}
