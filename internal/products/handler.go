package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/internal/orgs"
	"github.com/stocktally/backend/pkg/queue"
	"github.com/stocktally/backend/pkg/response"
	"github.com/stocktally/backend/pkg/storage"
)

// CreateRequest is the body for POST /products.
type CreateRequest struct {
	Name              string   `json:"name" binding:"required"`
	SKU               string   `json:"sku" binding:"required"`
	QuantityOnHand    *int     `json:"quantity_on_hand" binding:"omitempty,gte=0"`
	CostPrice         *float64 `json:"cost_price" binding:"omitempty,gte=0"`
	SellingPrice      *float64 `json:"selling_price" binding:"omitempty,gte=0"`
	LowStockThreshold *int     `json:"low_stock_threshold" binding:"omitempty,gte=0"`
	Description       string   `json:"description"`
}

// UpdateRequest is the body for PUT /products/:id. All fields optional;
// absent fields are left unchanged.
type UpdateRequest struct {
	Name              *string  `json:"name"`
	SKU               *string  `json:"sku"`
	QuantityOnHand    *int     `json:"quantity_on_hand" binding:"omitempty,gte=0"`
	CostPrice         *float64 `json:"cost_price" binding:"omitempty,gte=0"`
	SellingPrice      *float64 `json:"selling_price" binding:"omitempty,gte=0"`
	LowStockThreshold *int     `json:"low_stock_threshold" binding:"omitempty,gte=0"`
	Description       *string  `json:"description"`
}

// Broadcaster pushes stock events to the organization's live feed room.
type Broadcaster interface {
	BroadcastToOrganizationAndPublish(orgID uuid.UUID, event string, payload interface{})
}

// AlertEnqueuer queues a low-stock alert job for the worker.
type AlertEnqueuer interface {
	EnqueueLowStockAlert(ctx context.Context, payload queue.LowStockAlertPayload) error
}

// ActivityRecorder appends a row to the stock activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, a *models.StockActivity) error
}

// Handler handles product HTTP endpoints. hub, alerts and activity are
// side channels: nil disables them and a failure on any of them never
// fails the request.
type Handler struct {
	store    Store
	orgStore orgs.Store
	s3       *storage.S3
	hub      Broadcaster
	alerts   AlertEnqueuer
	activity ActivityRecorder
	logger   *zap.Logger
}

// NewHandler creates a product handler.
func NewHandler(store Store, orgStore orgs.Store, s3 *storage.S3, hub Broadcaster, alerts AlertEnqueuer, activity ActivityRecorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, orgStore: orgStore, s3: s3, hub: hub, alerts: alerts, activity: activity, logger: logger}
}

// List handles GET /products.
func (h *Handler) List(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	list, err := h.store.List(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list products", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to list products")
		return
	}
	if list == nil {
		list = []models.Product{}
	}
	response.OK(c, list)
}

// GetByID handles GET /products/:id.
func (h *Handler) GetByID(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}
	p, err := h.store.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "product not found")
			return
		}
		h.logger.Error("get product", zap.Error(err), zap.String("product_id", id.String()))
		response.Internal(c, "failed to load product")
		return
	}
	response.OK(c, p)
}

// Create handles POST /products.
func (h *Handler) Create(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	userID := middleware.UserID(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	qty := 0
	if req.QuantityOnHand != nil {
		qty = *req.QuantityOnHand
	}
	p := &models.Product{
		OrganizationID:    orgID,
		Name:              req.Name,
		SKU:               req.SKU,
		QuantityOnHand:    qty,
		CostPrice:         req.CostPrice,
		SellingPrice:      req.SellingPrice,
		LowStockThreshold: req.LowStockThreshold,
		Description:       req.Description,
	}
	if err := h.store.Create(c.Request.Context(), p); err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			response.Conflict(c, "a product with this SKU already exists")
			return
		}
		h.logger.Error("create product", zap.Error(err), zap.String("sku", req.SKU))
		response.Internal(c, "failed to create product")
		return
	}

	h.broadcast("product_created", p.OrganizationID, p)
	h.recordActivity(c.Request.Context(), p, &userID, models.ActivityProductCreated, p.QuantityOnHand, &p.QuantityOnHand)
	h.maybeEnqueueAlert(c.Request.Context(), p)

	response.Created(c, p)
}

// Update handles PUT /products/:id.
func (h *Handler) Update(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	userID := middleware.UserID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	old, err := h.store.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "product not found")
			return
		}
		h.logger.Error("load product for update", zap.Error(err), zap.String("product_id", id.String()))
		response.Internal(c, "failed to update product")
		return
	}

	p, err := h.store.Update(c.Request.Context(), orgID, id, Update{
		Name:              req.Name,
		SKU:               req.SKU,
		QuantityOnHand:    req.QuantityOnHand,
		CostPrice:         req.CostPrice,
		SellingPrice:      req.SellingPrice,
		LowStockThreshold: req.LowStockThreshold,
		Description:       req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "product not found")
		case errors.Is(err, ErrDuplicateSKU):
			response.Conflict(c, "a product with this SKU already exists")
		default:
			h.logger.Error("update product", zap.Error(err), zap.String("product_id", id.String()))
			response.Internal(c, "failed to update product")
		}
		return
	}

	h.broadcast("product_updated", p.OrganizationID, p)
	h.recordActivity(c.Request.Context(), p, &userID, models.ActivityProductUpdated, p.QuantityOnHand-old.QuantityOnHand, &p.QuantityOnHand)
	h.maybeEnqueueAlert(c.Request.Context(), p)

	response.OK(c, p)
}

// Delete handles DELETE /products/:id.
func (h *Handler) Delete(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	userID := middleware.UserID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}

	p, err := h.store.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "product not found")
			return
		}
		h.logger.Error("load product for delete", zap.Error(err), zap.String("product_id", id.String()))
		response.Internal(c, "failed to delete product")
		return
	}

	if err := h.store.Delete(c.Request.Context(), orgID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "product not found")
			return
		}
		h.logger.Error("delete product", zap.Error(err), zap.String("product_id", id.String()))
		response.Internal(c, "failed to delete product")
		return
	}

	h.broadcast("product_deleted", orgID, gin.H{"id": p.ID, "sku": p.SKU})
	h.recordActivity(c.Request.Context(), p, &userID, models.ActivityProductDeleted, -p.QuantityOnHand, nil)

	response.NoContent(c)
}

func (h *Handler) broadcast(event string, orgID uuid.UUID, payload interface{}) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastToOrganizationAndPublish(orgID, event, payload)
}

func (h *Handler) recordActivity(ctx context.Context, p *models.Product, userID *uuid.UUID, action string, delta int, after *int) {
	if h.activity == nil {
		return
	}
	a := &models.StockActivity{
		OrganizationID: p.OrganizationID,
		ProductID:      p.ID,
		UserID:         userID,
		Action:         action,
		QuantityDelta:  delta,
		QuantityAfter:  after,
		Detail:         fmt.Sprintf("%s (%s)", p.Name, p.SKU),
	}
	if err := h.activity.Record(ctx, a); err != nil {
		h.logger.Warn("record stock activity", zap.Error(err), zap.String("product_id", p.ID.String()))
	}
}

// maybeEnqueueAlert queues a low-stock alert when the product sits at or
// below its effective threshold. The worker re-checks stock before sending.
func (h *Handler) maybeEnqueueAlert(ctx context.Context, p *models.Product) {
	if h.alerts == nil {
		return
	}
	threshold := h.effectiveThreshold(ctx, p)
	if p.QuantityOnHand > threshold {
		return
	}
	payload := queue.LowStockAlertPayload{
		ProductID:      p.ID,
		OrganizationID: p.OrganizationID,
		ProductName:    p.Name,
		SKU:            p.SKU,
		QuantityOnHand: p.QuantityOnHand,
		Threshold:      threshold,
	}
	if err := h.alerts.EnqueueLowStockAlert(ctx, payload); err != nil {
		h.logger.Warn("enqueue low stock alert", zap.Error(err), zap.String("product_id", p.ID.String()))
	}
}

func (h *Handler) effectiveThreshold(ctx context.Context, p *models.Product) int {
	def := models.DefaultLowStockThreshold
	if p.LowStockThreshold == nil && h.orgStore != nil {
		if org, err := h.orgStore.GetByID(ctx, p.OrganizationID); err == nil {
			def = org.DefaultLowStockThreshold
		}
	}
	return p.EffectiveThreshold(def)
}
