// Package alerts delivers low-stock alerts enqueued by product mutations.
// The worker re-checks current stock before notifying, so an alert for a
// product that has been restocked or deleted in the meantime is dropped.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/activity"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/internal/orgs"
	"github.com/stocktally/backend/internal/products"
	"github.com/stocktally/backend/pkg/queue"
)

// Publisher pushes the confirmed low_stock event into the organization's
// live feed room via Redis, since the worker has no in-process hub.
type Publisher interface {
	PublishOrganizationEvent(orgID uuid.UUID, event string, payload []byte) error
}

// Processor consumes low-stock alert jobs: re-check stock, deliver the
// webhook, record the delivery in the activity log, publish the live feed
// event.
type Processor struct {
	products  products.Store
	orgs      orgs.Store
	activity  activity.Store
	queue     *queue.Queue
	notifier  *Notifier
	publisher Publisher
	logger    *zap.Logger
}

// NewProcessor creates an alert processor. publisher may be nil, which
// skips the live feed event.
func NewProcessor(productStore products.Store, orgStore orgs.Store, activityStore activity.Store, q *queue.Queue, notifier *Notifier, publisher Publisher, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		products:  productStore,
		orgs:      orgStore,
		activity:  activityStore,
		queue:     q,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

// Process executes one low-stock alert job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeLowStockAlert {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.LowStockAlertPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	// Re-check against current state: the product may have been restocked
	// or deleted since the job was enqueued.
	product, err := p.products.GetByID(ctx, payload.OrganizationID, payload.ProductID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			p.logger.Info("product gone, dropping alert",
				zap.String("product_id", payload.ProductID.String()))
			return nil
		}
		return fmt.Errorf("load product: %w", err)
	}

	threshold := payload.Threshold
	if org, err := p.orgs.GetByID(ctx, payload.OrganizationID); err == nil {
		threshold = product.EffectiveThreshold(org.DefaultLowStockThreshold)
	}
	if product.QuantityOnHand > threshold {
		p.logger.Info("stock recovered, dropping alert",
			zap.String("product_id", product.ID.String()),
			zap.Int("quantity_on_hand", product.QuantityOnHand),
			zap.Int("threshold", threshold))
		return nil
	}

	note := Notification{
		Event:          "low_stock",
		ProductID:      product.ID,
		OrganizationID: product.OrganizationID,
		ProductName:    product.Name,
		SKU:            product.SKU,
		QuantityOnHand: product.QuantityOnHand,
		Threshold:      threshold,
		SentAt:         time.Now().UTC(),
	}
	if err := p.notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	qty := product.QuantityOnHand
	entry := &models.StockActivity{
		OrganizationID: product.OrganizationID,
		ProductID:      product.ID,
		Action:         models.ActivityAlertSent,
		QuantityDelta:  0,
		QuantityAfter:  &qty,
		Detail:         fmt.Sprintf("low stock alert: %s (%s) at %d (threshold %d)", product.Name, product.SKU, qty, threshold),
	}
	if err := p.activity.Record(ctx, entry); err != nil {
		p.logger.Warn("record alert activity", zap.Error(err),
			zap.String("product_id", product.ID.String()))
	}

	if p.publisher != nil {
		if data, err := json.Marshal(note); err == nil {
			if err := p.publisher.PublishOrganizationEvent(product.OrganizationID, "low_stock", data); err != nil {
				p.logger.Warn("publish low_stock event", zap.Error(err))
			}
		}
	}

	p.logger.Info("low-stock alert delivered",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
		zap.Int("quantity_on_hand", qty),
		zap.Int("threshold", threshold))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns
// when ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("alert worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("alert worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
