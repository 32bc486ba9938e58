package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification is the JSON body posted to the alert webhook.
type Notification struct {
	Event          string    `json:"event"`
	ProductID      uuid.UUID `json:"product_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ProductName    string    `json:"product_name"`
	SKU            string    `json:"sku"`
	QuantityOnHand int       `json:"quantity_on_hand"`
	Threshold      int       `json:"threshold"`
	SentAt         time.Time `json:"sent_at"`
}

// Notifier posts low-stock notifications to a configured webhook URL.
type Notifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// NewNotifier creates a webhook notifier. An empty url disables delivery;
// Notify becomes a no-op so the worker can run without a webhook
// configured.
func NewNotifier(url string, timeout time.Duration, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Notifier{client: client, url: url, logger: logger}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool { return n.url != "" }

// Notify posts the notification. A non-2xx response is an error so the
// worker retries the job.
func (n *Notifier) Notify(ctx context.Context, note Notification) error {
	if !n.Enabled() {
		return nil
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(note).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook status: %d", resp.StatusCode())
	}
	n.logger.Debug("low-stock webhook delivered",
		zap.String("product_id", note.ProductID.String()),
		zap.Int("status", resp.StatusCode()))
	return nil
}
