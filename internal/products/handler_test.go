package products_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/auth"
	"github.com/stocktally/backend/internal/memstore"
	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/internal/products"
	"github.com/stocktally/backend/pkg/queue"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type fakeAlertEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.LowStockAlertPayload
}

func (f *fakeAlertEnqueuer) EnqueueLowStockAlert(_ context.Context, payload queue.LowStockAlertPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeAlertEnqueuer) all() []queue.LowStockAlertPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.LowStockAlertPayload(nil), f.payloads...)
}

type broadcastEvent struct {
	orgID uuid.UUID
	event string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (f *fakeBroadcaster) BroadcastToOrganizationAndPublish(orgID uuid.UUID, event string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, broadcastEvent{orgID: orgID, event: event})
}

func (f *fakeBroadcaster) all() []broadcastEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broadcastEvent(nil), f.events...)
}

type testEnv struct {
	router *gin.Engine
	store  *memstore.Store
	tokens *auth.TokenService
	alerts *fakeAlertEnqueuer
	feed   *fakeBroadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	tokens := auth.NewTokenService("test-secret")
	alerts := &fakeAlertEnqueuer{}
	feed := &fakeBroadcaster{}
	handler := products.NewHandler(store.Products, store.Orgs, nil, feed, alerts, store.Activity, zap.NewNop())

	router := gin.New()
	api := router.Group("")
	api.Use(middleware.TenantAuth(tokens))
	api.GET("/products", handler.List)
	api.POST("/products", handler.Create)
	api.GET("/products/export", handler.Export)
	api.GET("/products/:id", handler.GetByID)
	api.PUT("/products/:id", handler.Update)
	api.DELETE("/products/:id", handler.Delete)

	return &testEnv{router: router, store: store, tokens: tokens, alerts: alerts, feed: feed}
}

// account creates an organization with one user and returns a session
// token scoped to it.
func (e *testEnv) account(t *testing.T, email, orgName string) (uuid.UUID, string) {
	t.Helper()
	user, org, err := e.store.Auth.CreateAccount(context.Background(), email, "irrelevant-hash", orgName)
	require.NoError(t, err)
	token, err := e.tokens.Issue(user.ID, org.ID)
	require.NoError(t, err)
	return org.ID, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (e *testEnv) createProduct(t *testing.T, token string, body gin.H) models.Product {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/products", token, body)
	require.Equal(t, http.StatusCreated, w.Code, "create product: %s", w.Body.String())
	var p models.Product
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	return p
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	orgID, token := env.account(t, "a@x.com", "Acme")

	p := env.createProduct(t, token, gin.H{
		"name":             "Widget",
		"sku":              "W1",
		"quantity_on_hand": 7,
		"cost_price":       1.5,
		"selling_price":    4.0,
		"description":      "a widget",
	})
	require.NotEqual(t, uuid.Nil, p.ID)
	require.Equal(t, orgID, p.OrganizationID)
	require.Equal(t, "Widget", p.Name)
	require.Equal(t, "W1", p.SKU)
	require.Equal(t, 7, p.QuantityOnHand)
	require.NotNil(t, p.CostPrice)
	require.InDelta(t, 1.5, *p.CostPrice, 0.001)
	require.Nil(t, p.LowStockThreshold)

	t.Run("quantity defaults to zero", func(t *testing.T) {
		p := env.createProduct(t, token, gin.H{"name": "Gadget", "sku": "G1"})
		require.Equal(t, 0, p.QuantityOnHand)
	})

	t.Run("records activity", func(t *testing.T) {
		entries, err := env.store.Activity.ListByOrganization(context.Background(), orgID, 50)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		require.Equal(t, models.ActivityProductCreated, entries[0].Action)
	})
}

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.account(t, "a@x.com", "Acme")

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing name", gin.H{"sku": "W1"}},
		{"missing sku", gin.H{"name": "Widget"}},
		{"negative quantity", gin.H{"name": "Widget", "sku": "W1", "quantity_on_hand": -1}},
		{"negative threshold", gin.H{"name": "Widget", "sku": "W1", "low_stock_threshold": -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := env.do(t, http.MethodPost, "/products", token, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	env := newTestEnv(t)
	_, tokenA := env.account(t, "a@x.com", "Acme")
	_, tokenB := env.account(t, "b@y.com", "Beta")

	env.createProduct(t, tokenA, gin.H{"name": "Widget", "sku": "W1"})

	w, resp := env.do(t, http.MethodPost, "/products", tokenA, gin.H{"name": "Widget Two", "sku": "W1"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.False(t, resp.Success)

	// SKU uniqueness is per organization, not global.
	w, _ = env.do(t, http.MethodPost, "/products", tokenB, gin.H{"name": "Other Widget", "sku": "W1"})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestListProductsScopedToOrganization(t *testing.T) {
	env := newTestEnv(t)
	_, tokenA := env.account(t, "a@x.com", "Acme")
	_, tokenB := env.account(t, "b@y.com", "Beta")

	env.createProduct(t, tokenA, gin.H{"name": "First", "sku": "A1"})
	env.createProduct(t, tokenA, gin.H{"name": "Second", "sku": "A2"})
	env.createProduct(t, tokenB, gin.H{"name": "Other", "sku": "B1"})

	w, resp := env.do(t, http.MethodGet, "/products", tokenA, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []models.Product
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 2)
	// Newest first.
	require.Equal(t, "Second", list[0].Name)
	require.Equal(t, "First", list[1].Name)

	w, resp = env.do(t, http.MethodGet, "/products", tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "Other", list[0].Name)
}

func TestCrossTenantAccessBehavesAsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, tokenA := env.account(t, "a@x.com", "Acme")
	_, tokenB := env.account(t, "b@y.com", "Beta")

	p := env.createProduct(t, tokenA, gin.H{"name": "Secret Widget", "sku": "S1", "quantity_on_hand": 9})

	// A response for another tenant's product must be byte-identical to the
	// response for a product that does not exist at all.
	missing := uuid.New().String()

	t.Run("read", func(t *testing.T) {
		crossTenant, _ := env.do(t, http.MethodGet, "/products/"+p.ID.String(), tokenB, nil)
		nonexistent, _ := env.do(t, http.MethodGet, "/products/"+missing, tokenB, nil)
		require.Equal(t, http.StatusNotFound, crossTenant.Code)
		require.Equal(t, nonexistent.Code, crossTenant.Code)
		require.Equal(t, nonexistent.Body.String(), crossTenant.Body.String())
	})

	t.Run("update", func(t *testing.T) {
		crossTenant, _ := env.do(t, http.MethodPut, "/products/"+p.ID.String(), tokenB, gin.H{"name": "Hijacked"})
		nonexistent, _ := env.do(t, http.MethodPut, "/products/"+missing, tokenB, gin.H{"name": "Hijacked"})
		require.Equal(t, http.StatusNotFound, crossTenant.Code)
		require.Equal(t, nonexistent.Body.String(), crossTenant.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		crossTenant, _ := env.do(t, http.MethodDelete, "/products/"+p.ID.String(), tokenB, nil)
		nonexistent, _ := env.do(t, http.MethodDelete, "/products/"+missing, tokenB, nil)
		require.Equal(t, http.StatusNotFound, crossTenant.Code)
		require.Equal(t, nonexistent.Body.String(), crossTenant.Body.String())
	})

	t.Run("owner still sees the product untouched", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/products/"+p.ID.String(), tokenA, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got models.Product
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		require.Equal(t, "Secret Widget", got.Name)
		require.Equal(t, 9, got.QuantityOnHand)
	})
}

func TestUpdateProduct(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.account(t, "a@x.com", "Acme")

	p := env.createProduct(t, token, gin.H{
		"name":             "Widget",
		"sku":              "W1",
		"quantity_on_hand": 10,
		"description":      "original",
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPut, "/products/"+p.ID.String(), token, gin.H{"quantity_on_hand": 4})
		require.Equal(t, http.StatusOK, w.Code)
		var got models.Product
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		require.Equal(t, 4, got.QuantityOnHand)
		require.Equal(t, "Widget", got.Name)
		require.Equal(t, "W1", got.SKU)
		require.Equal(t, "original", got.Description)
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPut, "/products/"+p.ID.String(), token, gin.H{"quantity_on_hand": -3})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("sku collision within the organization", func(t *testing.T) {
		env.createProduct(t, token, gin.H{"name": "Gadget", "sku": "G1"})
		w, _ := env.do(t, http.MethodPut, "/products/"+p.ID.String(), token, gin.H{"sku": "G1"})
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPut, "/products/"+uuid.New().String(), token, gin.H{"name": "X"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPut, "/products/not-a-uuid", token, gin.H{"name": "X"})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	orgID, token := env.account(t, "a@x.com", "Acme")

	p := env.createProduct(t, token, gin.H{"name": "Widget", "sku": "W1", "quantity_on_hand": 3})

	w, _ := env.do(t, http.MethodDelete, "/products/"+p.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, _ = env.do(t, http.MethodGet, "/products/"+p.ID.String(), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodDelete, "/products/"+p.ID.String(), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	entries, err := env.store.Activity.ListByOrganization(context.Background(), orgID, 50)
	require.NoError(t, err)
	require.Equal(t, models.ActivityProductDeleted, entries[0].Action)
	require.Equal(t, -3, entries[0].QuantityDelta)
	require.Nil(t, entries[0].QuantityAfter)
}

func TestLowStockAlertEnqueued(t *testing.T) {
	env := newTestEnv(t)
	orgID, token := env.account(t, "a@x.com", "Acme") // org default threshold 5

	t.Run("create at or below default threshold", func(t *testing.T) {
		p := env.createProduct(t, token, gin.H{"name": "Widget", "sku": "W1", "quantity_on_hand": 3})
		payloads := env.alerts.all()
		require.Len(t, payloads, 1)
		require.Equal(t, p.ID, payloads[0].ProductID)
		require.Equal(t, orgID, payloads[0].OrganizationID)
		require.Equal(t, 3, payloads[0].QuantityOnHand)
		require.Equal(t, 5, payloads[0].Threshold)
	})

	t.Run("create above threshold does not enqueue", func(t *testing.T) {
		before := len(env.alerts.all())
		env.createProduct(t, token, gin.H{"name": "Gadget", "sku": "G1", "quantity_on_hand": 50})
		require.Len(t, env.alerts.all(), before)
	})

	t.Run("custom threshold takes precedence", func(t *testing.T) {
		before := len(env.alerts.all())
		// Quantity 2 with own threshold 1: above threshold, no alert even
		// though the org default of 5 would have flagged it.
		env.createProduct(t, token, gin.H{"name": "Bolt", "sku": "B1", "quantity_on_hand": 2, "low_stock_threshold": 1})
		require.Len(t, env.alerts.all(), before)
	})

	t.Run("update dropping stock enqueues", func(t *testing.T) {
		p := env.createProduct(t, token, gin.H{"name": "Nut", "sku": "N1", "quantity_on_hand": 40})
		before := len(env.alerts.all())
		w, _ := env.do(t, http.MethodPut, "/products/"+p.ID.String(), token, gin.H{"quantity_on_hand": 2})
		require.Equal(t, http.StatusOK, w.Code)
		payloads := env.alerts.all()
		require.Len(t, payloads, before+1)
		require.Equal(t, p.ID, payloads[len(payloads)-1].ProductID)
	})
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, tokenA := env.account(t, "a@x.com", "Acme")
	_, tokenB := env.account(t, "b@y.com", "Beta")

	env.createProduct(t, tokenA, gin.H{"name": "Widget", "sku": "W1", "quantity_on_hand": 7})
	env.createProduct(t, tokenA, gin.H{"name": "Gadget", "sku": "G1"})
	env.createProduct(t, tokenB, gin.H{"name": "Other", "sku": "B1"})

	req := httptest.NewRequest(http.MethodGet, "/products/export", nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	require.Contains(t, w.Header().Get("Content-Disposition"), "products.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	// Header plus this organization's two products only.
	require.Len(t, rows, 3)
	require.Equal(t, "Gadget", rows[1][0])
	require.Equal(t, "Widget", rows[2][0])
}

func TestFeedEvents(t *testing.T) {
	env := newTestEnv(t)
	orgID, token := env.account(t, "a@x.com", "Acme")

	p := env.createProduct(t, token, gin.H{"name": "Widget", "sku": "W1", "quantity_on_hand": 50})

	w, _ := env.do(t, http.MethodPut, "/products/"+p.ID.String(), token, gin.H{"name": "Widget Mk2"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodDelete, "/products/"+p.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	events := env.feed.all()
	require.Len(t, events, 3)
	require.Equal(t, "product_created", events[0].event)
	require.Equal(t, "product_updated", events[1].event)
	require.Equal(t, "product_deleted", events[2].event)
	for _, ev := range events {
		require.Equal(t, orgID, ev.orgID)
	}
}
