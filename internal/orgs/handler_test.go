package orgs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/auth"
	"github.com/stocktally/backend/internal/memstore"
	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/internal/orgs"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newSettingsRouter(t *testing.T) (*gin.Engine, *memstore.Store, *auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	tokens := auth.NewTokenService("test-secret")
	handler := orgs.NewHandler(store.Orgs, zap.NewNop())

	router := gin.New()
	api := router.Group("")
	api.Use(middleware.TenantAuth(tokens))
	api.GET("/settings", handler.GetSettings)
	api.PUT("/settings", handler.UpdateSettings)
	return router, store, tokens
}

func settingsAccount(t *testing.T, store *memstore.Store, tokens *auth.TokenService, email, orgName string) (uuid.UUID, string) {
	t.Helper()
	user, org, err := store.Auth.CreateAccount(context.Background(), email, "hash", orgName)
	require.NoError(t, err)
	token, err := tokens.Issue(user.ID, org.ID)
	require.NoError(t, err)
	return org.ID, token
}

func doSettings(t *testing.T, router *gin.Engine, method, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, "/settings", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestGetSettings(t *testing.T) {
	router, store, tokens := newSettingsRouter(t)
	_, token := settingsAccount(t, store, tokens, "a@x.com", "Acme")

	w, resp := doSettings(t, router, http.MethodGet, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var org models.Organization
	require.NoError(t, json.Unmarshal(resp.Data, &org))
	require.Equal(t, "Acme", org.Name)
	require.Equal(t, models.DefaultLowStockThreshold, org.DefaultLowStockThreshold)
}

func TestUpdateSettings(t *testing.T) {
	router, store, tokens := newSettingsRouter(t)
	orgID, token := settingsAccount(t, store, tokens, "a@x.com", "Acme")

	t.Run("sets new threshold", func(t *testing.T) {
		w, resp := doSettings(t, router, http.MethodPut, token, gin.H{"default_low_stock_threshold": 12})
		require.Equal(t, http.StatusOK, w.Code)

		var org models.Organization
		require.NoError(t, json.Unmarshal(resp.Data, &org))
		require.Equal(t, 12, org.DefaultLowStockThreshold)

		stored, err := store.Orgs.GetByID(context.Background(), orgID)
		require.NoError(t, err)
		require.Equal(t, 12, stored.DefaultLowStockThreshold)
	})

	t.Run("explicit zero is accepted", func(t *testing.T) {
		w, resp := doSettings(t, router, http.MethodPut, token, gin.H{"default_low_stock_threshold": 0})
		require.Equal(t, http.StatusOK, w.Code)

		var org models.Organization
		require.NoError(t, json.Unmarshal(resp.Data, &org))
		require.Equal(t, 0, org.DefaultLowStockThreshold)
	})

	t.Run("missing threshold rejected", func(t *testing.T) {
		w, _ := doSettings(t, router, http.MethodPut, token, gin.H{})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative threshold rejected", func(t *testing.T) {
		w, _ := doSettings(t, router, http.MethodPut, token, gin.H{"default_low_stock_threshold": -1})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("only the caller's organization changes", func(t *testing.T) {
		otherOrgID, _ := settingsAccount(t, store, tokens, "b@y.com", "Beta")
		w, _ := doSettings(t, router, http.MethodPut, token, gin.H{"default_low_stock_threshold": 9})
		require.Equal(t, http.StatusOK, w.Code)

		other, err := store.Orgs.GetByID(context.Background(), otherOrgID)
		require.NoError(t, err)
		require.Equal(t, models.DefaultLowStockThreshold, other.DefaultLowStockThreshold)
	})
}
