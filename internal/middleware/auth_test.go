package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stocktally/backend/internal/auth"
	"github.com/stocktally/backend/internal/middleware"
)

const guardSecret = "guard-test-secret"

func newGuardedRouter(t *testing.T) (*gin.Engine, *auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenService(guardSecret)
	router := gin.New()
	api := router.Group("")
	api.Use(middleware.TenantAuth(tokens))
	api.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":         middleware.UserID(c).String(),
			"organization_id": middleware.OrganizationID(c).String(),
		})
	})
	return router, tokens
}

func getWhoami(t *testing.T, router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTenantAuthAllowsValidToken(t *testing.T) {
	router, tokens := newGuardedRouter(t)

	userID := uuid.New()
	orgID := uuid.New()
	token, err := tokens.Issue(userID, orgID)
	require.NoError(t, err)

	w := getWhoami(t, router, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), userID.String())
	require.Contains(t, w.Body.String(), orgID.String())
}

func TestTenantAuthRejectsMissingCredentials(t *testing.T) {
	router, tokens := newGuardedRouter(t)

	token, err := tokens.Issue(uuid.New(), uuid.New())
	require.NoError(t, err)

	// 401: no usable credentials were supplied at all.
	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Token " + token},
		{"empty bearer", "Bearer "},
		{"scheme only", "Bearer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := getWhoami(t, router, tc.header)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestTenantAuthRejectsInvalidToken(t *testing.T) {
	router, _ := newGuardedRouter(t)

	// 403: credentials were presented but do not verify.
	t.Run("garbage token", func(t *testing.T) {
		w := getWhoami(t, router, "Bearer not-a-real-token")
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := auth.NewTokenService("some-other-secret")
		token, err := other.Issue(uuid.New(), uuid.New())
		require.NoError(t, err)

		w := getWhoami(t, router, "Bearer "+token)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := auth.Claims{
			UserID:         uuid.New(),
			OrganizationID: uuid.New(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
			},
		}
		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(guardSecret))
		require.NoError(t, err)

		w := getWhoami(t, router, "Bearer "+expired)
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}
