package controller

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/internal/app/service"
	"github.com/ikkim/vintage-store-backend/internal/db"
	"github.com/ikkim/vintage-store-backend/internal/middleware"
	"github.com/ikkim/vintage-store-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func setupAuthControllerTest(t *testing.T) *gin.Engine {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	gin.SetMode(gin.TestMode)

	authService := service.NewAuthService(repository.NewUserRepository(testDB), testJWTSecret, []string{"auth0|seller"})
	authMiddleware := middleware.NewAuthMiddleware(authService)
	authController := NewAuthController(authService)

	router := gin.New()
	router.GET("/auth/me", authMiddleware.Authenticate(), authController.GetMe)
	return router
}

func TestAuthController_GetMe_Success(t *testing.T) {
	router := setupAuthControllerTest(t)
	token, err := util.GenerateIdentityToken("auth0|seller", "seller@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)

	w := doJSON(router, http.MethodGet, "/auth/me", nil, "Authorization", "Bearer "+token)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"external_id":"auth0|seller"`)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestAuthController_GetMe_Unauthorized(t *testing.T) {
	router := setupAuthControllerTest(t)

	w := doJSON(router, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
