package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/vintage-store-backend/config"
	"github.com/ikkim/vintage-store-backend/internal/app/controller"
	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/internal/app/repository"
	"github.com/ikkim/vintage-store-backend/internal/app/service"
	"github.com/ikkim/vintage-store-backend/internal/db"
	"github.com/ikkim/vintage-store-backend/internal/middleware"
	"github.com/ikkim/vintage-store-backend/internal/scheduler"
	"github.com/ikkim/vintage-store-backend/pkg/metrics"
	"github.com/ikkim/vintage-store-backend/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret = "router-test-secret"
	adminSubject  = "auth0|seller"
)

type testApp struct {
	engine      *gin.Engine
	productRepo repository.ProductRepository
}

func setupRouterTest(t *testing.T) *testApp {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}

	reg := prometheus.NewRegistry()
	productRepo := repository.NewProductRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	cartService := service.NewCartService(cartRepo, productRepo)
	authService := service.NewAuthService(repository.NewUserRepository(testDB), testJWTSecret, []string{adminSubject})
	reservationService := service.NewReservationService(
		productRepo,
		repository.NewReleaseJobRepository(testDB),
		cartService,
		service.NewLogNotifier(),
		service.NewExpiryPolicy(30*time.Minute, time.UTC),
		metrics.NewReservationMetrics(reg),
		service.ReservationOptions{AutoRelease: true},
	)
	sweeper := scheduler.NewReservationScheduler(reservationService, scheduler.Options{Metrics: metrics.NewJobMetrics(reg)})

	r := NewRouter(
		controller.NewAuthController(authService),
		controller.NewCartController(cartService),
		controller.NewReservationController(reservationService, sweeper),
		middleware.NewAuthMiddleware(authService),
		reg,
		cfg,
	)
	return &testApp{engine: r.Setup(), productRepo: productRepo}
}

func (a *testApp) product(t *testing.T, name string) *model.Product {
	t.Helper()
	p := &model.Product{Name: name, Price: decimal.NewFromInt(18500), Stock: 1, State: model.StateAvailable}
	require.NoError(t, a.productRepo.Create(p))
	return p
}

func (a *testApp) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, subject string) map[string]string {
	token, err := util.GenerateIdentityToken(subject, "", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := setupRouterTest(t)

	w := app.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	app := setupRouterTest(t)

	w := app.do(http.MethodOptions, "/api/v1/cart", nil, map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.SessionHeader)
}

func TestRouter_GuestReservationFlow(t *testing.T) {
	app := setupRouterTest(t)
	p := app.product(t, "Campera")
	ana := map[string]string{middleware.SessionHeader: "sess-ana"}
	bruno := map[string]string{middleware.SessionHeader: "sess-bruno"}

	w := app.do(http.MethodPost, "/api/v1/cart", gin.H{"product_id": p.ID, "quantity": 1}, bruno)
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(http.MethodPost, "/api/v1/reservations", gin.H{"product_ids": []uint{p.ID}, "buyer_info": "Ana 1155"}, ana)
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(http.MethodPost, "/api/v1/cart", gin.H{"product_id": p.ID, "quantity": 1}, map[string]string{middleware.SessionHeader: "sess-carla"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodGet, fmt.Sprintf("/api/v1/reservations/products/%d", p.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"reservado"`)

	// seller confirms
	w = app.do(http.MethodPost, "/api/v1/reservations/confirm", gin.H{"product_id": p.ID}, bearer(t, adminSubject))
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/v1/cart", nil, bruno)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestRouter_AdminRoutesRequireAdmin(t *testing.T) {
	app := setupRouterTest(t)
	p := app.product(t, "Campera")

	w := app.do(http.MethodPost, "/api/v1/reservations/mark-sold", gin.H{"product_id": p.ID}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPost, "/api/v1/reservations/mark-sold", gin.H{"product_id": p.ID}, bearer(t, "auth0|buyer"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/reservations", nil, bearer(t, adminSubject))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SweepIsPublic(t *testing.T) {
	app := setupRouterTest(t)

	w := app.do(http.MethodGet, "/api/v1/reservations/sweep-expired", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"freed_count":0,"freed":[]}`, w.Body.String())
}

func TestRouter_CartMigrationRequiresUser(t *testing.T) {
	app := setupRouterTest(t)
	p := app.product(t, "Campera")
	session := map[string]string{middleware.SessionHeader: "sess-ana"}

	w := app.do(http.MethodPost, "/api/v1/cart", gin.H{"product_id": p.ID, "quantity": 1}, session)
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(http.MethodPost, "/api/v1/cart/migrate", nil, session)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	headers := bearer(t, "auth0|ana")
	headers[middleware.SessionHeader] = "sess-ana"
	w = app.do(http.MethodPost, "/api/v1/cart/migrate", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"migrated":1,"dropped":0}`, w.Body.String())

	// the signed-in cart now holds the item
	w = app.do(http.MethodGet, "/api/v1/cart", nil, bearer(t, "auth0|ana"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}
