package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/streetsource/backend/internal/config"
	"github.com/streetsource/backend/internal/handlers"
	"github.com/streetsource/backend/internal/models"
	"github.com/streetsource/backend/internal/service"
	"github.com/streetsource/backend/internal/service/order"
	"github.com/streetsource/backend/internal/service/review"
	httpserver "github.com/streetsource/backend/internal/transport/http"
)

var testDBSeq int64

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:api%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	jwtSecret := []byte("test_jwt_secret")
	refreshSecret := []byte("test_refresh_secret")

	e := echo.New()
	deps := httpserver.Deps{
		DB: db,
		AuthHandler: &handlers.AuthHandler{
			DB:            db,
			JWTSecret:     jwtSecret,
			RefreshSecret: refreshSecret,
		},
		MaterialHandler: &handlers.MaterialHandler{DB: db},
		OrderHandler:    &handlers.OrderHandler{Svc: order.NewService(db)},
		ReviewHandler:   &handlers.ReviewHandler{Svc: review.NewService(db)},
		SearchHandler:   &handlers.SearchHandler{},
		TokenService:    &service.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
	}
	httpserver.Register(e, &deps)

	return &testEnv{T: t, E: e, DB: db}
}

func (env *testEnv) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	env.T.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

// signup registers and logs in a user, returning auth cookies.
func (env *testEnv) signup(role models.Role, phone string) []*http.Cookie {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/api/v1/register", map[string]interface{}{
		"phone":    phone,
		"password": "secret123",
		"role":     role,
		"name":     "test " + string(role),
		"address":  "gandhi market",
	})
	require.Equal(env.T, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/v1/login", map[string]string{
		"phone":    phone,
		"password": "secret123",
	})
	require.Equal(env.T, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(env.T, resp.AccessToken)

	return []*http.Cookie{
		{Name: "accessToken", Value: resp.AccessToken, Path: "/"},
		{Name: "refreshToken", Value: resp.RefreshToken, Path: "/"},
	}
}

func (env *testEnv) createMaterial(cookies []*http.Cookie, name string, price float64, stock int) models.Material {
	env.T.Helper()
	rec := env.do(http.MethodPost, "/api/v1/materials", map[string]interface{}{
		"name":           name,
		"category":       "vegetables",
		"price_per_unit": price,
		"unit":           "kg",
		"stock":          stock,
	}, cookies...)
	require.Equal(env.T, http.StatusCreated, rec.Code, rec.Body.String())

	var m models.Material
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/v1/register", map[string]interface{}{
		"phone":    "9111111111",
		"password": "secret123",
		"role":     "admin",
		"name":     "nope",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicatePhone(t *testing.T) {
	env := newTestEnv(t)
	env.signup(models.RoleVendor, "9111111111")
	rec := env.do(http.MethodPost, "/api/v1/register", map[string]interface{}{
		"phone":    "9111111111",
		"password": "another",
		"role":     "vendor",
		"name":     "dup",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestMaterialMutationIsSupplierOnly(t *testing.T) {
	env := newTestEnv(t)
	supplier := env.signup(models.RoleSupplier, "9222222222")
	vendor := env.signup(models.RoleVendor, "9333333333")

	m := env.createMaterial(supplier, "onions", 20, 10)

	// Vendors cannot touch the catalog.
	rec := env.do(http.MethodPost, "/api/v1/materials", map[string]interface{}{
		"name": "x", "category": "vegetables", "price_per_unit": 1, "unit": "kg", "stock": 1,
	}, vendor...)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Neither can a supplier who does not own the material.
	other := env.signup(models.RoleSupplier, "9444444444")
	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/v1/materials/%d", m.ID),
		map[string]interface{}{"stock": 99}, other...)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/v1/materials/%d", m.ID),
		map[string]interface{}{"stock": 50}, supplier...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.Material
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, 50, updated.Stock)
}

func TestMaterialValidation(t *testing.T) {
	env := newTestEnv(t)
	supplier := env.signup(models.RoleSupplier, "9222222222")

	cases := []map[string]interface{}{
		{"name": "x", "category": "plastic", "price_per_unit": 1, "unit": "kg", "stock": 1},
		{"name": "x", "category": "vegetables", "price_per_unit": 1, "unit": "barrel", "stock": 1},
		{"name": "x", "category": "vegetables", "price_per_unit": -1, "unit": "kg", "stock": 1},
		{"name": "x", "category": "vegetables", "price_per_unit": 1, "unit": "kg", "stock": -1},
		{"name": "x", "category": "vegetables", "price_per_unit": 1, "unit": "kg", "stock": 1, "delivery_radius_km": 500},
	}
	for _, body := range cases {
		rec := env.do(http.MethodPost, "/api/v1/materials", body, supplier...)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestCheckoutSplitsAndLifecycle(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.signup(models.RoleSupplier, "9222222222")
	s2 := env.signup(models.RoleSupplier, "9444444444")
	vendor := env.signup(models.RoleVendor, "9333333333")

	m1 := env.createMaterial(s1, "onions", 20, 10)
	m2 := env.createMaterial(s2, "milk", 30, 10)

	rec := env.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"material_id": m1.ID, "quantity": 2},
			{"material_id": m2.ID, "quantity": 1},
		},
		"delivery_address": "stall 12, gandhi market",
	}, vendor...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Orders []struct {
			SupplierID uint          `json:"supplier_id"`
			Order      *models.Order `json:"order"`
			Error      string        `json:"error"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 2)
	for _, g := range resp.Orders {
		require.Empty(t, g.Error)
		require.NotNil(t, g.Order)
		require.Equal(t, models.OrderPending, g.Order.Status)
	}

	first := resp.Orders[0].Order

	// The supplier confirms; the vendor is locked out of status changes.
	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", first.ID),
		map[string]interface{}{"status": "confirmed", "notes": "packing now"}, s1...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", first.ID),
		map[string]interface{}{"status": "out_for_delivery"}, vendor...)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// An unrelated supplier gets the collapsed not-found-or-unauthorized.
	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", first.ID),
		map[string]interface{}{"status": "out_for_delivery"}, s2...)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Illegal jump is a conflict.
	rec = env.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", first.ID),
		map[string]interface{}{"status": "pending"}, s1...)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Both parties can read the order; listing is scoped by role.
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", first.ID), nil, vendor...)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", first.ID), nil, s2...)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/orders", nil, vendor...)
	require.Equal(t, http.StatusOK, rec.Code)
	var vendorOrders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vendorOrders))
	require.Len(t, vendorOrders, 2)

	rec = env.do(http.MethodGet, "/api/v1/orders?status=confirmed", nil, s1...)
	require.Equal(t, http.StatusOK, rec.Code)
	var supplierOrders []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &supplierOrders))
	require.Len(t, supplierOrders, 1)
}

func TestCheckoutAllGroupsFailing(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.signup(models.RoleSupplier, "9222222222")
	vendor := env.signup(models.RoleVendor, "9333333333")

	m := env.createMaterial(s1, "onions", 20, 1)

	rec := env.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items":            []map[string]interface{}{{"material_id": m.ID, "quantity": 5}},
		"delivery_address": "stall 12",
	}, vendor...)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	supplier := env.signup(models.RoleSupplier, "9222222222")
	vendor := env.signup(models.RoleVendor, "9333333333")

	m := env.createMaterial(supplier, "onions", 20, 10)

	rec := env.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"items":            []map[string]interface{}{{"material_id": m.ID, "quantity": 2}},
		"delivery_address": "stall 12",
	}, vendor...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Orders []struct {
			Order *models.Order `json:"order"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	orderID := resp.Orders[0].Order.ID

	// Reviewing before delivery is a conflict.
	rec = env.do(http.MethodPost, "/api/v1/reviews",
		map[string]interface{}{"order_id": orderID, "rating": 5}, vendor...)
	require.Equal(t, http.StatusConflict, rec.Code)

	for _, status := range []string{"confirmed", "out_for_delivery", "delivered"} {
		rec = env.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", orderID),
			map[string]interface{}{"status": status}, supplier...)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// Suppliers cannot review.
	rec = env.do(http.MethodPost, "/api/v1/reviews",
		map[string]interface{}{"order_id": orderID, "rating": 5}, supplier...)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/reviews",
		map[string]interface{}{"order_id": orderID, "rating": 4, "comment": "fresh stock"}, vendor...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// One review per order.
	rec = env.do(http.MethodPost, "/api/v1/reviews",
		map[string]interface{}{"order_id": orderID, "rating": 5}, vendor...)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Public aggregate listing.
	var supplierUser models.User
	require.NoError(t, env.DB.Where("phone = ?", "9222222222").First(&supplierUser).Error)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/v1/suppliers/%d/reviews", supplierUser.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Reviews       []models.Review `json:"reviews"`
		AverageRating float64         `json:"average_rating"`
		TotalReviews  int64           `json:"total_reviews"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Reviews, 1)
	require.Equal(t, 4.0, out.AverageRating)
	require.Equal(t, int64(1), out.TotalReviews)

	require.NoError(t, env.DB.First(&supplierUser, supplierUser.ID).Error)
	require.Equal(t, 4.0, supplierUser.AverageRating)
	require.Equal(t, 1, supplierUser.TotalReviews)
}

func TestOrdersRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMaterialListingFilters(t *testing.T) {
	env := newTestEnv(t)
	supplier := env.signup(models.RoleSupplier, "9222222222")

	env.createMaterial(supplier, "onions", 20, 10)
	m := env.createMaterial(supplier, "potatoes", 15, 0)

	// Zero stock at creation means not available by default.
	rec := env.do(http.MethodGet, "/api/v1/materials?available=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Data []models.Material `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Data, 1)
	require.Equal(t, "onions", listing.Data[0].Name)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/v1/materials/%d", m.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/materials?category=plastic", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
