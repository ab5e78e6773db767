package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/streetsource/backend/internal/handlers"
	"github.com/streetsource/backend/internal/service"
)

type Deps struct {
	DB              *gorm.DB
	AuthHandler     *handlers.AuthHandler
	MaterialHandler *handlers.MaterialHandler
	OrderHandler    *handlers.OrderHandler
	ReviewHandler   *handlers.ReviewHandler
	SearchHandler   *handlers.SearchHandler
	TokenService    *service.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.Logout)

	// Public catalog surface.
	v1.GET("/materials", d.MaterialHandler.GetMaterials)
	v1.GET("/materials/:id", d.MaterialHandler.GetMaterial)
	v1.GET("/search", d.SearchHandler.Search)
	v1.GET("/suppliers/:id/reviews", d.ReviewHandler.ListSupplierReviews)

	// Catalog mutation is supplier-only.
	supplier := v1.Group("", d.TokenService.RequireSupplier)
	supplier.POST("/materials", d.MaterialHandler.CreateMaterial)
	supplier.PATCH("/materials/:id", d.MaterialHandler.PatchMaterial)
	supplier.DELETE("/materials/:id", d.MaterialHandler.DeleteMaterial)
	supplier.PATCH("/orders/:id/status", d.OrderHandler.UpdateOrderStatus)

	// Placement and reviews are vendor-only.
	vendor := v1.Group("", d.TokenService.RequireVendor)
	vendor.POST("/orders", d.OrderHandler.Checkout)
	vendor.POST("/reviews", d.ReviewHandler.AddReview)

	// Either party sees its own orders.
	orders := v1.Group("/orders", d.TokenService.AutoRefreshMiddleware)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
}
