package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/streetsource/backend/internal/logging"
	"github.com/streetsource/backend/internal/models"
	"github.com/streetsource/backend/internal/mykafka"
	"github.com/streetsource/backend/internal/service/order"
)

type OrderHandler struct {
	Svc      *order.Service
	Producer *mykafka.Producer
}

type checkoutRequest struct {
	Items           []order.CartLine `json:"items"`
	DeliveryAddress string           `json:"delivery_address"`
}

type checkoutGroup struct {
	SupplierID uint          `json:"supplier_id,omitempty"`
	Order      *models.Order `json:"order,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Checkout places a cart that may span multiple suppliers. The cart is split
// into one order per supplier; groups succeed or fail independently and every
// group's outcome is reported.
func (h *OrderHandler) Checkout(c echo.Context) error {
	vendorID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	results, err := h.Svc.PlaceCart(ctx, vendorID, req.Items, req.DeliveryAddress)
	if err != nil {
		l.Warn("checkout_error", "error", err)
		return serviceError(err)
	}

	groups := make([]checkoutGroup, 0, len(results))
	anyPlaced := false
	for _, r := range results {
		g := checkoutGroup{SupplierID: r.SupplierID, Order: r.Order}
		if r.Err != nil {
			g.Error = r.Err.Error()
		}
		if r.Order != nil {
			anyPlaced = true
			publish(c, h.Producer, "order_events", fmt.Sprint(vendorID), map[string]interface{}{
				"type":       "order_placed",
				"orderID":    r.Order.ID,
				"vendorID":   vendorID,
				"supplierID": r.Order.SupplierID,
				"total":      r.Order.Total,
			})
		}
		groups = append(groups, g)
	}

	if !anyPlaced {
		// Every group failed; surface the first failure's status.
		for _, r := range results {
			if r.Err != nil {
				return serviceError(r.Err)
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, "no orders placed")
	}

	l.Info("checkout_success", "groups", len(groups))
	return c.JSON(http.StatusCreated, map[string]interface{}{"orders": groups})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, role, err := currentUser(c)
	if err != nil {
		return err
	}

	status := models.OrderStatus(c.QueryParam("status"))
	orders, err := h.Svc.ListOrders(c.Request().Context(), userID, role, status)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := h.Svc.GetOrder(c.Request().Context(), uint(id), userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, o)
}

type transitionRequest struct {
	Status              models.OrderStatus `json:"status"`
	Notes               string             `json:"notes"`
	EstimatedDeliveryAt *time.Time         `json:"estimated_delivery_at"`
}

// UpdateOrderStatus drives an order through its lifecycle. Supplier-gated by
// the route; ownership is re-checked against the order itself.
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	supplierID, _, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	o, err := h.Svc.Transition(c.Request().Context(), uint(id), supplierID, req.Status, order.TransitionInput{
		Notes: req.Notes,
		ETA:   req.EstimatedDeliveryAt,
	})
	if err != nil {
		return serviceError(err)
	}

	publish(c, h.Producer, "order_events", fmt.Sprint(supplierID), map[string]interface{}{
		"type":       "order_status_changed",
		"orderID":    o.ID,
		"supplierID": supplierID,
		"status":     o.Status,
	})

	return c.JSON(http.StatusOK, o)
}
