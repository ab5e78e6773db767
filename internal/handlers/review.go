package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/streetsource/backend/internal/mykafka"
	"github.com/streetsource/backend/internal/service/review"
)

type ReviewHandler struct {
	Svc      *review.Service
	Producer *mykafka.Producer
}

type addReviewRequest struct {
	OrderID        uint   `json:"order_id"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment"`
	QualityRating  *int   `json:"quality_rating"`
	DeliveryRating *int   `json:"delivery_rating"`
	ServiceRating  *int   `json:"service_rating"`
}

func (h *ReviewHandler) AddReview(c echo.Context) error {
	vendorID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	var req addReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	r, err := h.Svc.AddReview(c.Request().Context(), vendorID, review.AddReviewInput{
		OrderID:        req.OrderID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		QualityRating:  req.QualityRating,
		DeliveryRating: req.DeliveryRating,
		ServiceRating:  req.ServiceRating,
	})
	if err != nil {
		return serviceError(err)
	}

	publish(c, h.Producer, "review_events", fmt.Sprint(r.SupplierID), map[string]interface{}{
		"type":       "review_added",
		"reviewID":   r.ID,
		"orderID":    r.OrderID,
		"supplierID": r.SupplierID,
		"rating":     r.Rating,
	})

	return c.JSON(http.StatusCreated, r)
}

func (h *ReviewHandler) ListSupplierReviews(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	out, err := h.Svc.ListBySupplier(c.Request().Context(), uint(id))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, out)
}
