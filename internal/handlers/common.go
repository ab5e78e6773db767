package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/streetsource/backend/internal/models"
	"github.com/streetsource/backend/internal/mykafka"
	"github.com/streetsource/backend/internal/service"
)

// currentUser reads the id and role placed on the context by the token
// middleware.
func currentUser(c echo.Context) (uint, models.Role, error) {
	id, ok := c.Get("userID").(uint)
	if !ok || id == 0 {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	role, ok := c.Get("role").(models.Role)
	if !ok || !role.Valid() {
		return 0, "", echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return id, role, nil
}

func serviceError(err error) *echo.HTTPError {
	return echo.NewHTTPError(service.HTTPStatus(err), err.Error())
}

// publish sends a domain event, bounded to 5s. Event delivery is best-effort:
// failures are logged, never surfaced to the caller.
func publish(c echo.Context, producer *mykafka.Producer, topic, key string, event map[string]interface{}) {
	if producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
