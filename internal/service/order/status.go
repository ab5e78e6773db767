package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/streetsource/backend/internal/models"
	"github.com/streetsource/backend/internal/service"
)

// transitions is the full lifecycle table. delivered and cancelled are
// terminal: they map to no successor states.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:        {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed:      {models.OrderOutForDelivery, models.OrderCancelled},
	models.OrderOutForDelivery: {models.OrderDelivered},
	models.OrderDelivered:      {},
	models.OrderCancelled:      {},
}

func transitionAllowed(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validStatus(s models.OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}

type TransitionInput struct {
	Notes string
	ETA   *time.Time
}

// Transition moves an order to newStatus on behalf of its owning supplier.
// The write is a compare-and-swap against the status read in the same
// transaction, so two racing transitions cannot both succeed from a stale
// current status. Cancellation returns the decremented stock to the catalog.
func (s *Service) Transition(ctx context.Context, orderID, actorID uint, newStatus models.OrderStatus, in TransitionInput) (*models.Order, error) {
	if !validStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", service.ErrValidation, newStatus)
	}

	var updated *models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.Preload("Items").Where("id = ? AND supplier_id = ?", orderID, actorID).First(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order not found or unauthorized", service.ErrNotFound)
			}
			return err
		}

		if !transitionAllowed(o.Status, newStatus) {
			return fmt.Errorf("%w: illegal transition from %s to %s", service.ErrConflict, o.Status, newStatus)
		}

		updates := map[string]interface{}{"status": newStatus}
		if in.Notes != "" {
			updates["supplier_notes"] = in.Notes
		}
		if in.ETA != nil {
			updates["estimated_delivery_at"] = in.ETA
		}
		if newStatus == models.OrderDelivered {
			updates["delivered_at"] = time.Now()
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", o.ID, o.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: illegal transition from %s to %s", service.ErrConflict, o.Status, newStatus)
		}

		if newStatus == models.OrderCancelled {
			for _, it := range o.Items {
				if err := tx.Model(&models.Material{}).
					Where("id = ?", it.MaterialID).
					UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Preload("Items").First(&o, o.ID).Error; err != nil {
			return err
		}
		updated = &o
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

// ListOrders returns the caller's orders: vendors see orders they placed,
// suppliers see orders placed against them.
func (s *Service) ListOrders(ctx context.Context, userID uint, role models.Role, status models.OrderStatus) ([]models.Order, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{}).Preload("Items")
	switch role {
	case models.RoleVendor:
		q = q.Where("vendor_id = ?", userID)
	case models.RoleSupplier:
		q = q.Where("supplier_id = ?", userID)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", service.ErrValidation, role)
	}
	if status != "" {
		if !validStatus(status) {
			return nil, fmt.Errorf("%w: unknown status %q", service.ErrValidation, status)
		}
		q = q.Where("status = ?", status)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns one order to either of its parties.
func (s *Service) GetOrder(ctx context.Context, orderID, requesterID uint) (*models.Order, error) {
	var o models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&o, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", service.ErrNotFound, orderID)
		}
		return nil, err
	}
	if o.VendorID != requesterID && o.SupplierID != requesterID {
		return nil, fmt.Errorf("%w: order %d", service.ErrUnauthorized, orderID)
	}
	return &o, nil
}
