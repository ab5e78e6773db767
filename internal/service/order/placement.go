package order

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/streetsource/backend/internal/models"
	"github.com/streetsource/backend/internal/service"
)

// DeliveryFee is charged per supplier order, on top of the item subtotal.
const DeliveryFee = 50.0

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

type CartLine struct {
	MaterialID uint `json:"material_id"`
	Quantity   int  `json:"quantity"`
}

// PlaceOrder places a single-supplier order: one invocation covers exactly one
// supplier group. Stock checks, stock decrements and the order write happen in
// one transaction, so a failing line never leaves stock partially reduced.
func (s *Service) PlaceOrder(ctx context.Context, vendorID, supplierID uint, lines []CartLine, address string) (*models.Order, error) {
	if supplierID == 0 {
		return nil, fmt.Errorf("%w: supplier_id required", service.ErrValidation)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: items required", service.ErrValidation)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: delivery_address required", service.ErrValidation)
	}
	for _, l := range lines {
		if l.MaterialID == 0 {
			return nil, fmt.Errorf("%w: material_id required", service.ErrValidation)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be >= 1", service.ErrValidation)
		}
	}

	var placed *models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vendor models.User
		if err := tx.First(&vendor, vendorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: vendor %d", service.ErrNotFound, vendorID)
			}
			return err
		}

		var subtotal float64
		items := make([]models.OrderItem, 0, len(lines))

		for _, l := range lines {
			var m models.Material
			if err := tx.First(&m, l.MaterialID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: material %d unavailable", service.ErrNotFound, l.MaterialID)
				}
				return err
			}
			if !m.IsAvailable {
				return fmt.Errorf("%w: material %q unavailable", service.ErrNotFound, m.Name)
			}
			if m.SupplierID != supplierID {
				return fmt.Errorf("%w: material %q does not belong to supplier %d", service.ErrValidation, m.Name, supplierID)
			}
			if l.Quantity < m.MinOrderQty {
				return fmt.Errorf("%w: material %q requires a minimum order of %d %s", service.ErrValidation, m.Name, m.MinOrderQty, m.Unit)
			}
			if l.Quantity > m.Stock {
				return fmt.Errorf("%w: insufficient stock for %q: requested %d, available %d", service.ErrConflict, m.Name, l.Quantity, m.Stock)
			}

			// Conditional decrement: the stock check and write are one atomic
			// statement, so concurrent placements cannot jointly oversell.
			res := tx.Model(&models.Material{}).
				Where("id = ? AND stock >= ?", m.ID, l.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", l.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: insufficient stock for %q: requested %d, available %d", service.ErrConflict, m.Name, l.Quantity, m.Stock)
			}

			subtotal += m.PricePerUnit * float64(l.Quantity)
			items = append(items, models.OrderItem{
				MaterialID: m.ID,
				Name:       m.Name,
				Quantity:   l.Quantity,
				UnitPrice:  m.PricePerUnit,
				Unit:       m.Unit,
			})
		}

		o := models.Order{
			VendorID:        vendorID,
			SupplierID:      supplierID,
			Items:           items,
			Subtotal:        subtotal,
			DeliveryFee:     DeliveryFee,
			Total:           subtotal + DeliveryFee,
			Status:          models.OrderPending,
			DeliveryAddress: address,
			VendorPhone:     vendor.Phone,
			PaymentMethod:   models.PaymentCash,
			PaymentStatus:   models.PaymentPending,
		}
		if err := tx.Create(&o).Error; err != nil {
			return err
		}
		placed = &o
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return placed, nil
}

// PlacementResult is the outcome of one supplier group of a mixed cart.
type PlacementResult struct {
	SupplierID uint
	Order      *models.Order
	Err        error
}

// PlaceCart splits a mixed-supplier cart into per-supplier groups and places
// each group independently. A failed group never rolls back a group that has
// already committed; callers receive one result per supplier.
func (s *Service) PlaceCart(ctx context.Context, vendorID uint, lines []CartLine, address string) ([]PlacementResult, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: items required", service.ErrValidation)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: delivery_address required", service.ErrValidation)
	}

	groups := make(map[uint][]CartLine)
	var unknown []PlacementResult
	for _, l := range lines {
		var m models.Material
		if err := s.DB.WithContext(ctx).Select("id", "supplier_id").First(&m, l.MaterialID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				unknown = append(unknown, PlacementResult{
					Err: fmt.Errorf("%w: material %d unavailable", service.ErrNotFound, l.MaterialID),
				})
				continue
			}
			return nil, err
		}
		groups[m.SupplierID] = append(groups[m.SupplierID], l)
	}

	supplierIDs := make([]uint, 0, len(groups))
	for id := range groups {
		supplierIDs = append(supplierIDs, id)
	}
	sort.Slice(supplierIDs, func(i, j int) bool { return supplierIDs[i] < supplierIDs[j] })

	results := make([]PlacementResult, 0, len(groups)+len(unknown))
	for _, sid := range supplierIDs {
		o, err := s.PlaceOrder(ctx, vendorID, sid, groups[sid], address)
		results = append(results, PlacementResult{SupplierID: sid, Order: o, Err: err})
	}
	results = append(results, unknown...)
	return results, nil
}
