package review

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/streetsource/backend/internal/models"
	"github.com/streetsource/backend/internal/service"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

type AddReviewInput struct {
	OrderID        uint
	Rating         int
	Comment        string
	QualityRating  *int
	DeliveryRating *int
	ServiceRating  *int
}

func validRating(r int) bool { return r >= 1 && r <= 5 }

// AddReview records a vendor's review for a delivered order and recomputes
// the supplier's denormalized average and count from all of their reviews.
func (s *Service) AddReview(ctx context.Context, vendorID uint, in AddReviewInput) (*models.Review, error) {
	if in.OrderID == 0 {
		return nil, fmt.Errorf("%w: order_id required", service.ErrValidation)
	}
	if !validRating(in.Rating) {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", service.ErrValidation)
	}
	if len(in.Comment) > 500 {
		return nil, fmt.Errorf("%w: comment must be at most 500 characters", service.ErrValidation)
	}
	for _, sub := range []*int{in.QualityRating, in.DeliveryRating, in.ServiceRating} {
		if sub != nil && !validRating(*sub) {
			return nil, fmt.Errorf("%w: category ratings must be between 1 and 5", service.ErrValidation)
		}
	}

	var created *models.Review
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.First(&o, in.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order not eligible for review", service.ErrNotFound)
			}
			return err
		}
		if o.VendorID != vendorID {
			return fmt.Errorf("%w: order not eligible for review", service.ErrUnauthorized)
		}
		if o.Status != models.OrderDelivered {
			return fmt.Errorf("%w: order not eligible for review: status is %s", service.ErrConflict, o.Status)
		}

		var count int64
		if err := tx.Model(&models.Review{}).Where("order_id = ?", o.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: review already exists for this order", service.ErrConflict)
		}

		r := models.Review{
			VendorID:       vendorID,
			SupplierID:     o.SupplierID,
			OrderID:        o.ID,
			Rating:         in.Rating,
			Comment:        in.Comment,
			QualityRating:  in.QualityRating,
			DeliveryRating: in.DeliveryRating,
			ServiceRating:  in.ServiceRating,
		}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}

		if err := recomputeSupplierRating(tx, o.SupplierID); err != nil {
			return err
		}
		created = &r
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// recomputeSupplierRating is a full re-scan of the supplier's reviews. Review
// volume is low relative to catalog reads, so exactness wins over an
// incremental running mean.
func recomputeSupplierRating(tx *gorm.DB, supplierID uint) error {
	var stats struct {
		Avg   float64
		Count int64
	}
	err := tx.Model(&models.Review{}).
		Where("supplier_id = ?", supplierID).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Scan(&stats).Error
	if err != nil {
		return err
	}

	rounded := math.Round(stats.Avg*10) / 10
	return tx.Model(&models.User{}).
		Where("id = ?", supplierID).
		Updates(map[string]interface{}{
			"average_rating": rounded,
			"total_reviews":  stats.Count,
		}).Error
}

type SupplierReviews struct {
	Reviews            []models.Review `json:"reviews"`
	AverageRating      float64         `json:"average_rating"`
	TotalReviews       int64           `json:"total_reviews"`
	RatingDistribution map[int]int64   `json:"rating_distribution"`
}

// ListBySupplier returns a supplier's reviews with the aggregate fields the
// catalog listing views consume.
func (s *Service) ListBySupplier(ctx context.Context, supplierID uint) (*SupplierReviews, error) {
	var reviews []models.Review
	if err := s.DB.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}

	out := &SupplierReviews{
		Reviews:            reviews,
		RatingDistribution: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	var sum int64
	for _, r := range reviews {
		out.RatingDistribution[r.Rating]++
		sum += int64(r.Rating)
	}
	out.TotalReviews = int64(len(reviews))
	if out.TotalReviews > 0 {
		out.AverageRating = math.Round(float64(sum)/float64(out.TotalReviews)*10) / 10
	}
	return out, nil
}
