package models

import (
	"time"
)

type Role string

const (
	RoleVendor   Role = "vendor"
	RoleSupplier Role = "supplier"
)

func (r Role) Valid() bool {
	return r == RoleVendor || r == RoleSupplier
}

type MaterialCategory string

const (
	CategoryVegetables MaterialCategory = "vegetables"
	CategoryDairy      MaterialCategory = "dairy"
	CategoryOils       MaterialCategory = "oils"
	CategorySpices     MaterialCategory = "spices"
	CategoryGrains     MaterialCategory = "grains"
	CategoryMeat       MaterialCategory = "meat"
	CategoryOthers     MaterialCategory = "others"
)

func (c MaterialCategory) Valid() bool {
	switch c {
	case CategoryVegetables, CategoryDairy, CategoryOils, CategorySpices, CategoryGrains, CategoryMeat, CategoryOthers:
		return true
	}
	return false
}

type MaterialUnit string

const (
	UnitKg     MaterialUnit = "kg"
	UnitLiter  MaterialUnit = "liter"
	UnitPiece  MaterialUnit = "piece"
	UnitPacket MaterialUnit = "packet"
	UnitDozen  MaterialUnit = "dozen"
)

func (u MaterialUnit) Valid() bool {
	switch u {
	case UnitKg, UnitLiter, UnitPiece, UnitPacket, UnitDozen:
		return true
	}
	return false
}

type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
)

func (g QualityGrade) Valid() bool {
	return g == GradeA || g == GradeB || g == GradeC
}

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type User struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone        string  `gorm:"unique;not null"          json:"phone"`
	PasswordHash string  `gorm:"not null"                 json:"-"`
	Role         Role    `gorm:"not null"                 json:"role"`
	Name         string  `gorm:"not null"                 json:"name"`
	Address      string  `json:"address"`
	Pincode      string  `json:"pincode"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`

	// Denormalized supplier rating, maintained by the review service.
	AverageRating float64 `gorm:"default:0" json:"average_rating"`
	TotalReviews  int     `gorm:"default:0" json:"total_reviews"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

type Material struct {
	ID               uint             `gorm:"primaryKey;autoIncrement"         json:"id"`
	SupplierID       uint             `gorm:"index;not null"                   json:"supplier_id"`
	Name             string           `gorm:"not null"                         json:"name"`
	Category         MaterialCategory `gorm:"not null"                         json:"category"`
	PricePerUnit     float64          `gorm:"not null;check:price_per_unit>=0" json:"price_per_unit"`
	Unit             MaterialUnit     `gorm:"not null"                         json:"unit"`
	Stock            int              `gorm:"not null;check:stock>=0"          json:"stock"`
	MinOrderQty      int              `gorm:"default:1;check:min_order_qty>=1" json:"min_order_qty"`
	DeliveryRadiusKm int              `gorm:"default:10"                       json:"delivery_radius_km"`
	IsAvailable      bool             `gorm:"default:true"                     json:"is_available"`
	QualityGrade     QualityGrade     `gorm:"default:A"                        json:"quality_grade"`
}

// OrderItem is a snapshot taken at placement time; later edits to the
// material must not alter historical orders.
type OrderItem struct {
	ID         uint         `gorm:"primaryKey"                json:"id"`
	OrderID    uint         `gorm:"index;not null"            json:"order_id"`
	MaterialID uint         `gorm:"not null"                  json:"material_id"`
	Name       string       `gorm:"not null"                  json:"name"`
	Quantity   int          `gorm:"not null;check:quantity>0" json:"quantity"`
	UnitPrice  float64      `gorm:"not null"                  json:"unit_price"`
	Unit       MaterialUnit `gorm:"not null"                  json:"unit"`
}

type Order struct {
	ID                  uint          `gorm:"primaryKey"     json:"id"`
	VendorID            uint          `gorm:"index;not null" json:"vendor_id"`
	SupplierID          uint          `gorm:"index;not null" json:"supplier_id"`
	Items               []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
	Subtotal            float64       `gorm:"not null"       json:"subtotal"`
	DeliveryFee         float64       `gorm:"not null"       json:"delivery_fee"`
	Total               float64       `gorm:"not null"       json:"total"`
	Status              OrderStatus   `gorm:"not null;default:pending" json:"status"`
	DeliveryAddress     string        `gorm:"not null"       json:"delivery_address"`
	VendorPhone         string        `json:"vendor_phone"`
	SupplierNotes       string        `json:"supplier_notes,omitempty"`
	EstimatedDeliveryAt *time.Time    `json:"estimated_delivery_at,omitempty"`
	DeliveredAt         *time.Time    `json:"delivered_at,omitempty"`
	PaymentMethod       PaymentMethod `gorm:"default:cash"    json:"payment_method"`
	PaymentStatus       PaymentStatus `gorm:"default:pending" json:"payment_status"`
	CreatedAt           time.Time     `json:"created_at"`
}

type Review struct {
	ID             uint      `gorm:"primaryKey"           json:"id"`
	VendorID       uint      `gorm:"index;not null"       json:"vendor_id"`
	SupplierID     uint      `gorm:"index;not null"       json:"supplier_id"`
	OrderID        uint      `gorm:"uniqueIndex;not null" json:"order_id"`
	Rating         int       `gorm:"not null;check:rating>=1 AND rating<=5" json:"rating"`
	Comment        string    `gorm:"size:500"             json:"comment,omitempty"`
	QualityRating  *int      `json:"quality_rating,omitempty"`
	DeliveryRating *int      `json:"delivery_rating,omitempty"`
	ServiceRating  *int      `json:"service_rating,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
