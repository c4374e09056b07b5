package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductState string

const (
	StateAvailable ProductState = "disponible"
	StateReserved  ProductState = "reservado"
	StateSold      ProductState = "vendido"
)

// ExternalSaleMarker is recorded as buyer info when an item sold off-platform is marked sold.
const ExternalSaleMarker = "venta externa"

// Product is owned by the catalog; the reservation engine only mutates the
// reservation-related columns below Stock.
type Product struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int             `gorm:"not null" json:"stock"`
	ImageURL    string          `json:"image_url"`

	State               ProductState `gorm:"type:varchar(20);not null;default:'disponible';index" json:"state"`
	ReservedAt          *time.Time   `gorm:"index" json:"reserved_at,omitempty"`
	BuyerInfo           *string      `gorm:"type:varchar(255);index" json:"buyer_info,omitempty"`
	ReservedBySessionID *string      `gorm:"type:varchar(100)" json:"reserved_by_session_id,omitempty"`
	ReservedByUserID    *uint        `json:"reserved_by_user_id,omitempty"`
	ReservationPaused   bool         `gorm:"not null;default:false" json:"reservation_paused"`
	PausedAt            *time.Time   `json:"paused_at,omitempty"`
	ReservationVersion  int64        `gorm:"not null;default:0" json:"reservation_version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CartItems []CartItem `gorm:"foreignKey:ProductID" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) IsAvailable() bool {
	return p.State == StateAvailable
}

func (p *Product) IsReserved() bool {
	return p.State == StateReserved
}

// HeldBy reports whether the product is currently reserved under the given buyer info.
func (p *Product) HeldBy(buyerInfo string) bool {
	return p.State == StateReserved && p.BuyerInfo != nil && *p.BuyerInfo == buyerInfo
}
