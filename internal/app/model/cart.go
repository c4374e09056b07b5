package model

import (
	"time"
)

// CartItem belongs to exactly one owner: a guest session or an authenticated user.
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	SessionID *string   `gorm:"type:varchar(100);index" json:"session_id,omitempty"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// CartOwner identifies whose cart (or reservation) an operation acts on.
// Exactly one of SessionID and UserID is set.
type CartOwner struct {
	SessionID *string
	UserID    *uint
}

func GuestOwner(sessionID string) CartOwner {
	return CartOwner{SessionID: &sessionID}
}

func UserOwner(userID uint) CartOwner {
	return CartOwner{UserID: &userID}
}

// Valid reports whether exactly one identity is populated.
func (o CartOwner) Valid() bool {
	hasSession := o.SessionID != nil && *o.SessionID != ""
	hasUser := o.UserID != nil && *o.UserID != 0
	return hasSession != hasUser
}

func (o CartOwner) LogFields() map[string]interface{} {
	fields := map[string]interface{}{}
	if o.UserID != nil {
		fields["user_id"] = *o.UserID
	}
	if o.SessionID != nil {
		fields["session_id"] = *o.SessionID
	}
	return fields
}
