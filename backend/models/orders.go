package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrderStatusCart      = "cart"
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusRejected  = "rejected"
)

// OrderItem is a snapshot of a course at the time it was put in the order.
type OrderItem struct {
	CourseID string  `json:"courseId"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID        string                         `gorm:"primaryKey;size:36" json:"id"`
	UserID    string                         `gorm:"size:36;not null;index:idx_order_user_status" json:"userId"`
	UserEmail string                         `json:"userEmail"`
	Items     datatypes.JSONSlice[OrderItem] `json:"items"`
	Total     float64                        `gorm:"not null;default:0" json:"total"`
	Status    string                         `gorm:"size:16;not null;index:idx_order_user_status" json:"status"`
	// CartKey holds the user id while the order is the user's cart mirror; nil otherwise.
	CartKey          *string   `gorm:"size:36;uniqueIndex" json:"-"`
	PaymentSessionID string    `gorm:"size:64" json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

func (o *Order) CourseIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.CourseID)
	}
	return ids
}

func SumItems(items []OrderItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price
	}
	return total
}
