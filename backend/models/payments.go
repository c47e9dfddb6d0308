package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
	SessionStatusCanceled = "canceled"
)

// PaymentSession is the metadata kept for a hosted checkout session.
type PaymentSession struct {
	ID            string                      `gorm:"primaryKey;size:64" json:"id"`
	OrderID       string                      `gorm:"size:36;not null;index" json:"orderId"`
	UserID        string                      `gorm:"size:36;index" json:"userId"`
	CustomerEmail string                      `json:"customerEmail"`
	CourseIDs     datatypes.JSONSlice[string] `json:"courseIds"`
	Amount        int64                       `json:"amount"`
	Currency      string                      `gorm:"size:8" json:"currency"`
	Token         string                      `json:"-"`
	RedirectURL   string                      `json:"redirectUrl"`
	Status        string                      `gorm:"size:16;not null;default:open" json:"status"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}
