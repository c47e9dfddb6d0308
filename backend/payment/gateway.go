package payment

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when the processor does not know the session.
var ErrSessionNotFound = errors.New("payment session not found")

// Metadata travels with a hosted checkout session.
type Metadata struct {
	OrderID   string   `json:"orderId"`
	CourseIDs []string `json:"courseIds"`
}

type LineItem struct {
	ID    string
	Name  string
	Price float64
}

type SessionRequest struct {
	OrderID       string
	UserID        string
	CustomerEmail string
	CustomerName  string
	Amount        float64
	Currency      string
	ReturnURL     string
	Description   string
	Items         []LineItem
	CourseIDs     []string
}

// Session is a started hosted checkout; the caller redirects to RedirectURL.
type Session struct {
	ID          string `json:"sessionId"`
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirectUrl"`
}

// SessionStatus is the result of polling a session. Status is one of
// models.SessionStatusOpen, Complete, Expired, Canceled.
type SessionStatus struct {
	ID            string
	Status        string
	CustomerEmail string
	Metadata      Metadata
}

// Gateway is a hosted, redirect-based payment processor.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*SessionStatus, error)
}
