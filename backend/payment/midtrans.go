package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"coursemarket/backend/models"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MidtransGateway starts Snap redirect sessions and polls their status through
// the Core API. Midtrans does not return custom metadata on status checks, so
// the session metadata is kept in payment_sessions.
type MidtransGateway struct {
	db   *gorm.DB
	snap snap.Client
	core coreapi.Client
	log  *zap.SugaredLogger
}

func NewMidtransGateway(db *gorm.DB, serverKey string, production bool, log *zap.SugaredLogger) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g := &MidtransGateway{db: db, log: log.With("service", "MidtransGateway")}
	g.snap.New(serverKey, env)
	g.core.New(serverKey, env)
	return g
}

func (g *MidtransGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.OrderID == "" {
		return nil, errors.New("order id is required")
	}
	items, gross := midtransItems(req)
	if gross <= 0 {
		return nil, fmt.Errorf("invalid amount %.2f", req.Amount)
	}

	sessionID := newSessionID(req.OrderID)
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  sessionID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: defaultString(req.CustomerName, req.CustomerEmail),
			Email: req.CustomerEmail,
		},
		Items:        &items,
		CustomField1: truncate(req.OrderID, 255),
		CustomField2: truncate(req.Description, 255),
	}
	if req.ReturnURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: req.ReturnURL}
	}

	resp, mErr := g.snap.CreateTransaction(snapReq)
	if mErr != nil {
		g.log.Errorw("snap create transaction failed", "order_id", req.OrderID, "error", mErr.GetMessage())
		return nil, fmt.Errorf("create payment session: %s", mErr.GetMessage())
	}

	record := models.PaymentSession{
		ID:            sessionID,
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		CustomerEmail: req.CustomerEmail,
		CourseIDs:     datatypes.NewJSONSlice(req.CourseIDs),
		Amount:        gross,
		Currency:      req.Currency,
		Token:         resp.Token,
		RedirectURL:   resp.RedirectURL,
		Status:        models.SessionStatusOpen,
	}
	if err := g.db.WithContext(ctx).Create(&record).Error; err != nil {
		// the session exists at Midtrans; the return flow can still use client refs
		g.log.Warnw("could not store payment session metadata", "session_id", sessionID, "error", err)
	}

	g.log.Infow("payment session created", "session_id", sessionID, "order_id", req.OrderID, "amount", gross)
	return &Session{ID: sessionID, Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) GetSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	var record models.PaymentSession
	err := g.db.WithContext(ctx).Where("id = ?", sessionID).First(&record).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load payment session: %w", err)
	}
	known := err == nil

	resp, mErr := g.core.CheckTransaction(sessionID)
	if mErr != nil {
		if mErr.StatusCode == 404 {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("check transaction: %s", mErr.GetMessage())
	}

	status := MapTransactionStatus(resp.TransactionStatus, resp.FraudStatus)
	if status == "" {
		g.log.Warnw("unknown midtrans transaction status", "session_id", sessionID, "status", resp.TransactionStatus)
		status = models.SessionStatusOpen
	}

	out := &SessionStatus{ID: sessionID, Status: status}
	if known {
		out.CustomerEmail = record.CustomerEmail
		out.Metadata = Metadata{OrderID: record.OrderID, CourseIDs: []string(record.CourseIDs)}
		if record.Status != status {
			if err := g.db.WithContext(ctx).Model(&record).Update("status", status).Error; err != nil {
				g.log.Warnw("could not update payment session status", "session_id", sessionID, "error", err)
			}
		}
	}
	return out, nil
}

// MapTransactionStatus maps a Midtrans transaction status to a session lifecycle status.
// Unknown statuses map to "".
func MapTransactionStatus(txStatus, fraudStatus string) string {
	switch strings.ToLower(txStatus) {
	case "capture":
		if strings.EqualFold(fraudStatus, "challenge") {
			return models.SessionStatusOpen
		}
		return models.SessionStatusComplete
	case "settlement", "success":
		return models.SessionStatusComplete
	case "pending", "authorize":
		return models.SessionStatusOpen
	case "expire", "expired":
		return models.SessionStatusExpired
	case "cancel", "canceled", "deny", "failure", "failed", "refund", "partial_refund":
		return models.SessionStatusCanceled
	}
	return ""
}

// midtransItems rounds line items to whole currency units; the gross amount is
// their sum because Midtrans rejects a mismatch.
func midtransItems(req SessionRequest) ([]midtrans.ItemDetails, int64) {
	var items []midtrans.ItemDetails
	var gross int64
	for _, it := range req.Items {
		price := int64(math.Round(it.Price))
		items = append(items, midtrans.ItemDetails{
			ID:    truncate(it.ID, 50),
			Name:  truncate(defaultString(it.Name, "Course"), 50),
			Price: price,
			Qty:   1,
		})
		gross += price
	}
	if len(items) == 0 {
		gross = int64(math.Round(req.Amount))
		items = []midtrans.ItemDetails{{
			ID:    truncate(req.OrderID, 50),
			Name:  truncate(defaultString(req.Description, "Course purchase"), 50),
			Price: gross,
			Qty:   1,
		}}
	}
	return items, gross
}

// newSessionID builds a processor order id (<= 50 chars). It is unique per
// attempt because Midtrans refuses to reuse an order id.
func newSessionID(orderID string) string {
	compact := strings.ReplaceAll(orderID, "-", "")
	if len(compact) > 32 {
		compact = compact[:32]
	}
	if compact == "" {
		compact = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return fmt.Sprintf("ORD-%s-%d", compact, time.Now().Unix())
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
