package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"coursemarket/backend/config"
	"coursemarket/backend/models"
	"coursemarket/backend/payment"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderService owns the order status machine:
//
//	cart -> pending -> completed
//	        pending -> rejected
//
// Cart mirroring may only touch orders in the cart state.
type OrderService struct {
	db         *gorm.DB
	enrollment *EnrollmentService
	gateway    payment.Gateway
	cfg        *config.Config
	log        *zap.SugaredLogger
}

func NewOrderService(db *gorm.DB, enrollment *EnrollmentService, gateway payment.Gateway, cfg *config.Config, log *zap.SugaredLogger) *OrderService {
	return &OrderService{db: db, enrollment: enrollment, gateway: gateway, cfg: cfg, log: log.With("service", "OrderService")}
}

// PaymentRefs are the references a client kept for an in-flight checkout. They
// are used when the payment session carries no metadata.
type PaymentRefs struct {
	OrderID   string   `json:"orderId"`
	CourseIDs []string `json:"courseIds"`
}

type CheckoutResult struct {
	OrderID     string             `json:"orderId"`
	Status      string             `json:"status"`
	Items       []models.OrderItem `json:"items"`
	Total       float64            `json:"total"`
	SessionID   string             `json:"sessionId,omitempty"`
	RedirectURL string             `json:"redirectUrl,omitempty"`
}

type CompletionResult struct {
	OrderID   string   `json:"orderId"`
	CourseIDs []string `json:"courseIds"`
	Email     string   `json:"email,omitempty"`
}

func orderNewestFirst(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }

func sortOrdersNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

// CreateOrder stores a new pending order. Used when there is no cart order to convert.
func (s *OrderService) CreateOrder(ctx context.Context, userID, email string, items []models.OrderItem, total float64) (string, error) {
	if userID == "" {
		return "", utils.ValidationErr("user id is required")
	}
	if len(items) == 0 {
		return "", utils.ValidationErr("order has no items")
	}
	order := models.Order{
		UserID:    userID,
		UserEmail: email,
		Items:     datatypes.NewJSONSlice(items),
		Total:     total,
		Status:    models.OrderStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return "", utils.InternalError("create order", err)
	}
	s.log.Infow("order created", "order_id", order.ID, "user_id", userID, "total", total)
	return order.ID, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.getOrder(ctx, s.db, id)
}

func (s *OrderService) getOrder(ctx context.Context, db *gorm.DB, id string) (*models.Order, error) {
	var order models.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("order %s not found", id)
		}
		return nil, utils.InternalError("load order", err)
	}
	return &order, nil
}

// GetUserOrders returns the user's orders, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	degraded, err := utils.FindWithFallback(ctx, s.db, s.log, &orders, func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}, orderNewestFirst)
	if err != nil {
		return nil, utils.InternalError("load orders", err)
	}
	if degraded {
		sortOrdersNewestFirst(orders)
	}
	return orders, nil
}

// GetAllOrders returns every order, newest first; status filters when set. Admin only.
func (s *OrderService) GetAllOrders(ctx context.Context, status string) ([]models.Order, error) {
	var orders []models.Order
	degraded, err := utils.FindWithFallback(ctx, s.db, s.log, &orders, func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}, orderNewestFirst)
	if err != nil {
		return nil, utils.InternalError("load orders", err)
	}
	if degraded {
		sortOrdersNewestFirst(orders)
	}
	return orders, nil
}

// FindCartOrder returns the user's most recent cart order. Older cart orders
// left behind by racing writers are stale and ignored.
func (s *OrderService) FindCartOrder(ctx context.Context, userID string) (*models.Order, error) {
	return s.findCartOrder(ctx, s.db, userID)
}

func (s *OrderService) findCartOrder(ctx context.Context, db *gorm.DB, userID string) (*models.Order, error) {
	var orders []models.Order
	degraded, err := utils.FindWithFallback(ctx, db, s.log, &orders, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ? AND status = ?", userID, models.OrderStatusCart)
	}, func(q *gorm.DB) *gorm.DB {
		return q.Order("created_at DESC").Limit(1)
	})
	if err != nil {
		return nil, utils.InternalError("find cart order", err)
	}
	if len(orders) == 0 {
		return nil, utils.NotFoundError("no cart order for user %s", userID)
	}
	if degraded {
		sortOrdersNewestFirst(orders)
		if len(orders) > 1 {
			s.log.Warnw("multiple cart orders for user, using newest", "user_id", userID, "count", len(orders))
		}
	}
	return &orders[0], nil
}

// UpsertCartOrder writes the user's cart mirror and returns its id. The newest
// cart order is updated in place; otherwise one is created keyed by the user
// id, so concurrent creators converge on a single row.
func (s *OrderService) UpsertCartOrder(ctx context.Context, userID, email string, items []models.OrderItem, total float64) (string, error) {
	if userID == "" {
		return "", utils.ValidationErr("user id is required")
	}
	existing, err := s.FindCartOrder(ctx, userID)
	switch {
	case err == nil:
		res := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND status = ?", existing.ID, models.OrderStatusCart).
			Updates(map[string]interface{}{
				"items":      datatypes.NewJSONSlice(items),
				"total":      total,
				"user_email": email,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return "", utils.InternalError("update cart order", res.Error)
		}
		if res.RowsAffected == 1 {
			return existing.ID, nil
		}
		// converted between the read and the write; fall through and create
	case !utils.HasCode(err, utils.CodeNotFound):
		return "", err
	}

	key := userID
	order := models.Order{
		UserID:    userID,
		UserEmail: email,
		Items:     datatypes.NewJSONSlice(items),
		Total:     total,
		Status:    models.OrderStatusCart,
		CartKey:   &key,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "total", "user_email", "updated_at"}),
	}).Create(&order).Error; err != nil {
		return "", utils.InternalError("create cart order", err)
	}

	var stored models.Order
	if err := s.db.WithContext(ctx).Where("cart_key = ?", key).First(&stored).Error; err != nil {
		return "", utils.InternalError("load cart order", err)
	}
	return stored.ID, nil
}

// UpdateCartOrderItems replaces the items of a cart order. Orders past the cart
// state are never touched and yield orderNotMutable.
func (s *OrderService) UpdateCartOrderItems(ctx context.Context, orderID string, items []models.OrderItem, total float64) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusCart).
		Updates(map[string]interface{}{
			"items":      datatypes.NewJSONSlice(items),
			"total":      total,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return utils.InternalError("update cart order", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return utils.CodedError(fiber.StatusConflict, utils.CodeOrderNotMutable, "order %s is %s", order.ID, order.Status)
}

// ConvertCartOrderToPending flips the user's newest cart order to pending and
// returns its id. notFound means the caller must fall back to CreateOrder.
func (s *OrderService) ConvertCartOrderToPending(ctx context.Context, userID string) (string, error) {
	return s.convertCartOrder(ctx, userID, nil, 0)
}

// convertCartOrder optionally rewrites items and total so the pending order
// matches the cart at checkout even if mirroring lagged.
func (s *OrderService) convertCartOrder(ctx context.Context, userID string, items []models.OrderItem, total float64) (string, error) {
	var orderID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.findCartOrder(ctx, tx, userID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"status":     models.OrderStatusPending,
			"cart_key":   nil,
			"updated_at": time.Now().UTC(),
		}
		if items != nil {
			updates["items"] = datatypes.NewJSONSlice(items)
			updates["total"] = total
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusCart).
			Updates(updates)
		if res.Error != nil {
			return utils.InternalError("convert cart order", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.CodedError(fiber.StatusConflict, utils.CodeConflict, "cart order %s was converted concurrently", order.ID)
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Infow("cart order converted to pending", "order_id", orderID, "user_id", userID)
	return orderID, nil
}

// ApproveOrder enrolls the user in every course of a pending order and marks it
// completed. Enrollments are applied one course at a time; when one fails the
// order stays pending and the earlier enrollments are kept, so approving again
// is the recovery path.
func (s *OrderService) ApproveOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, utils.CodedError(fiber.StatusConflict, utils.CodeOrderNotPending, "order %s is %s", order.ID, order.Status)
	}

	if err := s.enrollAll(ctx, order.UserID, order.Items); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]interface{}{"status": models.OrderStatusCompleted, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, utils.InternalError("complete order", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.CodedError(fiber.StatusConflict, utils.CodeOrderNotPending, "order %s changed during approval", order.ID)
	}
	s.log.Infow("order approved", "order_id", order.ID, "user_id", order.UserID, "courses", len(order.Items))
	return s.GetOrder(ctx, order.ID)
}

// RejectOrder marks a pending order rejected. No enrollment side effects.
func (s *OrderService) RejectOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]interface{}{"status": models.OrderStatusRejected, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, utils.InternalError("reject order", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.CodedError(fiber.StatusConflict, utils.CodeOrderNotPending, "order %s is %s", order.ID, order.Status)
	}
	s.log.Infow("order rejected", "order_id", order.ID)
	return s.GetOrder(ctx, order.ID)
}

func (s *OrderService) enrollAll(ctx context.Context, userID string, items []models.OrderItem) error {
	for _, it := range items {
		if _, err := s.enrollment.AddCourseToUser(ctx, userID, it.CourseID); err != nil {
			s.log.Errorw("enrollment failed", "user_id", userID, "course_id", it.CourseID, "error", err)
			name := it.Title
			if name == "" {
				name = it.CourseID
			}
			cause := utils.AsAppError(err)
			return utils.NewAppError(cause.Status, utils.CodeEnrollmentFailed,
				fmt.Errorf("enrolling in course %q (%s) failed: %w", name, it.CourseID, err))
		}
	}
	return nil
}

// StartCheckout turns the cart into a pending order (converting the cart order
// when one exists) and, when a payment gateway is configured, opens a hosted
// payment session for it.
func (s *OrderService) StartCheckout(ctx context.Context, user CartUser, state CartState) (*CheckoutResult, error) {
	if user.ID == "" {
		return nil, utils.CodedError(fiber.StatusUnauthorized, utils.CodeUnauthorized, "sign in to check out")
	}
	if len(state.Items) == 0 {
		return nil, utils.ValidationErr("cart is empty")
	}
	items := orderItemsFromCart(state.Items)
	total := models.SumItems(items)
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.CourseID)
	}
	if err := s.enrollment.EnsureNotEnrolled(ctx, user.ID, ids...); err != nil {
		return nil, err
	}

	orderID, err := s.convertCartOrder(ctx, user.ID, items, total)
	if utils.HasCode(err, utils.CodeNotFound) {
		orderID, err = s.CreateOrder(ctx, user.ID, user.Email, items, total)
	}
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{OrderID: orderID, Status: models.OrderStatusPending, Items: items, Total: total}
	if s.gateway == nil {
		return result, nil
	}

	lineItems := make([]payment.LineItem, 0, len(items))
	courseIDs := make([]string, 0, len(items))
	titles := make([]string, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, payment.LineItem{ID: it.CourseID, Name: it.Title, Price: it.Price})
		courseIDs = append(courseIDs, it.CourseID)
		titles = append(titles, it.Title)
	}
	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:       orderID,
		UserID:        user.ID,
		CustomerEmail: user.Email,
		Amount:        total,
		Currency:      s.cfg.PaymentCurrency,
		ReturnURL:     s.cfg.PaymentReturnURL,
		Description:   "Courses: " + strings.Join(titles, ", "),
		Items:         lineItems,
		CourseIDs:     courseIDs,
	})
	if err != nil {
		s.log.Errorw("payment session failed", "order_id", orderID, "error", err)
		return nil, utils.NewAppError(fiber.StatusBadGateway, utils.CodeUnavailable,
			fmt.Errorf("order %s is pending but the payment session could not be started: %w", orderID, err))
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).
		Update("payment_session_id", session.ID).Error; err != nil {
		s.log.Warnw("could not link payment session to order", "order_id", orderID, "error", err)
	}

	result.SessionID = session.ID
	result.RedirectURL = session.RedirectURL
	return result, nil
}

// CompletePayment polls the session once and, when it is complete, marks the
// order completed and enrolls the user. It reaches the same end state as
// ApproveOrder and can be repeated safely.
func (s *OrderService) CompletePayment(ctx context.Context, sessionID string, fallback PaymentRefs) (*CompletionResult, error) {
	if s.gateway == nil {
		return nil, utils.CodedError(fiber.StatusServiceUnavailable, utils.CodeUnavailable, "payments are not configured")
	}
	if sessionID == "" {
		return nil, utils.ValidationErr("session id is required")
	}
	status, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, utils.NotFoundError("payment session %s not found", sessionID)
		}
		return nil, utils.NewAppError(fiber.StatusBadGateway, utils.CodeUnavailable, fmt.Errorf("check payment session: %w", err))
	}
	if status.Status != models.SessionStatusComplete {
		return nil, utils.CodedError(fiber.StatusConflict, utils.CodePaymentIncomplete, "payment session %s is %s", sessionID, status.Status)
	}

	orderID := status.Metadata.OrderID
	if orderID == "" {
		orderID = fallback.OrderID
	}
	if orderID == "" {
		return nil, utils.ValidationErr("payment session %s has no order reference", sessionID)
	}
	courseIDs := status.Metadata.CourseIDs
	if len(courseIDs) == 0 {
		courseIDs = fallback.CourseIDs
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusRejected {
		return nil, utils.CodedError(fiber.StatusConflict, utils.CodeOrderNotMutable, "order %s was rejected", order.ID)
	}
	if len(courseIDs) == 0 {
		courseIDs = order.CourseIDs()
	}

	if order.Status != models.OrderStatusCompleted {
		if err := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND status IN ?", order.ID, []string{models.OrderStatusCart, models.OrderStatusPending}).
			Updates(map[string]interface{}{
				"status":             models.OrderStatusCompleted,
				"cart_key":           nil,
				"payment_session_id": sessionID,
				"updated_at":         time.Now().UTC(),
			}).Error; err != nil {
			return nil, utils.InternalError("complete order", err)
		}
	}

	items := make([]models.OrderItem, 0, len(courseIDs))
	for _, id := range courseIDs {
		items = append(items, orderItemTitle(order.Items, id))
	}
	if err := s.enrollAll(ctx, order.UserID, items); err != nil {
		return nil, err
	}

	email := status.CustomerEmail
	if email == "" {
		email = order.UserEmail
	}
	s.log.Infow("payment completed", "order_id", order.ID, "session_id", sessionID, "courses", len(courseIDs))
	return &CompletionResult{OrderID: order.ID, CourseIDs: courseIDs, Email: email}, nil
}

type OrderStatusCount struct {
	Status string  `json:"status"`
	Count  int64   `json:"count"`
	Total  float64 `json:"total"`
}

type SalesSummary struct {
	Revenue       float64            `json:"revenue"`
	ByStatus      []OrderStatusCount `json:"byStatus"`
	TopCourses    []models.Course    `json:"topCourses"`
	Enrollments   int64              `json:"enrollments"`
	PendingOrders int64              `json:"pendingOrders"`
}

// SalesSummary aggregates orders and enrollments for the admin dashboard.
func (s *OrderService) SalesSummary(ctx context.Context, academyID string) (*SalesSummary, error) {
	out := &SalesSummary{}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS total").
		Where("status <> ?", models.OrderStatusCart).
		Group("status").Order("status").
		Scan(&out.ByStatus).Error; err != nil {
		return nil, utils.InternalError("aggregate orders", err)
	}
	for _, row := range out.ByStatus {
		switch row.Status {
		case models.OrderStatusCompleted:
			out.Revenue = row.Total
		case models.OrderStatusPending:
			out.PendingOrders = row.Count
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.Enrollment{}).Count(&out.Enrollments).Error; err != nil {
		return nil, utils.InternalError("count enrollments", err)
	}
	if err := s.db.WithContext(ctx).Where("academy_id = ?", academyID).
		Order("enrolled_count DESC").Limit(5).Find(&out.TopCourses).Error; err != nil {
		return nil, utils.InternalError("load top courses", err)
	}
	return out, nil
}

func orderItemTitle(items []models.OrderItem, courseID string) models.OrderItem {
	for _, it := range items {
		if it.CourseID == courseID {
			return it
		}
	}
	return models.OrderItem{CourseID: courseID}
}
