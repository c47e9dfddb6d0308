package controllers

import (
	"coursemarket/backend/middleware"
	"coursemarket/backend/payment"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CheckoutController struct {
	Carts     *services.CartService
	Orders    *services.OrderService
	ServerKey string
	Log       *zap.SugaredLogger
}

func NewCheckoutController(svc *services.Container, serverKey string, log *zap.SugaredLogger) *CheckoutController {
	return &CheckoutController{Carts: svc.Carts, Orders: svc.Orders, ServerKey: serverKey, Log: log.With("controller", "checkout")}
}

// [+] Checkout godoc
// @Summary Check out the cart
// @Description Turns the cart into a pending order and opens a hosted payment session when payments are configured
// @Tags checkout
// @Produce json
// @Param X-Cart-Session header string true "Cart session"
// @Success 200 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 502 {object} utils.ErrorResponse
// @Router /checkout [post]
func (cc *CheckoutController) Checkout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := middleware.CurrentUser(c)
	cart, err := cc.Carts.Open(ctx, cartSession(c), user)
	if err != nil {
		return utils.Fail(c, err)
	}
	cart.Flush()

	result, err := cc.Orders.StartCheckout(ctx, user, cart.Snapshot())
	if err != nil {
		return utils.Fail(c, err)
	}

	courseIDs := make([]string, 0, len(result.Items))
	for _, it := range result.Items {
		courseIDs = append(courseIDs, it.CourseID)
	}
	if result.RedirectURL == "" {
		// оплаты нет, заказ ждет подтверждения администратора
		cart.CompleteCheckout(ctx)
		return utils.Success(c, fiber.StatusOK, result)
	}
	cart.RememberCheckout(ctx, result.OrderID, courseIDs)
	return utils.Success(c, fiber.StatusOK, result)
}

// Return обрабатывает возврат пользователя со страницы оплаты
func (cc *CheckoutController) Return(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = c.Query("order_id")
	}

	var cart *services.Cart
	var refs services.PaymentRefs
	if c.Get(CartSessionHeader) != "" {
		opened, err := cc.Carts.Open(ctx, cartSession(c), middleware.CurrentUser(c))
		if err != nil {
			return utils.Fail(c, err)
		}
		cart = opened
		refs = cart.CheckoutRefs(ctx)
	}

	result, err := cc.Orders.CompletePayment(ctx, sessionID, refs)
	if err != nil {
		return utils.Fail(c, err)
	}
	if cart != nil {
		cart.CompleteCheckout(ctx)
		cc.Carts.Forget(cart.SessionID())
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// Notification принимает уведомление о статусе платежа от платежной системы
func (cc *CheckoutController) Notification(c *fiber.Ctx) error {
	type NotificationInput struct {
		OrderID           string `json:"order_id" validate:"required"`
		StatusCode        string `json:"status_code" validate:"required"`
		GrossAmount       string `json:"gross_amount" validate:"required"`
		SignatureKey      string `json:"signature_key" validate:"required"`
		TransactionStatus string `json:"transaction_status"`
		FraudStatus       string `json:"fraud_status"`
	}
	var input NotificationInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	if !payment.VerifySignature(input.OrderID, input.StatusCode, input.GrossAmount, cc.ServerKey, input.SignatureKey) {
		return utils.Forbidden(c, "Invalid signature")
	}

	result, err := cc.Orders.CompletePayment(c.UserContext(), input.OrderID, services.PaymentRefs{})
	if utils.HasCode(err, utils.CodePaymentIncomplete) {
		cc.Log.Infow("payment notification before completion", "session_id", input.OrderID, "status", input.TransactionStatus)
		return utils.Message(c, "Notification received", nil)
	}
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Message(c, "Payment completed", result)
}
