package controllers

import (
	"coursemarket/backend/models"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type OrdersController struct {
	Orders *services.OrderService
}

func NewOrdersController(svc *services.Container) *OrdersController {
	return &OrdersController{Orders: svc.Orders}
}

// GetAllOrders возвращает все заказы, новые первыми; ?status= фильтрует
func (oc *OrdersController) GetAllOrders(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", models.OrderStatusCart, models.OrderStatusPending, models.OrderStatusCompleted, models.OrderStatusRejected:
	default:
		return utils.BadRequest(c, "Invalid order status")
	}
	orders, err := oc.Orders.GetAllOrders(c.UserContext(), status)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, orders)
}

func (oc *OrdersController) GetOrder(c *fiber.Ctx) error {
	order, err := oc.Orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, order)
}

// ApproveOrder записывает пользователя на все курсы заказа и завершает его
func (oc *OrdersController) ApproveOrder(c *fiber.Ctx) error {
	order, err := oc.Orders.ApproveOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, order)
}

func (oc *OrdersController) RejectOrder(c *fiber.Ctx) error {
	order, err := oc.Orders.RejectOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, order)
}
