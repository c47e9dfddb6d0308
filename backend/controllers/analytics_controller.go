package controllers

import (
	"coursemarket/backend/config"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type AnalyticsController struct {
	Orders *services.OrderService
	Cfg    *config.Config
}

func NewAnalyticsController(svc *services.Container, cfg *config.Config) *AnalyticsController {
	return &AnalyticsController{Orders: svc.Orders, Cfg: cfg}
}

// GetSalesSummary возвращает выручку, заказы по статусам и популярные курсы
func (ac *AnalyticsController) GetSalesSummary(c *fiber.Ctx) error {
	summary, err := ac.Orders.SalesSummary(c.UserContext(), ac.Cfg.AcademyID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, summary)
}
