package controllers

import (
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

const featuredCourses = 6

type OverviewController struct {
	Catalog *services.CatalogService
}

func NewOverviewController(svc *services.Container) *OverviewController {
	return &OverviewController{Catalog: svc.Catalog}
}

// GetOverview возвращает новые курсы и список категорий для главной страницы
func (oc *OverviewController) GetOverview(c *fiber.Ctx) error {
	courses, err := oc.Catalog.GetCourses(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	if len(courses) > featuredCourses {
		courses = courses[:featuredCourses]
	}
	categories, err := oc.Catalog.Categories(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"featured":   courses,
		"categories": categories,
	})
}
