package controllers

import (
	"strings"

	"coursemarket/backend/middleware"
	"coursemarket/backend/models"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CartSessionHeader определяет корзину анонимного или авторизованного браузера
const CartSessionHeader = "X-Cart-Session"

// cartSession возвращает id сессии корзины; если его нет в запросе,
// выдает новый в заголовке ответа
func cartSession(c *fiber.Ctx) string {
	id := strings.TrimSpace(c.Get(CartSessionHeader))
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	c.Set(CartSessionHeader, id)
	return id
}

type CartController struct {
	Carts      *services.CartService
	Catalog    *services.CatalogService
	Enrollment *services.EnrollmentService
}

func NewCartController(svc *services.Container) *CartController {
	return &CartController{Carts: svc.Carts, Catalog: svc.Catalog, Enrollment: svc.Enrollment}
}

func (cc *CartController) open(c *fiber.Ctx) (*services.Cart, error) {
	return cc.Carts.Open(c.UserContext(), cartSession(c), middleware.CurrentUser(c))
}

// GetCart возвращает содержимое корзины
func (cc *CartController) GetCart(c *fiber.Ctx) error {
	cart, err := cc.open(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, cart.Snapshot())
}

// AddItem добавляет опубликованный курс в корзину; повторное добавление ничего не меняет,
// уже купленный курс добавить нельзя
func (cc *CartController) AddItem(c *fiber.Ctx) error {
	type AddItemInput struct {
		CourseID string `json:"courseId" validate:"required"`
	}
	var input AddItemInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	course, err := cc.Catalog.GetCourseByID(c.UserContext(), input.CourseID)
	if err != nil {
		return utils.Fail(c, err)
	}
	if course.Status != models.CourseStatusPublished {
		return utils.NotFound(c, "course "+course.ID+" not found")
	}
	cart, err := cc.open(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	if err := cc.Enrollment.EnsureNotEnrolled(c.UserContext(), cart.User().ID, course.ID); err != nil {
		return utils.Fail(c, err)
	}
	added := cart.AddItem(c.UserContext(), services.CartItemFromCourse(course))
	return utils.Success(c, fiber.StatusOK, cart.Snapshot(), fiber.Map{"added": added})
}

func (cc *CartController) RemoveItem(c *fiber.Ctx) error {
	cart, err := cc.open(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	removed := cart.RemoveItem(c.UserContext(), c.Params("courseId"))
	return utils.Success(c, fiber.StatusOK, cart.Snapshot(), fiber.Map{"removed": removed})
}

func (cc *CartController) ClearCart(c *fiber.Ctx) error {
	cart, err := cc.open(c)
	if err != nil {
		return utils.Fail(c, err)
	}
	cart.ClearCart(c.UserContext())
	return utils.Success(c, fiber.StatusOK, cart.Snapshot())
}
