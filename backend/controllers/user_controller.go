package controllers

import (
	"coursemarket/backend/middleware"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	Auth       *services.AuthService
	Enrollment *services.EnrollmentService
	Orders     *services.OrderService
	Admins     *services.AdminService
}

func NewUserController(svc *services.Container) *UserController {
	return &UserController{Auth: svc.Auth, Enrollment: svc.Enrollment, Orders: svc.Orders, Admins: svc.Admins}
}

// GetProfile возвращает профиль пользователя с купленными курсами
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	data, err := uc.Enrollment.GetUserData(c.UserContext(), user.ID)
	if err != nil {
		return utils.Fail(c, err)
	}
	isAdmin, err := uc.Admins.IsAdmin(c.UserContext(), user.ID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":    data,
		"isAdmin": isAdmin,
	})
}

// UpdateProfile обновляет отображаемое имя
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	type UpdateProfileInput struct {
		DisplayName string `json:"displayName" validate:"max=120"`
	}
	var input UpdateProfileInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	user, err := uc.Auth.UpdateProfile(c.UserContext(), middleware.CurrentUser(c).ID, input.DisplayName)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

// GetMyCourses возвращает курсы, на которые записан пользователь
func (uc *UserController) GetMyCourses(c *fiber.Ctx) error {
	courses, err := uc.Enrollment.GetEnrolledCourses(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, courses)
}

func (uc *UserController) GetMyOrders(c *fiber.Ctx) error {
	orders, err := uc.Orders.GetUserOrders(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, orders)
}
