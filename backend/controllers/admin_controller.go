package controllers

import (
	"coursemarket/backend/middleware"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminController struct {
	Admins *services.AdminService
}

func NewAdminController(svc *services.Container) *AdminController {
	return &AdminController{Admins: svc.Admins}
}

func (ac *AdminController) ListAdmins(c *fiber.Ctx) error {
	admins, err := ac.Admins.ListAdmins(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, admins)
}

// AddAdmin выдает права администратора зарегистрированному пользователю
func (ac *AdminController) AddAdmin(c *fiber.Ctx) error {
	type AddAdminInput struct {
		Email string `json:"email" validate:"required,email"`
	}
	var input AddAdminInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	admin, err := ac.Admins.AddAdmin(c.UserContext(), input.Email)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, admin)
}

func (ac *AdminController) RemoveAdmin(c *fiber.Ctx) error {
	if err := ac.Admins.RemoveAdmin(c.UserContext(), c.Params("userId"), middleware.CurrentUser(c).ID); err != nil {
		return utils.Fail(c, err)
	}
	return utils.NoContent(c)
}
