package controllers

import (
	"coursemarket/backend/middleware"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type AuthController struct {
	Auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{Auth: auth}
}

// [+] Register godoc
// @Summary Register a new user
// @Description Creates a new user account and returns a token
// @Tags auth
// @Accept json
// @Produce json
// @Param user body services.RegisterInput true "User registration data"
// @Success 201 {object} utils.SuccessResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /auth/register [post]
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	result, err := ac.Auth.Register(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, result)
}

// [+] Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.LoginInput true "Login credentials"
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /auth/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input services.LoginInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	result, err := ac.Auth.Login(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// Logout отзывает текущий токен
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	if err := ac.Auth.Logout(c.UserContext(), middleware.CurrentToken(c)); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Message(c, "Signed out", nil)
}

func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	type ChangePasswordInput struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	}
	var input ChangePasswordInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	user := middleware.CurrentUser(c)
	if err := ac.Auth.ChangePassword(c.UserContext(), user.ID, input.CurrentPassword, input.NewPassword); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Message(c, "Password updated", nil)
}

// RequestPasswordReset отвечает одинаково, зарегистрирован email или нет
func (ac *AuthController) RequestPasswordReset(c *fiber.Ctx) error {
	type ResetRequestInput struct {
		Email string `json:"email" validate:"required,email"`
	}
	var input ResetRequestInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	if err := ac.Auth.RequestPasswordReset(c.UserContext(), input.Email); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Message(c, "If the address is registered, a reset link has been sent", nil)
}

func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	type ResetInput struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
	}
	var input ResetInput
	if ok, err := utils.ParseAndValidate(c, &input); !ok {
		return err
	}
	if err := ac.Auth.ResetPassword(c.UserContext(), input.Token, input.NewPassword); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Message(c, "Password has been reset", nil)
}
