package middleware

import (
	"coursemarket/backend/config"
	"coursemarket/backend/services"
	"coursemarket/backend/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID  = "user_id"
	localEmail   = "email"
	localToken   = "token"
	localIsAdmin = "is_admin"
)

// CurrentUser returns the authenticated user stored by AuthMiddleware or OptionalAuth.
func CurrentUser(c *fiber.Ctx) services.CartUser {
	id, _ := c.Locals(localUserID).(string)
	email, _ := c.Locals(localEmail).(string)
	return services.CartUser{ID: id, Email: email}
}

func CurrentToken(c *fiber.Ctx) string {
	token, _ := c.Locals(localToken).(string)
	return token
}

// IsAdmin reports whether AdminMiddleware or OptionalAdmin confirmed the caller as admin.
func IsAdmin(c *fiber.Ctx) bool {
	ok, _ := c.Locals(localIsAdmin).(bool)
	return ok
}

func authenticate(c *fiber.Ctx, cfg *config.Config, auth *services.AuthService) error {
	token := utils.TokenFromRequest(c)
	claims, err := utils.ParseJWTToken(token, cfg)
	if err != nil {
		return err
	}
	revoked, err := auth.IsRevoked(c.UserContext(), token)
	if err != nil {
		return err
	}
	if revoked {
		return fiber.NewError(fiber.StatusUnauthorized, "Token has been revoked")
	}
	c.Locals(localUserID, claims.UserID)
	c.Locals(localEmail, claims.Email)
	c.Locals(localToken, token)
	return nil
}

func AuthMiddleware(cfg *config.Config, auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authenticate(c, cfg, auth); err != nil {
			return utils.Fail(c, err)
		}
		return c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and lets anonymous requests through.
func OptionalAuth(cfg *config.Config, auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if utils.TokenFromRequest(c) != "" {
			_ = authenticate(c, cfg, auth)
		}
		return c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(admins *services.AdminService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user.ID == "" {
			return utils.Unauthorized(c, "Unauthorized")
		}
		ok, err := admins.IsAdmin(c.UserContext(), user.ID)
		if err != nil {
			return utils.Fail(c, err)
		}
		if !ok {
			return utils.Forbidden(c, "Forbidden - Admin access required")
		}
		c.Locals(localIsAdmin, true)
		return c.Next()
	}
}

// OptionalAdmin records whether an authenticated caller is an admin without rejecting anyone.
func OptionalAdmin(admins *services.AdminService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user := CurrentUser(c); user.ID != "" {
			if ok, err := admins.IsAdmin(c.UserContext(), user.ID); err == nil && ok {
				c.Locals(localIsAdmin, true)
			}
		}
		return c.Next()
	}
}
