package handler

import (
	"github.com/gofiber/fiber/v2"

	"sunnyapi/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=150"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type profileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=150"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

// Register creates an account and sends the verification email.
//
// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "New account"
// @Success 201 {object} model.User
// @Failure 400 {object} errorPayload
// @Router /api/auth/register [post]
func Register(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		user, err := svc.Register(c.UserContext(), service.RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Phone:    req.Phone,
		})
		if err != nil {
			return respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	}
}

// Login exchanges credentials for an access token.
//
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credentials"
// @Success 200 {object} service.AuthResult
// @Failure 401 {object} errorPayload
// @Router /api/auth/login [post]
func Login(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		res, err := svc.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(res)
	}
}

func VerifyEmail(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tokenRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		if err := svc.VerifyEmail(c.UserContext(), req.Token); err != nil {
			return respond(c, err)
		}
		return c.JSON(fiber.Map{"status": "verified"})
	}
}

// RequestPasswordReset always answers 202 so callers cannot probe for registered emails.
func RequestPasswordReset(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req passwordResetRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		if err := svc.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
			return respond(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

func ConfirmPasswordReset(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req passwordResetConfirmRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		if err := svc.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
			return respond(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func Me(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := svc.Me(c.UserContext(), actor(c).UserID)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(user)
	}
}

func UpdateMe(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req profileRequest
		if err := bind(c, &req); err != nil {
			return respond(c, err)
		}
		user, err := svc.UpdateProfile(c.UserContext(), actor(c).UserID, service.ProfileInput{Name: req.Name, Phone: req.Phone})
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(user)
	}
}
