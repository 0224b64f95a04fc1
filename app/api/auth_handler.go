package api

import (
	"geodoc/app/session"
	"geodoc/backend"
	"geodoc/types"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	client  *backend.Client
	session *session.Manager
}

func NewAuthHandler(client *backend.Client, sess *session.Manager) *AuthHandler {
	return &AuthHandler{
		client:  client,
		session: sess,
	}
}

func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var params types.LoginParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	if _, err := h.client.Login(c.Context(), params.Email, params.Password); err != nil {
		return ErrUnAuthorized("invalid credentials")
	}
	return c.JSON(fiber.Map{"result": "ok"})
}

func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var params types.LoginParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	if err := h.client.Register(c.Context(), params.Email, params.Password); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"result": "registered"})
}

// HandleLogout clears the token and tears the local session down.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	h.client.ClearToken()
	h.session.Reset()
	return c.JSON(fiber.Map{"result": "ok"})
}
