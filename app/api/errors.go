package api

import (
	"errors"

	"geodoc/app/upload"
	"geodoc/backend"
	"geodoc/types"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	if ApiError, ok := err.(Error); ok {
		return c.Status(ApiError.Code).JSON(ApiError)
	}
	if ValError, ok := err.(types.ValidationError); ok {
		return c.Status(ValError.Status).JSON(ValError)
	}

	var uploadErr *upload.ValidationError
	if errors.As(err, &uploadErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"reason": uploadErr.Reason,
			"error":  uploadErr.Message,
		})
	}

	var backendErr *backend.APIError
	if errors.As(err, &backendErr) {
		// Diagnostic detail stays in the log, the client gets a short
		// generic message.
		return c.Status(fiber.StatusBadGateway).JSON(Error{
			Code:    fiber.StatusBadGateway,
			Message: "request to document service failed",
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, err.Error()))
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func NewValidationError(errors map[string]string) types.ValidationError {
	return types.NewValidationError(errors)
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrUnAuthorized(msg string) Error {
	return Error{
		Code:    fiber.StatusUnauthorized,
		Message: msg,
	}
}
