package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"singalong/internal/services"
)

// Error codes carried in the error envelope.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeTimeout         = "TIMEOUT"
	CodeUnavailable     = "UNAVAILABLE"
	CodeServiceError    = "SERVICE_ERROR"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeError(c *fiber.Ctx, status int, code, message string, details map[string]string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

func validationError(c *fiber.Ctx, message string, details map[string]string) error {
	return writeError(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func notFound(c *fiber.Ctx, message string) error {
	return writeError(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

// serviceError classifies err through the services markers.
func serviceError(c *fiber.Ctx, err error) error {
	status := services.HTTPStatus(err)
	return writeError(c, status, codeForStatus(status), err.Error(), nil)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return CodeValidationError
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusConflict:
		return CodeConflict
	case fiber.StatusGatewayTimeout:
		return CodeTimeout
	case fiber.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeServiceError
	}
}

func formatValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	out := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		out[e.Field()] = e.Tag()
	}
	return out
}

// errorHandler renders errors returned from handlers and fiber itself.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return writeError(c, fe.Code, codeForStatus(fe.Code), fe.Message, nil)
	}
	return serviceError(c, err)
}
