package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Business-rule sentinels. Handlers translate these into client-visible
// statuses via respondError; internals never leak to non-admin callers.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// apiError carries a sentinel kind plus a human-readable message.
type apiError struct {
	kind error
	msg  string
}

func (e *apiError) Error() string { return e.msg }
func (e *apiError) Unwrap() error { return e.kind }

// fail wraps a sentinel with a message suitable for the client.
func fail(kind error, msg string) error {
	return &apiError{kind: kind, msg: msg}
}

// respondError maps a service error onto the standard
// {"error": ..., "kind": ...} JSON response.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.Is(err, ErrNotFound):
		status, kind = fiber.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidState):
		status, kind = fiber.StatusConflict, "invalid_state"
	case errors.Is(err, ErrInsufficientFunds):
		status, kind = fiber.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, ErrValidation):
		status, kind = fiber.StatusBadRequest, "validation_error"
	case errors.Is(err, ErrConflict):
		status, kind = fiber.StatusConflict, "conflict"
	case errors.Is(err, ErrUnauthorized):
		status, kind = fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		status, kind = fiber.StatusForbidden, "forbidden"
	default:
		log.Printf("❌ internal error: %v", err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error", "kind": kind})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "kind": kind})
}
