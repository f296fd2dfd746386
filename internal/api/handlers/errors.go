package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/engagement-compliance/internal/repository"
	apperrors "github.com/acme/engagement-compliance/pkg/errors"
)

// translateError maps service errors onto HTTP statuses. Anything unmapped
// is returned as-is and reported as a 500 by ErrorHandler.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "resource not found")
	case errors.Is(err, repository.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(http.StatusGatewayTimeout, "upstream timeout")
	default:
		return err
	}
}
