package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hospmaint/os-manager/internal/perm"
	"github.com/hospmaint/os-manager/internal/repository"
	"github.com/hospmaint/os-manager/internal/service"
)

// actor reads the identity stored by the JWT middleware. The bool is
// false when the request somehow reached a handler without it.
func actor(c echo.Context) (service.Actor, bool) {
	id, ok := c.Get("user_id").(uint64)
	if !ok || id == 0 {
		return service.Actor{}, false
	}
	role, _ := c.Get("role").(string)
	return service.Actor{UserID: id, Role: perm.Role(role)}, true
}

// writeServiceError maps domain errors onto HTTP responses. Anything
// unrecognized becomes a 500 without leaking internals.
func writeServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, service.ErrDenied):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate value"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
