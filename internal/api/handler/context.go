package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/esig/task-manager/internal/api/middleware"
	"github.com/esig/task-manager/internal/core/domain"
)

// principalFrom returns the caller attached by the auth filter. RequireAuth
// normally rejects anonymous requests before they get here; the check keeps
// handlers safe when mounted without it.
func principalFrom(c echo.Context) (*domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}
