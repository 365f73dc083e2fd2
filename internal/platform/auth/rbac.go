package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Role groups for the OT routes.
var (
	// ViewRoles may read rooms, slot occupancy and allocations.
	ViewRoles = []string{RoleSurgeon, RoleNurse, RoleScheduler}
	// BookRoles may create, change and cancel allocations.
	BookRoles = []string{RoleSurgeon, RoleScheduler}
	// CatalogRoles may change rooms and slot templates.
	CatalogRoles = []string{RoleAdmin}
)

// HasRole reports whether granted covers any of want. Admin covers all.
func HasRole(granted []string, want ...string) bool {
	for _, g := range granted {
		if g == RoleAdmin {
			return true
		}
		for _, w := range want {
			if g == w {
				return true
			}
		}
	}
	return false
}

// RequireRole answers 403 unless the caller holds one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	need := strings.Join(roles, " or ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, "requires role "+need)
		}
	}
}
