package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runWithRoles(roles []string, required ...string) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	c := e.NewContext(req, httptest.NewRecorder())

	h := RequireRole(required...)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return h(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		required []string
		allowed  bool
	}{
		{"matching role", []string{RoleSurgeon}, []string{RoleSurgeon, RoleScheduler}, true},
		{"admin passes", []string{RoleAdmin}, []string{RoleScheduler}, true},
		{"nurse cannot write", []string{RoleNurse}, []string{RoleSurgeon, RoleScheduler}, false},
		{"no roles", nil, []string{RoleNurse}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runWithRoles(tt.roles, tt.required...)
			if tt.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.allowed {
				httpErr, ok := err.(*echo.HTTPError)
				if !ok || httpErr.Code != http.StatusForbidden {
					t.Fatalf("expected 403, got %v", err)
				}
			}
		})
	}
}

func TestHasRole_Groups(t *testing.T) {
	if !HasRole([]string{RoleNurse}, ViewRoles...) {
		t.Error("expected nurse to view")
	}
	if HasRole([]string{RoleNurse}, BookRoles...) {
		t.Error("did not expect nurse to book")
	}
	if !HasRole([]string{RoleAdmin}, BookRoles...) {
		t.Error("expected admin to book")
	}
	if HasRole([]string{RoleScheduler}, CatalogRoles...) {
		t.Error("did not expect scheduler to edit the catalog")
	}
}
