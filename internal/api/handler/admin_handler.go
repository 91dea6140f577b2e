package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/botforge/miniapp-system/internal/core/ports"
)

// AdminHandler exposes role-guarded operational endpoints.
type AdminHandler struct {
	roles ports.RoleAuthority
}

func NewAdminHandler(roles ports.RoleAuthority) *AdminHandler {
	return &AdminHandler{roles: roles}
}

// Status is a trivial admin-gated probe; reaching it proves the caller
// holds at least the admin role.
//
// @Summary      Admin status
// @Tags         admin
// @Router       /admin/status [get]
func (h *AdminHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// SyncRoles forces an owner-role reconciliation outside the periodic
// schedule. Owner-gated.
//
// @Summary      Reconcile owner roles now
// @Tags         admin
// @Router       /admin/roles/sync [post]
func (h *AdminHandler) SyncRoles(c echo.Context) error {
	if err := h.roles.SyncOwnerRoles(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "synced"})
}
