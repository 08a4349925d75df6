package workspaces

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/plugins/auth"
)

// contextKeyWorkspace is the Echo context key for workspace context data.
const contextKeyWorkspace = "workspace_context"

// RequireWorkspaceAccess resolves the workspace from the :id parameter and
// the caller's role in it. Unrelated users get 403; an unknown workspace
// gets 404.
//
// Must be applied AFTER auth.RequireAuth.
func RequireWorkspaceAccess(service WorkspaceService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			workspaceID := c.Param("id")
			if workspaceID == "" {
				return apperror.NewBadRequest("workspace ID is required")
			}

			userID := auth.GetUserID(c)
			if userID == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			ctx := c.Request().Context()
			ws, err := service.GetByID(ctx, workspaceID)
			if err != nil {
				return err
			}

			role, err := service.RoleOf(ctx, workspaceID, userID)
			if err != nil {
				return err
			}
			if role < RoleMember {
				return apperror.NewForbidden("you are not a member of this workspace")
			}

			c.Set(contextKeyWorkspace, &WorkspaceContext{Workspace: ws, Role: role})
			return next(c)
		}
	}
}

// RequireRole rejects callers below minRole with 403. Must be applied
// AFTER RequireWorkspaceAccess.
func RequireRole(minRole Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			wc := GetWorkspaceContext(c)
			if wc == nil {
				return apperror.NewInternal(fmt.Errorf("RequireRole used without RequireWorkspaceAccess"))
			}
			if wc.Role < minRole {
				return apperror.NewForbidden("insufficient permissions")
			}
			return next(c)
		}
	}
}

// GetWorkspaceContext retrieves the resolved workspace from the Echo
// context, or nil outside RequireWorkspaceAccess.
func GetWorkspaceContext(c echo.Context) *WorkspaceContext {
	wc, ok := c.Get(contextKeyWorkspace).(*WorkspaceContext)
	if !ok {
		return nil
	}
	return wc
}
