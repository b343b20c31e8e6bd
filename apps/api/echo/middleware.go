package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core/user"
)

// roleMiddleware gates a JSON API endpoint on role membership; unlike the
// page guards it answers 403 instead of redirecting.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	permitted := user.NewRoleSet(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			role, err := claims.Role()
			if err != nil {
				return errHttpForbidden
			}
			if permitted.IsEmpty() || permitted.Contains(role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

// schoolMiddleware requires the token to be scoped to a selected school and
// stashes the selection for handlers.
func schoolMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.Selection().HasSchool() {
				return errNoSchoolSelected
			}
			ctx.Set(contextSelectionKey, claims.Selection())
			return next(ctx)
		}
	}
}

const contextSelectionKey = "selection"
