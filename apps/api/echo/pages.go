package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

// registerPages mounts the server-rendered portal shells under /:lang.
//
// Every protected page sits behind the auth guard; the portal pages
// additionally sit behind the school guard, auth guard outermost, so an
// unauthorized navigation is answered with a redirect before any content.
func registerPages(app *echo.Echo, conf *core.Config) {
	lg := app.Group("/:lang")

	// public pages
	lg.GET("/sign-in", pageShell("sign-in"))
	lg.GET("/password-reset", pageShell("password-reset"))
	lg.GET("/password-reset-confirm", pageShell("password-reset-confirm"))
	lg.GET("/confirm-email", pageShell("confirm-email"))
	lg.GET("/accept-invitation", pageShell("accept-invitation"))

	// the selection wizard needs a principal but, by definition, no school yet
	lg.GET("/select-school", pageShell("select-school"), pageAuthGuard(conf))

	// role-gated portals
	admin := lg.Group("/admin-panel", pageAuthGuard(conf, user.RoleAdmin), pageSchoolGuard(conf))
	admin.GET("", pageShell("admin-panel"))
	admin.GET("/*", pageShell("admin-panel"))

	student := lg.Group("/student-portal", pageAuthGuard(conf, user.RoleStudent, user.RoleParent), pageSchoolGuard(conf))
	student.GET("", pageShell("student-portal"))
	student.GET("/*", pageShell("student-portal"))

	staff := lg.Group("/staff-portal", pageAuthGuard(conf, user.RoleTeacher, user.RoleStaff, user.RoleAccountant), pageSchoolGuard(conf))
	staff.GET("", pageShell("staff-portal"))
	staff.GET("/*", pageShell("staff-portal"))
}

// pageShell serves the minimal HTML document that boots the portal page;
// the actual content is fetched from the /v1 API by the page itself.
func pageShell(page string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.HTML(http.StatusOK,
			`<!DOCTYPE html><html lang="`+ctx.Param("lang")+`"><head><title>Darasa</title></head>`+
				`<body><div id="app" data-page="`+page+`"></div></body></html>`)
	}
}
