package echoapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/user"
)

// Guard outcomes. A guard never errors: every navigation resolves to either
// rendering the page or one terminal redirect, so an unauthorized visitor can
// never see even a flash of the target page.
type guardOutcome int

const (
	outcomeAllow guardOutcome = iota
	outcomeRedirectSignIn
	outcomeRedirectRoleHome
	outcomeRedirectSelectSchool
)

type guardDecision struct {
	outcome  guardOutcome
	location string // redirect target; empty on allow
}

func (d guardDecision) allowed() bool { return d.outcome == outcomeAllow }

func signInPath(lang, returnTo string) string {
	q := make(url.Values)
	q.Set("returnTo", returnTo)
	return "/" + lang + "/sign-in?" + q.Encode()
}

func selectSchoolPath(lang, returnTo string) string {
	q := make(url.Values)
	q.Set("returnTo", returnTo)
	return "/" + lang + "/select-school?" + q.Encode()
}

// decideAuth gates a page by principal identity and role membership.
//
// No principal redirects to sign-in with the requested path preserved. An
// authenticated principal whose role is outside the permitted set is sent to
// that role's default landing route, not to sign-in. An empty permitted set
// means every known role. A role id that does not parse against the closed
// enumeration authorizes no page and lands on the app root.
func decideAuth(claims *Claims, permitted user.RoleSet, lang, path string) guardDecision {
	if claims == nil {
		return guardDecision{outcomeRedirectSignIn, signInPath(lang, path)}
	}

	role, err := claims.Role()
	if err != nil {
		return guardDecision{outcomeRedirectRoleHome, "/" + lang}
	}
	if !permitted.IsEmpty() && !permitted.Contains(role) {
		return guardDecision{outcomeRedirectRoleHome, role.DefaultRoute(lang)}
	}
	return guardDecision{outcome: outcomeAllow}
}

// decideSchool gates a page on "a school is currently selected".
// An unauthenticated visitor is left to the auth guard.
func decideSchool(claims *Claims, lang, path string) guardDecision {
	if claims == nil {
		return guardDecision{outcome: outcomeAllow}
	}
	if !claims.Selection().HasSchool() {
		return guardDecision{outcomeRedirectSelectSchool, selectSchoolPath(lang, path)}
	}
	return guardDecision{outcome: outcomeAllow}
}

// pageAuthGuard wraps a page route with the auth guard. With no roles given,
// any authenticated principal passes.
func pageAuthGuard(conf *core.Config, roles ...user.Role) echo.MiddlewareFunc {
	permitted := user.NewRoleSet(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims := extractClaims(ctx, conf)
			decision := decideAuth(claims, permitted, pageLang(ctx, conf), ctx.Request().URL.Path)
			if !decision.allowed() {
				return ctx.Redirect(http.StatusFound, decision.location)
			}
			ctx.Set(contextPageClaimsKey, claims)
			return next(ctx)
		}
	}
}

// pageSchoolGuard wraps a page route with the school guard. Composable with
// pageAuthGuard, auth guard outermost.
func pageSchoolGuard(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, ok := ctx.Get(contextPageClaimsKey).(*Claims)
			if !ok {
				claims = extractClaims(ctx, conf)
			}
			decision := decideSchool(claims, pageLang(ctx, conf), ctx.Request().URL.Path)
			if !decision.allowed() {
				return ctx.Redirect(http.StatusFound, decision.location)
			}
			return next(ctx)
		}
	}
}

const contextPageClaimsKey = "pageClaims"

var supportedLangs = map[string]bool{"en": true, "fr": true, "sw": true}

func pageLang(ctx echo.Context, conf *core.Config) string {
	if lang := ctx.Param("lang"); supportedLangs[lang] {
		return lang
	}
	return conf.DefaultLang
}
