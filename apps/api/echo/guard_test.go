package echoapi

import (
	"net/http"
	"testing"

	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/user"
)

func Test_pageAuthGuard_redirectsAnonymousToSignIn(t *testing.T) {
	app := setup(t)

	tests := []struct {
		name         string
		path         string
		wantLocation string
	}{
		{
			name:         "admin panel",
			path:         "/en/admin-panel",
			wantLocation: "/en/sign-in?returnTo=%2Fen%2Fadmin-panel",
		},
		{
			name:         "deep link keeps the full path",
			path:         "/en/admin-panel/users",
			wantLocation: "/en/sign-in?returnTo=%2Fen%2Fadmin-panel%2Fusers",
		},
		{
			name:         "student portal",
			path:         "/fr/student-portal",
			wantLocation: "/fr/sign-in?returnTo=%2Ffr%2Fstudent-portal",
		},
		{
			name:         "select school needs a principal too",
			path:         "/en/select-school",
			wantLocation: "/en/sign-in?returnTo=%2Fen%2Fselect-school",
		},
		{
			name:         "unsupported lang falls back to the default",
			path:         "/xx/staff-portal",
			wantLocation: "/en/sign-in?returnTo=%2Fxx%2Fstaff-portal",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newCookieRequest(http.MethodGet, tt.path, "")
			app.ServeHTTP(rec, req)
			checkRedirect(t, rec, tt.wantLocation)
		})
	}
}

func Test_pageAuthGuard_redirectsWrongRoleToTheirHome(t *testing.T) {
	app := setup(t)

	student := createUser(t, "Student", "student", "student@test.cd", "lol", user.RoleStudent, true)
	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "lol", user.RoleTeacher, true)
	admin := createUser(t, "Admin", "admin", "admin@test.cd", "lol", user.RoleAdmin, true)

	tests := []struct {
		name         string
		path         string
		usr          user.User
		wantLocation string
	}{
		{name: "student on admin panel", path: "/en/admin-panel", usr: student, wantLocation: "/en/student-portal"},
		{name: "student on staff portal", path: "/en/staff-portal", usr: student, wantLocation: "/en/student-portal"},
		{name: "teacher on admin panel", path: "/en/admin-panel/users", usr: teacher, wantLocation: "/en/staff-portal"},
		{name: "admin on student portal", path: "/en/student-portal", usr: admin, wantLocation: "/en/admin-panel"},
		{name: "lang is preserved", path: "/sw/admin-panel", usr: student, wantLocation: "/sw/student-portal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newCookieRequest(http.MethodGet, tt.path, getToken(t, tt.usr))
			app.ServeHTTP(rec, req)
			checkRedirect(t, rec, tt.wantLocation)
		})
	}
}

func Test_pageAuthGuard_unknownRoleLandsOnAppRoot(t *testing.T) {
	app := setup(t)

	// a token with a role id outside the enumeration authorizes no page
	usr := createUser(t, "Admin", "admin", "admin@test.cd", "lol", user.RoleAdmin, true)
	usr.Role = user.Role(42)

	req, rec := newCookieRequest(http.MethodGet, "/en/admin-panel", getToken(t, usr))
	app.ServeHTTP(rec, req)
	checkRedirect(t, rec, "/en")
}

func Test_pageSchoolGuard_redirectsToSelectSchool(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "lol", user.RoleAdmin, true)
	sch := createSchool(t, "Mont Amba", "mont_amba", admin)

	t.Run("no school selected", func(t *testing.T) {
		req, rec := newCookieRequest(http.MethodGet, "/en/admin-panel", getToken(t, admin))
		app.ServeHTTP(rec, req)
		checkRedirect(t, rec, "/en/select-school?returnTo=%2Fen%2Fadmin-panel")
	})

	t.Run("school selected", func(t *testing.T) {
		token := getToken(t, admin, school.Selection{SchoolID: sch.ID})
		req, rec := newCookieRequest(http.MethodGet, "/en/admin-panel", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
	})

	t.Run("select school page passes without a selection", func(t *testing.T) {
		req, rec := newCookieRequest(http.MethodGet, "/en/select-school", getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
	})
}

func Test_pageAuthGuard_acceptsBearerHeader(t *testing.T) {
	app := setup(t)

	student := createUser(t, "Student", "student", "student@test.cd", "lol", user.RoleStudent, true)
	sch := createSchool(t, "Mont Amba", "mont_amba", student)
	token := getToken(t, student, school.Selection{SchoolID: sch.ID})

	req, rec := newAuthRequest(http.MethodGet, "/en/student-portal", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
}

func Test_pageAuthGuard_garbageTokenIsAnonymous(t *testing.T) {
	app := setup(t)

	req, rec := newCookieRequest(http.MethodGet, "/en/admin-panel", "not-a-jwt")
	app.ServeHTTP(rec, req)
	checkRedirect(t, rec, "/en/sign-in?returnTo=%2Fen%2Fadmin-panel")
}

func Test_publicPagesNeedNoAuth(t *testing.T) {
	app := setup(t)

	for _, path := range []string{
		"/en/sign-in",
		"/en/password-reset",
		"/fr/confirm-email",
		"/sw/accept-invitation",
	} {
		t.Run(path, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, path)
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
			}
		})
	}
}
