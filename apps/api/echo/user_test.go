package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/darasahub/darasa/core/user"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "lol", user.RoleAdmin, true)
	student := createUser(t, "Student", "student", "student@test.cd", "lol", user.RoleStudent, true)
	createUser(t, "Gone", "deactivated", "gone@test.cd", "lol", user.RoleUser, false)

	tests := []httpTest{
		{
			name: "username and password are required", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "this field is required", "password": "this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "lol", Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: admin.Username, Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "deactivated", Password: "lol"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	login := func(t *testing.T, uname, pwd string) (LoginResponse, []*http.Cookie) {
		t.Helper()
		req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: uname, Password: pwd}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("login failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding LoginResponse failed: %v", err)
		}
		return resp, rec.Result().Cookies()
	}

	t.Run("login lands each role on its home", func(t *testing.T) {
		resp, cookies := login(t, admin.Username, "lol")
		if resp.Token == "" {
			t.Error("expected a token")
		}
		if resp.DefaultRoute != "/en/admin-panel" {
			t.Errorf("DefaultRoute = %s, want /en/admin-panel", resp.DefaultRoute)
		}
		var cookieSet bool
		for _, c := range cookies {
			if c.Name == "darasa_token" && c.Value == resp.Token && c.HttpOnly {
				cookieSet = true
			}
		}
		if !cookieSet {
			t.Error("expected the token in an HttpOnly auth cookie")
		}

		resp, _ = login(t, student.Email, "lol") // email works as an alias
		if resp.DefaultRoute != "/en/student-portal" {
			t.Errorf("DefaultRoute = %s, want /en/student-portal", resp.DefaultRoute)
		}
	})

	t.Run("a fresh login is unscoped", func(t *testing.T) {
		resp, _ := login(t, admin.Username, "lol")

		// the portal page guard sends the fresh token to the wizard
		req, rec := newCookieRequest(http.MethodGet, "/en/admin-panel", resp.Token)
		app.ServeHTTP(rec, req)
		checkRedirect(t, rec, "/en/select-school?returnTo=%2Fen%2Fadmin-panel")
	})
}

func Test_userApi_tokenRefreshAndLogout(t *testing.T) {
	app := setup(t)

	usr := createUser(t, "Teacher", "teacher", "teacher@test.cd", "lol", user.RoleTeacher, true)
	token := getToken(t, usr)

	t.Run("refresh", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("refresh failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding LoginResponse failed: %v", err)
		}
		if resp.Token == "" {
			t.Error("expected a token")
		}
	})

	t.Run("refresh requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/token-refresh")
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("logout clears the cookie", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/logout", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("logout failed! code = %v", rec.Code)
		}
		var cleared bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == "darasa_token" && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Error("expected the auth cookie to be expired")
		}
	})
}

func Test_userApi_adminOnlyEndpoints(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "lol", user.RoleAdmin, true)
	staff := createUser(t, "Staff", "staffer", "staff@test.cd", "lol", user.RoleStaff, true)
	adminToken := getToken(t, admin)
	staffToken := getToken(t, staff)

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "query: anon", method: http.MethodGet, path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "query: staff", method: http.MethodGet, path: "/v1/users", token: staffToken,
			wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "query: admin", method: http.MethodGet, path: "/v1/users", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, admin, staff)},
		{name: "register: staff", method: http.MethodPost, path: "/v1/users/register", token: staffToken,
			wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "invite: staff", method: http.MethodPost, path: "/v1/users/invite", token: staffToken,
			wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "roles: admin", method: http.MethodGet, path: "/v1/users/roles", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, user.AllRoles)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin", "admin@test.cd", "lol", user.RoleAdmin, true)
	staff := createUser(t, "Staff", "staffer", "staff@test.cd", "lol", user.RoleStaff, true)
	adminToken := getToken(t, admin)
	staffToken := getToken(t, staff)

	t.Run("own record is visible", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+staff.ID, staffToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, staff)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("someone else's record is not", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+admin.ID, staffToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v, want %v", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("non-admin cannot touch role or activation", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Role: user.RoleAdmin})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+staff.ID, staffToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v, want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("non-admin updates own name", func(t *testing.T) {
		body := []byte(`{"name": "Better Name"}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+staff.ID, staffToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("update failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var updated user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("decoding User failed: %v", err)
		}
		if updated.Name != "Better Name" {
			t.Errorf("Name = %s, want Better Name", updated.Name)
		}
	})

	t.Run("no self delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v, want %v", rec.Code, http.StatusForbidden)
		}

		req, rec = newAuthRequest(http.MethodDelete, "/v1/users?id="+admin.ID+"&id="+staff.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("bulk: code = %v, want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("admin deletes another user", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+staff.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %v, want %v", rec.Code, http.StatusNoContent)
		}
	})
}
