package echoapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/darasahub/darasa/core/notice"
	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/user"
)

func postNotice(t *testing.T, app *Server, token string, data notice.NewNotice) notice.Notice {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/v1/notices", token, marchallObj(t, data))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating notice failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var ntc notice.Notice
	if err := json.Unmarshal(rec.Body.Bytes(), &ntc); err != nil {
		t.Fatalf("decoding Notice failed: %v", err)
	}
	return ntc
}

func noticeTitles(t *testing.T, app *Server, token string) []string {
	t.Helper()
	req, rec := newAuthRequest(http.MethodGet, "/v1/notices", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("querying notices failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var notices []notice.Notice
	if err := json.Unmarshal(rec.Body.Bytes(), &notices); err != nil {
		t.Fatalf("decoding []Notice failed: %v", err)
	}
	titles := make([]string, len(notices))
	for i, n := range notices {
		titles[i] = n.Title
	}
	sort.Strings(titles)
	return titles
}

func Test_noticeApi_requiresScopedToken(t *testing.T) {
	app := setup(t)

	staff := createUser(t, "Staff", "staffer", "staff@test.cd", "lol", user.RoleStaff, true)
	createSchool(t, "Mwanga High", "mwanga", staff)

	tests := []httpTest{
		{name: "anonymous", method: http.MethodGet, path: "/v1/notices",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "unscoped token", method: http.MethodGet, path: "/v1/notices", token: getToken(t, staff),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "no school selected"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_noticeApi_roleGates(t *testing.T) {
	app := setup(t)

	staff := createUser(t, "Staff", "staffer", "staff@test.cd", "lol", user.RoleStaff, true)
	student := createUser(t, "Student", "student", "student@test.cd", "lol", user.RoleStudent, true)
	admin := createUser(t, "Admin", "admin", "admin@test.cd", "lol", user.RoleAdmin, true)
	sch := createSchool(t, "Mwanga High", "mwanga", staff, student, admin)

	sel := school.Selection{SchoolID: sch.ID}
	staffToken := getToken(t, staff, sel)
	studentToken := getToken(t, student, sel)
	adminToken := getToken(t, admin, sel)

	t.Run("students cannot publish", func(t *testing.T) {
		body := marchallObj(t, notice.NewNotice{Title: "Hey", Body: "..."})
		req, rec := newAuthRequest(http.MethodPost, "/v1/notices", studentToken, body)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("title and body are required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notices", staffToken, marchallObj(t, notice.NewNotice{}))
		app.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field is required", "body": "this field is required"}`),
		}
		checkCodeAndData(t, tt, rec)
	})

	ntc := postNotice(t, app, staffToken, notice.NewNotice{Title: "Term opens", Body: "Classes resume Monday."})
	if ntc.SchoolID != sch.ID {
		t.Errorf("SchoolID = %s, want %s", ntc.SchoolID, sch.ID)
	}
	if ntc.CreatedBy != staff.ID {
		t.Errorf("CreatedBy = %s, want %s", ntc.CreatedBy, staff.ID)
	}
	if ntc.PublishedAt.IsZero() {
		t.Error("expected PublishedAt to default to now")
	}

	t.Run("staff updates", func(t *testing.T) {
		body := []byte(`{"body": "Classes resume Tuesday."}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/notices/"+ntc.ID, staffToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("update failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var updated notice.Notice
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("decoding Notice failed: %v", err)
		}
		if updated.Body != "Classes resume Tuesday." {
			t.Errorf("Body = %s", updated.Body)
		}
		if updated.Title != ntc.Title {
			t.Errorf("Title = %s, want it untouched", updated.Title)
		}
	})

	t.Run("only admin deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/notices/"+ntc.ID, staffToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("staff delete: code = %v, want %v", rec.Code, http.StatusForbidden)
		}

		req, rec = newAuthRequest(http.MethodDelete, "/v1/notices/"+ntc.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("admin delete: code = %v, want %v", rec.Code, http.StatusNoContent)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/notices/"+ntc.ID, staffToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("after delete: code = %v, want %v", rec.Code, http.StatusNotFound)
		}
	})
}

func Test_noticeApi_visibility(t *testing.T) {
	app := setup(t)

	staff := createUser(t, "Staff", "staffer", "staff@test.cd", "lol", user.RoleStaff, true)
	student := createUser(t, "Student", "student", "student@test.cd", "lol", user.RoleStudent, true)
	teacher := createUser(t, "Teacher", "teacher", "teacher@test.cd", "lol", user.RoleTeacher, true)
	sch := createSchool(t, "Mwanga High", "mwanga", staff, student, teacher)
	branch := createBranch(t, sch, "Main Campus", "main")

	staffToken := getToken(t, staff, school.Selection{SchoolID: sch.ID})
	past := time.Now().UTC().Add(-48 * time.Hour)

	postNotice(t, app, staffToken, notice.NewNotice{Title: "everyone", Body: "..."})
	postNotice(t, app, staffToken, notice.NewNotice{Title: "main campus only", Body: "...", BranchID: branch.ID})
	postNotice(t, app, staffToken, notice.NewNotice{
		Title: "students only", Body: "...", Audience: []user.Role{user.RoleStudent},
	})
	postNotice(t, app, staffToken, notice.NewNotice{
		Title: "expired", Body: "...", PublishedAt: past, ExpiresAt: past.Add(time.Hour),
	})
	postNotice(t, app, staffToken, notice.NewNotice{
		Title: "not yet published", Body: "...", PublishedAt: time.Now().UTC().Add(24 * time.Hour),
	})

	tests := []struct {
		name       string
		usr        user.User
		sel        school.Selection
		wantTitles []string
	}{
		{
			name: "student without a branch", usr: student,
			sel:        school.Selection{SchoolID: sch.ID},
			wantTitles: []string{"everyone", "students only"},
		},
		{
			name: "student on the main campus", usr: student,
			sel:        school.Selection{SchoolID: sch.ID, BranchID: branch.ID},
			wantTitles: []string{"everyone", "main campus only", "students only"},
		},
		{
			name: "teacher is not in the students audience", usr: teacher,
			sel:        school.Selection{SchoolID: sch.ID, BranchID: branch.ID},
			wantTitles: []string{"everyone", "main campus only"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := noticeTitles(t, app, getToken(t, tt.usr, tt.sel))
			want := append([]string(nil), tt.wantTitles...)
			sort.Strings(want)
			if len(got) != len(want) {
				t.Fatalf("titles = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("titles = %v, want %v", got, want)
				}
			}
		})
	}
}

func Test_noticeApi_crossSchoolIsolation(t *testing.T) {
	app := setup(t)

	staff := createUser(t, "Staff", "staffer", "staff@test.cd", "lol", user.RoleStaff, true)
	other := createUser(t, "Rival", "rival", "rival@test.cd", "lol", user.RoleStaff, true)
	sch := createSchool(t, "Mwanga High", "mwanga", staff)
	rival := createSchool(t, "Tumaini Academy", "tumaini", other)

	ntc := postNotice(t, app, getToken(t, staff, school.Selection{SchoolID: sch.ID}),
		notice.NewNotice{Title: "internal", Body: "..."})

	rivalToken := getToken(t, other, school.Selection{SchoolID: rival.ID})

	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/v1/notices/" + ntc.ID},
		{name: "update", method: http.MethodPut, path: "/v1/notices/" + ntc.ID, body: []byte(`{"title": "defaced"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, rivalToken, tt.body)
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusNotFound {
				t.Errorf("code = %v, want %v", rec.Code, http.StatusNotFound)
			}
		})
	}

	t.Run("rival school's feed is empty", func(t *testing.T) {
		if titles := noticeTitles(t, app, rivalToken); len(titles) != 0 {
			t.Errorf("titles = %v, want none", titles)
		}
	})
}
