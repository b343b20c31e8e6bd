package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/account"
	"github.com/darasahub/darasa/core/notice"
	"github.com/darasahub/darasa/core/school"
	"github.com/darasahub/darasa/core/setting"
	"github.com/darasahub/darasa/core/user"
	emailsvc "github.com/darasahub/darasa/services/email"
	logsvc "github.com/darasahub/darasa/services/logger"
	dummydb "github.com/darasahub/darasa/storage/database/dummy"
)

var (
	conf *core.Config

	usrRepo   user.Repository
	usrSvc    *user.Service
	schoolSvc *school.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func testConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		Build:            "test",
		AppName:          "Darasa",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultLang:      "en",
		DefaultFromEmail: mail.Address{Name: "Darasa", Address: "noreply@localhost"},

		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		InvitationTimeoutDelta:    7 * 24 * time.Hour,
		EmailConfirmTimeoutDelta:  3 * 24 * time.Hour,

		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      "8000",
			ShutdownTimeout:           5 * time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func setup(t *testing.T) *Server {
	t.Helper()

	conf = testConfig()

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewService(conf, usrRepo, mailSvc)
	schoolSvc = school.NewService(conf, dummydb.NewSchoolRepository(db))
	noticeSvc := notice.NewService(dummydb.NewNoticeRepository(db))
	accountSvc := account.NewService(dummydb.NewFeeRepository(db))
	settingSvc := setting.NewService(dummydb.NewSettingRepository(db))

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	logger.Enable(false)

	// set up server
	return NewServer(
		ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			SchoolSvc:  schoolSvc,
			NoticeSvc:  noticeSvc,
			AccountSvc: accountSvc,
			SettingSvc: settingSvc,
			Validate:   validate,
			Translator: translator,

			DisableReqLogs: true,
		},
	)
}

func createUser(t *testing.T, name, uname, email, pwd string, role user.Role, isActive bool) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  &isActive,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed, %v", err)
		}
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

func createSchool(t *testing.T, name, slug string, members ...user.User) school.School {
	t.Helper()

	sch, err := schoolSvc.Create(context.Background(), school.NewSchool{Name: name, Slug: slug})
	if err != nil {
		t.Fatalf("school.Create() failed, %v", err)
	}
	for _, m := range members {
		if _, err := schoolSvc.AddMember(context.Background(), m.ID, sch.ID, false); err != nil {
			t.Fatalf("school.AddMember() failed, %v", err)
		}
	}
	return sch
}

func createBranch(t *testing.T, sch school.School, name, code string) school.Branch {
	t.Helper()

	br, err := schoolSvc.CreateBranch(context.Background(), sch.ID, school.NewBranch{Name: name, Code: code})
	if err != nil {
		t.Fatalf("school.CreateBranch() failed, %v", err)
	}
	return br
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newCookieRequest attaches the token the way the browser does on a page
// navigation, via the auth cookie instead of a bearer header.
func newCookieRequest(method, path, token string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "darasa_token", Value: token})
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, usr user.User, sel ...school.Selection) string {
	t.Helper()

	s := school.Selection{}
	if len(sel) > 0 {
		s = sel[0]
	}
	claims := GetUserClaims(conf, usr, s)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func checkRedirect(t *testing.T, rec *httptest.ResponseRecorder, wantLocation string) {
	if rec.Code != http.StatusFound {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != wantLocation {
		t.Errorf("failed! Location = %s; want %s", loc, wantLocation)
	}
}
