package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknotes/internal/handler"
	"tasknotes/internal/model"
	"tasknotes/internal/service/auth"
	"tasknotes/internal/service/task"
	"tasknotes/internal/validation"
	"tasknotes/pkg/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthn struct{}

func (fakeAuthn) Authenticate(_ context.Context, token string) (*util.Claims, error) {
	switch token {
	case "user-token":
		c := &util.Claims{UserID: 1, Role: "user"}
		c.ID = "jti-user"
		return c, nil
	case "viewer-token":
		c := &util.Claims{UserID: 2, Role: "viewer"}
		c.ID = "jti-viewer"
		return c, nil
	}
	return nil, auth.ErrUnauthenticated
}

type fakeAuthService struct{ loggedOut []string }

func (f *fakeAuthService) Register(_ context.Context, in auth.RegisterInput) (*auth.Session, error) {
	if in.Email == "" {
		errs := validation.NewErrors()
		errs.Add("email", "The email field is required.")
		return nil, errs
	}
	return &auth.Session{User: &model.User{ID: 3, Name: in.Name, Email: in.Email, Role: "user"}, Token: "t"}, nil
}

func (f *fakeAuthService) Login(context.Context, auth.LoginInput) (*auth.Session, error) {
	errs := validation.NewErrors()
	errs.Add("email", "The provided credentials are incorrect.")
	return nil, errs
}

func (f *fakeAuthService) Logout(_ context.Context, claims *util.Claims) error {
	f.loggedOut = append(f.loggedOut, claims.ID)
	return nil
}

type fakeTaskService struct {
	createErr error
	creates   []task.CreateTaskInput
	lists     []task.ListTasksInput
	tasks     []model.Task
}

func (f *fakeTaskService) Create(_ context.Context, in task.CreateTaskInput) (*model.Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.creates = append(f.creates, in)
	return &model.Task{ID: int64(len(f.creates))}, nil
}

func (f *fakeTaskService) List(_ context.Context, in task.ListTasksInput) ([]model.Task, error) {
	f.lists = append(f.lists, in)
	if in.Status == "bogus" {
		errs := validation.NewErrors()
		errs.Add("filter.status", "The selected filter.status is invalid.")
		return nil, errs
	}
	return f.tasks, nil
}

type testServer struct {
	engine *gin.Engine
	tasks  *fakeTaskService
	auth   *fakeAuthService
}

func newTestServer(checks ...ReadyCheck) *testServer {
	ts := &testServer{tasks: &fakeTaskService{}, auth: &fakeAuthService{}}
	log := zap.NewNop()
	ts.engine = NewRouter(RouterConfig{
		AuthHandler:   handler.NewAuthHandler(ts.auth, log),
		TaskHandler:   handler.NewTaskHandler(ts.tasks, log),
		Authenticator: fakeAuthn{},
		ReadyChecks:   checks,
		Logger:        log,
	})
	return ts
}

func (ts *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}

const createJSON = `{
	"subject": "Report", "description": "Q3", "start_date": "01-10-2024", "due_date": "22-10-2024",
	"status": "new", "priority": "high",
	"notes": [{"subject": "s", "note": "n", "attachments": [{"filename": "a.txt", "content": "aGk="}]}]
}`

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer()

	for _, tc := range []struct{ method, path, token string }{
		{http.MethodPost, "/tasks/create", ""},
		{http.MethodGet, "/tasks", ""},
		{http.MethodPost, "/tasks/create", "forged"},
		{http.MethodPost, "/logout", ""},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(createJSON))
		req.Header.Set("Content-Type", "application/json")
		w := ts.do(req, tc.token)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.path, w.Code)
		}
	}
	if len(ts.tasks.creates) != 0 || len(ts.tasks.lists) != 0 {
		t.Fatal("service reached without authentication")
	}
}

func TestViewerCannotCreate(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/tasks/create", strings.NewReader(createJSON))
	req.Header.Set("Content-Type", "application/json")

	if w := ts.do(req, "viewer-token"); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if w := ts.do(httptest.NewRequest(http.MethodGet, "/tasks", nil), "viewer-token"); w.Code != http.StatusOK {
		t.Fatalf("viewer list status = %d, want 200", w.Code)
	}
}

func TestCreateTaskJSON(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/tasks/create", strings.NewReader(createJSON))
	req.Header.Set("Content-Type", "application/json")

	w := ts.do(req, "user-token")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	body := decode(t, w)
	if body["success"] != true || body["message"] != "Task created successfully with associated notes and attachments." {
		t.Fatalf("body = %v", body)
	}
	in := ts.tasks.creates[0]
	if in.UserID != 1 || in.Subject != "Report" || len(in.Notes) != 1 || in.Notes[0].Attachments[0].Size != 2 {
		t.Fatalf("input = %+v", in)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("missing trace id header")
	}
}

func TestCreateTaskMultipart(t *testing.T) {
	ts := newTestServer()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"subject": "Report", "description": "Q3", "start_date": "01-10-2024", "due_date": "22-10-2024",
		"status": "new", "priority": "medium", "notes[0][subject]": "s", "notes[0][note]": "n",
	} {
		_ = mw.WriteField(k, v)
	}
	for i := 0; i < 2; i++ {
		fw, _ := mw.CreateFormFile("notes[0][attachments][]", fmt.Sprintf("f%d.txt", i))
		_, _ = fw.Write([]byte("data"))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/tasks/create", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := ts.do(req, "user-token")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	in := ts.tasks.creates[0]
	if in.Priority != "medium" || len(in.Notes) != 1 || len(in.Notes[0].Attachments) != 2 {
		t.Fatalf("input = %+v", in)
	}
	if in.Notes[0].Attachments[0].Filename != "f0.txt" || in.Notes[0].Attachments[1].Filename != "f1.txt" {
		t.Errorf("attachments out of order: %+v", in.Notes[0].Attachments)
	}
}

func TestCreateTaskValidationError(t *testing.T) {
	ts := newTestServer()
	errs := validation.NewErrors()
	errs.Add("subject", "The subject field is required.")
	ts.tasks.createErr = errs

	req := httptest.NewRequest(http.MethodPost, "/tasks/create", strings.NewReader(createJSON))
	req.Header.Set("Content-Type", "application/json")
	w := ts.do(req, "user-token")

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["message"] != "The subject field is required." {
		t.Errorf("message = %v", body["message"])
	}
	fields := body["errors"].(map[string]any)
	if len(fields) != 1 || fields["subject"] == nil {
		t.Errorf("errors = %v", fields)
	}
}

func TestCreateTaskFailure(t *testing.T) {
	ts := newTestServer()
	ts.tasks.createErr = fmt.Errorf("%w: persist: boom", task.ErrCreateFailed)

	req := httptest.NewRequest(http.MethodPost, "/tasks/create", strings.NewReader(createJSON))
	req.Header.Set("Content-Type", "application/json")
	w := ts.do(req, "user-token")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["success"] != false || body["message"] != "An error occurred while creating the task and notes." {
		t.Fatalf("body = %v", body)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Fatal("internal error leaked to client")
	}
}

func TestGetTasksFilters(t *testing.T) {
	ts := newTestServer()
	ts.tasks.tasks = []model.Task{{ID: 9, Subject: "x", Notes: []model.Note{}}}

	req := httptest.NewRequest(http.MethodGet, "/tasks?filter[status]=new&filter[priority]=high&filter[due_date]=22-10-2024", nil)
	w := ts.do(req, "user-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := task.ListTasksInput{Status: "new", Priority: "high", DueDate: "22-10-2024"}
	if ts.tasks.lists[0] != want {
		t.Errorf("list input = %+v", ts.tasks.lists[0])
	}
	body := decode(t, w)
	if body["success"] != true || len(body["tasks"].([]any)) != 1 {
		t.Fatalf("body = %v", body)
	}
}

func TestGetTasksEmptyIsArray(t *testing.T) {
	ts := newTestServer()
	w := ts.do(httptest.NewRequest(http.MethodGet, "/tasks", nil), "user-token")
	if !strings.Contains(w.Body.String(), `"tasks":[]`) {
		t.Fatalf("body = %s", w.Body)
	}
}

func TestGetTasksBadFilter(t *testing.T) {
	ts := newTestServer()
	w := ts.do(httptest.NewRequest(http.MethodGet, "/tasks?filter[status]=bogus", nil), "user-token")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAuthRoutes(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"name":"Ada","email":"ada@example.com","password":"Test@123","password_confirmation":"Test@123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := ts.do(req, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}
	body := decode(t, w)
	if body["token"] != "t" || body["user"].(map[string]any)["email"] != "ada@example.com" {
		t.Fatalf("register body = %v", body)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatal("password hash serialized")
	}

	w = ts.do(httptest.NewRequest(http.MethodPost, "/register", nil), "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty register status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"ada@example.com","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := ts.do(req, ""); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("login status = %d", w.Code)
	}

	w = ts.do(httptest.NewRequest(http.MethodPost, "/logout", nil), "user-token")
	if w.Code != http.StatusOK || decode(t, w)["message"] != "Successfully logged out." {
		t.Fatalf("logout = %d %s", w.Code, w.Body)
	}
	if len(ts.auth.loggedOut) != 1 || ts.auth.loggedOut[0] != "jti-user" {
		t.Fatalf("logged out = %v", ts.auth.loggedOut)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(ReadyCheck{Name: "db", Check: func(context.Context) error { return errors.New("down") }})

	if w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), ""); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	w := ts.do(httptest.NewRequest(http.MethodGet, "/readyz", nil), "")
	if w.Code != http.StatusServiceUnavailable || decode(t, w)["status"] != "db_not_ready" {
		t.Fatalf("readyz = %d %s", w.Code, w.Body)
	}

	ok := newTestServer(ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }})
	if w := ok.do(httptest.NewRequest(http.MethodGet, "/readyz", nil), ""); w.Code != http.StatusOK {
		t.Fatalf("readyz = %d", w.Code)
	}
}
