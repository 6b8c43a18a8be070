package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/repository/repotest"
	"github.com/spec-kit/task-service/internal/service"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []fieldError    `json:"errors"`
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app    *fiber.App
	users  *repotest.Users
	tasks  *repotest.Tasks
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, database, cache handlers.Pinger) *testServer {
	t.Helper()
	users := repotest.NewUsers()
	tasks := repotest.NewTasks(users)
	revocations := repotest.NewRevocations()

	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "router-test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, service.AuthDependencies{UserRepo: users, Revocation: revocations})
	taskService := service.NewTaskService(tasks, nil)
	metrics := observability.NewMetrics("task_service_test")

	app := NewApp("task-service-test")
	RegisterMiddlewares(app, MiddlewareConfig{Metrics: metrics})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("task-service-test", "test", database, cache),
		Auth:           handlers.NewAuthHandler(authService),
		Tasks:          handlers.NewTasksHandler(taskService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), users, revocations, nil),
		Metrics:        metrics,
	})
	return &testServer{app: app, users: users, tasks: tasks, tokens: authService.TokenManager()}
}

func (s *testServer) call(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

type authData struct {
	User  map[string]any `json:"user"`
	Token string         `json:"token"`
}

type taskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CreatedBy   struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"createdBy"`
}

type listData struct {
	Tasks      []taskView `json:"tasks"`
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
		Pages int `json:"pages"`
	} `json:"pagination"`
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) register(t *testing.T, name, email string) authData {
	t.Helper()
	status, env := s.call(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	return decode[authData](t, env)
}

func (s *testServer) createTask(t *testing.T, token string, body map[string]any) taskView {
	t.Helper()
	status, env := s.call(t, fiber.MethodPost, "/api/v1/tasks", token, body)
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	return decode[struct {
		Task taskView `json:"task"`
	}](t, env).Task
}

func TestRegister_ReturnsUserWithoutPasswordAndValidToken(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})

	status, env := s.call(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "email": "Alice@Example.com", "password": "secret123",
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.True(t, env.Success)
	assert.Equal(t, "User registered successfully", env.Message)

	data := decode[authData](t, env)
	assert.Equal(t, "alice@example.com", data.User["email"])
	assert.Equal(t, "user", data.User["role"])
	assert.NotContains(t, data.User, "password")
	assert.NotContains(t, data.User, "passwordHash")

	claims, err := s.tokens.ParseToken(data.Token)
	require.NoError(t, err)
	assert.Equal(t, data.User["id"], claims.SubjectID())
}

func TestRegister_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	s.register(t, "Alice", "alice@example.com")

	status, env := s.call(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Other", "email": "ALICE@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "User already exists with this email", env.Message)
	assert.Equal(t, 1, s.users.Count())
}

func TestRegister_ValidationMessages(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})

	status, env := s.call(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "12345",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
	require.NotEmpty(t, env.Errors)
	assert.Contains(t, env.Errors, fieldError{Field: "password", Message: "Password must be at least 6 characters long"})

	status, env = s.call(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "A", "email": "not-an-email", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Len(t, env.Errors, 2)

	status, env = s.call(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "email": strings.Repeat("a", 309) + "@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, []fieldError{{Field: "email", Message: "Please provide a valid email"}}, env.Errors)

	status, env = s.call(t, fiber.MethodPost, "/api/v1/auth/register", "", `{"name":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid request body", env.Message)
	assert.Zero(t, s.users.Count())
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	s.register(t, "Alice", "alice@example.com")

	wrongStatus, wrongPassword := s.call(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "not-the-password",
	})
	unknownStatus, unknownEmail := s.call(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})

	assert.Equal(t, fiber.StatusUnauthorized, wrongStatus)
	assert.Equal(t, fiber.StatusUnauthorized, unknownStatus)
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.Equal(t, "Invalid email or password", unknownEmail.Message)

	status, env := s.call(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ALICE@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Login successful", env.Message)
	assert.NotEmpty(t, decode[authData](t, env).Token)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})

	for _, token := range []string{"", "garbage"} {
		status, env := s.call(t, fiber.MethodGet, "/api/v1/tasks", token, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, "Not authorized to access this route", env.Message)

		status, _ = s.call(t, fiber.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	}
}

func TestMeAndProfile(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	s.register(t, "Bob", "bob@example.com")

	status, env := s.call(t, fiber.MethodGet, "/api/v1/auth/me", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "User profile retrieved successfully", env.Message)
	me := decode[authData](t, env)
	assert.Equal(t, "Alice", me.User["name"])

	status, env = s.call(t, fiber.MethodPut, "/api/v1/auth/profile", alice.Token, map[string]string{
		"name": "Alice Cooper", "password": "ignored-field", "role": "admin",
	})
	require.Equal(t, fiber.StatusOK, status)
	updated := decode[authData](t, env)
	assert.Equal(t, "Alice Cooper", updated.User["name"])
	assert.Equal(t, "user", updated.User["role"])

	status, env = s.call(t, fiber.MethodPut, "/api/v1/auth/profile", alice.Token, map[string]string{
		"email": "BOB@example.com",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Email already exists", env.Message)

	status, _ = s.call(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestMe_DeletedUser(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	s.users.Remove(alice.User["id"].(string))

	status, env := s.call(t, fiber.MethodGet, "/api/v1/auth/me", alice.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "User not found", env.Message)

	status, env = s.call(t, fiber.MethodGet, "/api/v1/tasks", alice.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized to access this route", env.Message)

	status, _ = s.call(t, fiber.MethodPost, "/api/v1/tasks", alice.Token, map[string]any{"title": "orphan"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Zero(t, s.tasks.Count())

	status, _ = s.call(t, fiber.MethodPut, "/api/v1/auth/profile", alice.Token, map[string]any{"name": "Ghost"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")

	status, env := s.call(t, fiber.MethodPost, "/api/v1/auth/logout", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Logged out successfully", env.Message)

	status, env = s.call(t, fiber.MethodGet, "/api/v1/auth/me", alice.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized to access this route", env.Message)
}

func TestTasks_CreateIgnoresClientOwner(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")

	task := s.createTask(t, alice.Token, map[string]any{
		"title":     "  Ship it  ",
		"createdBy": bob.User["id"],
		"dueDate":   "2030-12-31",
	})
	assert.Equal(t, "Ship it", task.Title)
	assert.Equal(t, "pending", task.Status)
	assert.Equal(t, "medium", task.Priority)
	assert.Equal(t, alice.User["id"], task.CreatedBy.ID)
	assert.Equal(t, "alice@example.com", task.CreatedBy.Email)
	require.NotNil(t, task.DueDate)
	assert.True(t, strings.HasPrefix(*task.DueDate, "2030-12-31"))
}

func TestTasks_CreateValidation(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{name: "missing title", body: map[string]any{}, field: "title"},
		{name: "blank title", body: map[string]any{"title": "   "}, field: "title"},
		{name: "long title", body: map[string]any{"title": strings.Repeat("a", 101)}, field: "title"},
		{name: "long description", body: map[string]any{"title": "ok", "description": strings.Repeat("a", 501)}, field: "description"},
		{name: "bad status", body: map[string]any{"title": "ok", "status": "done"}, field: "status"},
		{name: "bad priority", body: map[string]any{"title": "ok", "priority": "urgent"}, field: "priority"},
		{name: "bad due date", body: map[string]any{"title": "ok", "dueDate": "tomorrow"}, field: "dueDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.call(t, fiber.MethodPost, "/api/v1/tasks", alice.Token, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			require.NotEmpty(t, env.Errors)
			assert.Equal(t, tt.field, env.Errors[0].Field)
		})
	}
	assert.Zero(t, s.tasks.Count())
}

func TestTasks_OtherUsersTasksAreNotFound(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")
	task := s.createTask(t, alice.Token, map[string]any{"title": "Alice only"})

	path := "/api/v1/tasks/" + task.ID
	for _, method := range []string{fiber.MethodGet, fiber.MethodPut, fiber.MethodDelete} {
		var body any
		if method == fiber.MethodPut {
			body = map[string]any{"title": "stolen"}
		}
		status, env := s.call(t, method, path, bob.Token, body)
		assert.Equal(t, fiber.StatusNotFound, status, method)
		assert.Equal(t, "Task not found", env.Message, method)
	}

	status, env := s.call(t, fiber.MethodGet, path, alice.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	got := decode[struct {
		Task taskView `json:"task"`
	}](t, env).Task
	assert.Equal(t, "Alice only", got.Title)

	status, env = s.call(t, fiber.MethodGet, "/api/v1/tasks/not-a-uuid", alice.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Task not found", env.Message)
}

func TestTasks_ListFiltersNewestFirst(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")

	for i := 0; i < 5; i++ {
		s.createTask(t, alice.Token, map[string]any{"title": "match", "status": "completed", "priority": "high"})
		s.createTask(t, alice.Token, map[string]any{"title": "other", "status": "completed", "priority": "low"})
	}
	s.createTask(t, bob.Token, map[string]any{"title": "bob", "status": "completed", "priority": "high"})

	status, env := s.call(t, fiber.MethodGet, "/api/v1/tasks?status=completed&priority=high&limit=2&page=1", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Tasks retrieved successfully", env.Message)

	page := decode[listData](t, env)
	assert.Equal(t, 5, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.Pages)
	assert.Equal(t, 2, page.Pagination.Limit)
	require.Len(t, page.Tasks, 2)
	for _, task := range page.Tasks {
		assert.Equal(t, "match", task.Title)
		assert.Equal(t, alice.User["id"], task.CreatedBy.ID)
	}
	assert.True(t, !page.Tasks[0].CreatedAt.Before(page.Tasks[1].CreatedAt))

	status, env = s.call(t, fiber.MethodGet, "/api/v1/tasks", alice.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	all := decode[listData](t, env)
	assert.Equal(t, 10, all.Pagination.Total)
	assert.Equal(t, 1, all.Pagination.Page)
	assert.Equal(t, 10, all.Pagination.Limit)

	status, env = s.call(t, fiber.MethodGet, "/api/v1/tasks?status=done", alice.Token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "status", env.Errors[0].Field)
}

func TestTasks_ListHugePageFallsBackToFirst(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	s.createTask(t, alice.Token, map[string]any{"title": "only"})

	for _, query := range []string{"page=1000000000000000000", "page=1000000000000000000&limit=100", "page=9223372036854775807"} {
		status, env := s.call(t, fiber.MethodGet, "/api/v1/tasks?"+query, alice.Token, nil)
		require.Equal(t, fiber.StatusOK, status, query)
		page := decode[listData](t, env)
		assert.Equal(t, 1, page.Pagination.Page, query)
		assert.Len(t, page.Tasks, 1, query)
	}
}

func TestTasks_UpdateOnlyChangesSuppliedFields(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	task := s.createTask(t, alice.Token, map[string]any{
		"title": "Plan", "status": "in-progress", "priority": "high", "dueDate": "2031-01-15",
	})

	status, env := s.call(t, fiber.MethodPut, "/api/v1/tasks/"+task.ID, alice.Token, map[string]any{"description": "x"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Task updated successfully", env.Message)

	updated := decode[struct {
		Task taskView `json:"task"`
	}](t, env).Task
	assert.Equal(t, "x", updated.Description)
	assert.Equal(t, "Plan", updated.Title)
	assert.Equal(t, "in-progress", updated.Status)
	assert.Equal(t, "high", updated.Priority)
	assert.Equal(t, task.DueDate, updated.DueDate)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))

	status, env = s.call(t, fiber.MethodPut, "/api/v1/tasks/"+task.ID, alice.Token, map[string]any{"title": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "title", env.Errors[0].Field)
}

func TestTasks_Lifecycle(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	alice := s.register(t, "Alice", "alice@example.com")
	task := s.createTask(t, alice.Token, map[string]any{"title": "Lifecycle"})
	path := "/api/v1/tasks/" + task.ID

	status, _ := s.call(t, fiber.MethodPut, path, alice.Token, map[string]any{"status": "completed"})
	require.Equal(t, fiber.StatusOK, status)

	status, env := s.call(t, fiber.MethodDelete, path, alice.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Task deleted successfully", env.Message)

	status, env = s.call(t, fiber.MethodGet, path, alice.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Task not found", env.Message)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})

	status, env := s.call(t, fiber.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Route not found", env.Message)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{err: errors.New("redis down")})

	status, env := s.call(t, fiber.MethodGet, "/api/v1/test", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Backend Server is Running!", env.Message)

	status, env = s.call(t, fiber.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	health := decode[map[string]string](t, env)
	assert.Equal(t, "Connected", health["database"])
	assert.Equal(t, "Disconnected", health["cache"])

	down := newTestServer(t, pinger{err: errors.New("db down")}, nil)
	status, env = down.call(t, fiber.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Disconnected", decode[map[string]string](t, env)["database"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, pinger{}, pinger{})
	s.call(t, fiber.MethodGet, "/api/v1/test", "", nil)

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "task_service_test_http_requests_total")
}
