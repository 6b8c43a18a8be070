// Package client is a Go client for the task service API. It owns the
// caller's session lifecycle: tokens returned by register and login are stored
// in the Session, attached to every request, and dropped on logout or on any
// 401 response.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the server rejects the session token.
var ErrUnauthorized = errors.New("not authorized")

// FieldError is a field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response decoded from the envelope.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []FieldError
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Message)
	}
	return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Message, strings.Join(msgs, "; "))
}

// User mirrors the API user projection.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskOwner mirrors the embedded owner projection.
type TaskOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Task mirrors the API task projection.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedBy   TaskOwner  `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Pagination mirrors the listing metadata.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// TaskPage is one page of tasks.
type TaskPage struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// ProfileUpdate carries optional profile changes.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// TaskInput is used for create (Title required) and update (any subset).
// Nil fields are not sent.
type TaskInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

// ListOptions filters a task listing. Zero values are omitted.
type ListOptions struct {
	Status   string
	Priority string
	Page     int
	Limit    int
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []FieldError    `json:"errors"`
}

// Client talks to the task service on behalf of a Session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// New builds a client for baseURL (for example http://localhost:5002).
func New(baseURL string, session *Session, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if session == nil {
		session = NewSession(nil)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    httpClient,
		session: session,
	}
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.session
}

type authPayload struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type userPayload struct {
	User *User `json:"user"`
}

type taskPayload struct {
	Task *Task `json:"task"`
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var out authPayload
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &out); err != nil {
		return nil, err
	}
	if err := c.session.Set(out.Token, out.User); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return out.User, nil
}

// Login authenticates and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out authPayload
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	if err := c.session.Set(out.Token, out.User); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return out.User, nil
}

// Logout revokes the token server-side and always clears the local session.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if c.session.Authenticated() {
		err = c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
		if errors.Is(err, ErrUnauthorized) {
			err = nil
		}
	}
	if clearErr := c.session.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// Me fetches the current profile and refreshes the cached user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out userPayload
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	if err := c.session.setUser(out.User); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return out.User, nil
}

// UpdateProfile changes name and/or email.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var out userPayload
	if err := c.do(ctx, http.MethodPut, "/auth/profile", nil, update, &out); err != nil {
		return nil, err
	}
	if err := c.session.setUser(out.User); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return out.User, nil
}

// ListTasks returns one page of the caller's tasks.
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) (*TaskPage, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Priority != "" {
		q.Set("priority", opts.Priority)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var out TaskPage
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var out taskPayload
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	var out taskPayload
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, in, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

// UpdateTask sends only the non-nil fields of in.
func (c *Client) UpdateTask(ctx context.Context, id string, in TaskInput) (*Task, error) {
	var out taskPayload
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && c.session.Authenticated() {
		_ = c.session.Clear()
		return fmt.Errorf("%w: %s", ErrUnauthorized, env.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
