// Package repotest provides in-memory repository implementations for tests.
// They honor the same contracts as the Postgres repositories: owner scoping,
// case-insensitive email uniqueness and merge-only-supplied-fields updates.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu    sync.RWMutex
	byID  map[string]domain.User
	clock func() time.Time
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers returns an empty user store.
func NewUsers() *Users {
	return &Users{byID: map[string]domain.User{}, clock: time.Now}
}

// Count returns the number of stored users.
func (u *Users) Count() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.byID)
}

// Remove deletes a user out-of-band.
func (u *Users) Remove(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.byID, id)
}

func (u *Users) emailTaken(email, exceptID string) bool {
	for id, user := range u.byID {
		if id != exceptID && user.Email == email {
			return true
		}
	}
	return false
}

func (u *Users) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user.Email = repository.NormalizeEmail(user.Email)
	if u.emailTaken(user.Email, "") {
		return fmt.Errorf("create user: %w", repository.ErrDuplicateEmail)
	}
	if user.Role == "" {
		user.Role = domain.UserRoleUser
	}
	now := u.clock()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	u.byID[user.ID] = *user
	return nil
}

func (u *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user by id: %w", repository.ErrNotFound)
	}
	return &user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	email = repository.NormalizeEmail(email)
	for _, user := range u.byID {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", repository.ErrNotFound)
}

func (u *Users) UpdateProfile(_ context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return nil, fmt.Errorf("update profile: %w", repository.ErrNotFound)
	}
	if patch.Email != nil {
		email := repository.NormalizeEmail(*patch.Email)
		if u.emailTaken(email, id) {
			return nil, fmt.Errorf("update profile: %w", repository.ErrDuplicateEmail)
		}
		user.Email = email
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	user.UpdatedAt = u.clock()
	u.byID[id] = user
	return &user, nil
}

// Tasks is an in-memory repository.TaskRepository.
type Tasks struct {
	mu    sync.RWMutex
	users *Users
	rows  map[string]domain.Task
	seq   int64
	clock func() time.Time
}

var _ repository.TaskRepository = (*Tasks)(nil)

// NewTasks returns an empty task store that resolves owners through users.
func NewTasks(users *Users) *Tasks {
	return &Tasks{users: users, rows: map[string]domain.Task{}, clock: time.Now}
}

// Count returns the number of stored tasks across all owners.
func (t *Tasks) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// now returns strictly increasing timestamps so creation order is total.
func (t *Tasks) now() time.Time {
	t.seq++
	return t.clock().Add(time.Duration(t.seq) * time.Microsecond)
}

func (t *Tasks) withOwner(task domain.Task) domain.Task {
	owner := &domain.TaskOwner{ID: task.CreatedBy}
	if user, err := t.users.GetByID(context.Background(), task.CreatedBy); err == nil {
		owner.Name, owner.Email = user.Name, user.Email
	}
	task.Owner = owner
	return task
}

func (t *Tasks) owned(owner domain.OwnerID, id string) (domain.Task, bool) {
	task, ok := t.rows[id]
	if !ok || task.CreatedBy != string(owner) {
		return domain.Task{}, false
	}
	return task, true
}

func (t *Tasks) Create(ctx context.Context, owner domain.OwnerID, task *domain.Task) error {
	if owner == "" {
		return repository.ErrMissingOwner
	}
	if _, err := t.users.GetByID(ctx, string(owner)); err != nil {
		return fmt.Errorf("create task: %w", repository.ErrUnknownOwner)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	task.ID = uuid.NewString()
	task.CreatedBy = string(owner)
	task.CreatedAt, task.UpdatedAt = now, now
	t.rows[task.ID] = *task
	*task = t.withOwner(*task)
	return nil
}

func (t *Tasks) Get(_ context.Context, owner domain.OwnerID, id string) (*domain.Task, error) {
	if owner == "" {
		return nil, repository.ErrMissingOwner
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.owned(owner, id)
	if !ok {
		return nil, fmt.Errorf("get task: %w", repository.ErrNotFound)
	}
	task = t.withOwner(task)
	return &task, nil
}

func (t *Tasks) List(_ context.Context, owner domain.OwnerID, filter domain.TaskFilter) ([]domain.Task, int, error) {
	if owner == "" {
		return nil, 0, repository.ErrMissingOwner
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	matched := make([]domain.Task, 0)
	for _, task := range t.rows {
		if task.CreatedBy != string(owner) {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		matched = append(matched, t.withOwner(task))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < total {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func (t *Tasks) Update(_ context.Context, owner domain.OwnerID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if owner == "" {
		return nil, repository.ErrMissingOwner
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.owned(owner, id)
	if !ok {
		return nil, fmt.Errorf("update task: %w", repository.ErrNotFound)
	}
	patch.Apply(&task)
	task.UpdatedAt = t.now()
	t.rows[id] = task
	task = t.withOwner(task)
	return &task, nil
}

func (t *Tasks) Delete(_ context.Context, owner domain.OwnerID, id string) error {
	if owner == "" {
		return repository.ErrMissingOwner
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.owned(owner, id); !ok {
		return fmt.Errorf("delete task: %w", repository.ErrNotFound)
	}
	delete(t.rows, id)
	return nil
}

// Revocations is an in-memory auth.RevocationList.
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

// NewRevocations returns an empty revocation list.
func NewRevocations() *Revocations {
	return &Revocations{revoked: map[string]time.Duration{}}
}

func (r *Revocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = ttl
	return nil
}

func (r *Revocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[tokenID]
	return ok, nil
}
