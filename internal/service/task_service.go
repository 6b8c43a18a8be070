package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// TaskService coordinates owner-scoped task workflows.
type TaskService struct {
	tasks  repository.TaskRepository
	logger *zap.Logger
}

// TaskCreateInput describes task creation payload.
type TaskCreateInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
}

// NewTaskService constructs the service.
func NewTaskService(tasks repository.TaskRepository, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{tasks: tasks, logger: logger}
}

// List returns one page of the owner's tasks, newest first.
func (s *TaskService) List(ctx context.Context, owner domain.OwnerID, filter domain.TaskFilter) ([]domain.Task, domain.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = DefaultPage
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	// Pages whose row offset does not fit in an int start over at the first page.
	if filter.Page-1 > math.MaxInt/filter.Limit {
		filter.Page = DefaultPage
	}
	tasks, total, err := s.tasks.List(ctx, owner, filter)
	if err != nil {
		return nil, domain.Pagination{}, apperrors.NewInternalError(err)
	}
	return tasks, domain.NewPagination(filter.Page, filter.Limit, total), nil
}

// Get fetches a task owned by owner. Missing and foreign tasks are indistinguishable.
func (s *TaskService) Get(ctx context.Context, owner domain.OwnerID, id string) (*domain.Task, error) {
	if !validTaskID(id) {
		return nil, errTaskNotFound()
	}
	task, err := s.tasks.Get(ctx, owner, id)
	if err != nil {
		return nil, mapTaskError(err)
	}
	return task, nil
}

// Create stores a new task for owner, applying status and priority defaults.
func (s *TaskService) Create(ctx context.Context, owner domain.OwnerID, input TaskCreateInput) (*domain.Task, error) {
	task := &domain.Task{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}
	if err := s.tasks.Create(ctx, owner, task); err != nil {
		return nil, mapTaskError(err)
	}
	s.logger.Debug("task created", zap.String("task_id", task.ID), zap.String("owner_id", string(owner)))
	return task, nil
}

// Update merges the supplied fields into the owner's task.
func (s *TaskService) Update(ctx context.Context, owner domain.OwnerID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if !validTaskID(id) {
		return nil, errTaskNotFound()
	}
	task, err := s.tasks.Update(ctx, owner, id, patch)
	if err != nil {
		return nil, mapTaskError(err)
	}
	return task, nil
}

// Delete removes the owner's task.
func (s *TaskService) Delete(ctx context.Context, owner domain.OwnerID, id string) error {
	if !validTaskID(id) {
		return errTaskNotFound()
	}
	if err := s.tasks.Delete(ctx, owner, id); err != nil {
		return mapTaskError(err)
	}
	return nil
}

func validTaskID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func errTaskNotFound() error {
	return apperrors.NewNotFound("Task")
}

func mapTaskError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errTaskNotFound()
	case errors.Is(err, repository.ErrUnknownOwner), errors.Is(err, repository.ErrMissingOwner):
		return apperrors.NewUnauthorized(auth.UnauthorizedMessage)
	}
	return apperrors.NewInternalError(err)
}
