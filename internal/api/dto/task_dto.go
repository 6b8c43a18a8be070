package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// CreateTaskRequest payload. createdBy is never read from the body.
type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"min=1,max=100" message:"Title must be between 1 and 100 characters"`
	Description string  `json:"description" validate:"max=500" message:"Description cannot exceed 500 characters"`
	Status      string  `json:"status" validate:"omitempty,oneof=pending in-progress completed" message:"Invalid status"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high" message:"Invalid priority"`
	DueDate     *string `json:"dueDate" validate:"omitnil,date" message:"Due date must be a valid date"`
}

// UpdateTaskRequest payload. Absent keys leave the stored value untouched.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=100" message:"Title must be between 1 and 100 characters"`
	Description *string `json:"description" validate:"omitnil,max=500" message:"Description cannot exceed 500 characters"`
	Status      *string `json:"status" validate:"omitnil,oneof=pending in-progress completed" message:"Invalid status"`
	Priority    *string `json:"priority" validate:"omitnil,oneof=low medium high" message:"Invalid priority"`
	DueDate     *string `json:"dueDate" validate:"omitnil,date" message:"Due date must be a valid date"`
}

// TaskListQuery captures listing filters.
type TaskListQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=pending in-progress completed" message:"Invalid status"`
	Priority string `query:"priority" validate:"omitempty,oneof=low medium high" message:"Invalid priority"`
	Page     string `query:"page"`
	Limit    string `query:"limit"`
}

// TaskOwnerResponse is the embedded owner projection.
type TaskOwnerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TaskResponse is the public view of a task.
type TaskResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
	CreatedBy   TaskOwnerResponse   `json:"createdBy"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// PaginationResponse describes the returned page.
type PaginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// TaskListResponse is returned by the listing endpoint.
type TaskListResponse struct {
	Tasks      []TaskResponse     `json:"tasks"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewTaskResponse projects a domain task.
func NewTaskResponse(task *domain.Task) TaskResponse {
	owner := TaskOwnerResponse{ID: task.CreatedBy}
	if task.Owner != nil {
		owner.Name = task.Owner.Name
		owner.Email = task.Owner.Email
	}
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		CreatedBy:   owner,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// NewTaskListResponse projects a page of tasks.
func NewTaskListResponse(tasks []domain.Task, p domain.Pagination) TaskListResponse {
	items := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, NewTaskResponse(&tasks[i]))
	}
	return TaskListResponse{
		Tasks:      items,
		Pagination: PaginationResponse{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages},
	}
}
