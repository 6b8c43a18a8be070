package domain

import (
	"math"
	"time"
)

// TaskStatus enumerates task progress. Any value is reachable from any other.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority enumerates task urgency.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
	CreatedBy   string
	Owner       *TaskOwner
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskOwner is the public projection of the owning user.
type TaskOwner struct {
	ID    string
	Name  string
	Email string
}

// TaskPatch carries the fields supplied by an update request. Nil fields are
// left untouched on the stored record.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	DueDate     *time.Time
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && p.DueDate == nil
}

// Apply merges the supplied fields into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
}

// TaskFilter narrows a listing. Empty values mean no filter.
type TaskFilter struct {
	Status   TaskStatus
	Priority TaskPriority
	Page     int
	Limit    int
}

// Offset returns the number of rows to skip for the requested page.
func (f TaskFilter) Offset() int {
	if f.Page < 1 || f.Limit < 1 || f.Page-1 > math.MaxInt/f.Limit {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int
	Limit int
	Total int
	Pages int
}

// NewPagination computes the page count as ceil(total/limit).
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// OwnerID identifies the user every task read or write is scoped to.
type OwnerID string
