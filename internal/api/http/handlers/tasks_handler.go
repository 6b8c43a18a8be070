package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
	"github.com/spec-kit/task-service/internal/api/validation"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/service"
	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// TasksHandler manages the caller's task endpoints.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// List GET /api/v1/tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return err
	}
	var q dto.TaskListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("Invalid query parameters", nil)
	}
	if err := validation.Struct(&q); err != nil {
		return err
	}

	filter := domain.TaskFilter{
		Status:   domain.TaskStatus(q.Status),
		Priority: domain.TaskPriority(q.Priority),
		Page:     parseInt(q.Page, service.DefaultPage),
		Limit:    parseInt(q.Limit, service.DefaultLimit),
	}
	tasks, page, err := h.service.List(c.UserContext(), owner, filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.Success("Tasks retrieved successfully", dto.NewTaskListResponse(tasks, page)))
}

// Get GET /api/v1/tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return err
	}
	task, err := h.service.Get(c.UserContext(), owner, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.Success("Task retrieved successfully", fiber.Map{"task": dto.NewTaskResponse(task)}))
}

// Create POST /api/v1/tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Title = trim(req.Title)
	req.Description = trim(req.Description)
	if err := validation.Struct(&req); err != nil {
		return err
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return err
	}
	task, err := h.service.Create(c.UserContext(), owner, service.TaskCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		Priority:    domain.TaskPriority(req.Priority),
		DueDate:     due,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.Success("Task created successfully", fiber.Map{"task": dto.NewTaskResponse(task)}))
}

// Update PUT /api/v1/tasks/:id. Only keys present in the body are changed.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	validation.TrimPtr(req.Title)
	validation.TrimPtr(req.Description)
	if err := validation.Struct(&req); err != nil {
		return err
	}

	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}
	if patch.DueDate, err = parseDueDate(req.DueDate); err != nil {
		return err
	}

	task, err := h.service.Update(c.UserContext(), owner, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(dto.Success("Task updated successfully", fiber.Map{"task": dto.NewTaskResponse(task)}))
}

// Delete DELETE /api/v1/tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), owner, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.Success("Task deleted successfully", nil))
}

func ownerFromContext(c *fiber.Ctx) (domain.OwnerID, error) {
	principal, err := requirePrincipal(c)
	if err != nil {
		return "", err
	}
	return domain.OwnerID(principal.UserID), nil
}

func parseDueDate(val *string) (*time.Time, error) {
	if val == nil {
		return nil, nil
	}
	t, err := validation.ParseDate(*val)
	if err != nil {
		return nil, apperrors.NewValidationError("Validation failed", []apperrors.FieldError{
			{Field: "dueDate", Message: "Due date must be a valid date"},
		})
	}
	t = t.UTC()
	return &t, nil
}
