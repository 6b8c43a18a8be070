package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskRepository encapsulates task persistence. Every method takes the owner
// explicitly and applies it inside the statement; there is no unscoped access.
type TaskRepository interface {
	Create(ctx context.Context, owner domain.OwnerID, task *domain.Task) error
	Get(ctx context.Context, owner domain.OwnerID, id string) (*domain.Task, error)
	List(ctx context.Context, owner domain.OwnerID, filter domain.TaskFilter) ([]domain.Task, int, error)
	Update(ctx context.Context, owner domain.OwnerID, id string, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, owner domain.OwnerID, id string) error
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

var taskColumns = []string{
	"t.id", "t.title", "t.description", "t.status", "t.priority", "t.due_date",
	"t.created_by", "t.created_at", "t.updated_at", "u.name", "u.email",
}

func (r *taskRepository) Create(ctx context.Context, owner domain.OwnerID, task *domain.Task) error {
	if owner == "" {
		return ErrMissingOwner
	}
	const query = `
        WITH t AS (
            INSERT INTO tasks (title, description, status, priority, due_date, created_by)
            VALUES ($1,$2,$3,$4,$5,$6)
            RETURNING *
        )
        SELECT t.id, t.title, t.description, t.status, t.priority, t.due_date,
               t.created_by, t.created_at, t.updated_at, u.name, u.email
        FROM t JOIN users u ON u.id = t.created_by`

	task.CreatedBy = string(owner)
	created, err := scanTask(r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.CreatedBy,
	))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	*task = *created
	return nil
}

func (r *taskRepository) Get(ctx context.Context, owner domain.OwnerID, id string) (*domain.Task, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	query, args, err := buildTaskGet(owner, id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task get: %w", err)
	}
	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (r *taskRepository) List(ctx context.Context, owner domain.OwnerID, filter domain.TaskFilter) ([]domain.Task, int, error) {
	if owner == "" {
		return nil, 0, ErrMissingOwner
	}

	countSQL, countArgs, err := buildTaskCount(owner, filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build task count: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", mapPgError(err))
	}

	listSQL, listArgs, err := buildTaskList(owner, filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build task list: %w", err)
	}
	rows, err := r.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", mapPgError(err))
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0, filter.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", mapPgError(err))
	}
	return tasks, total, nil
}

func (r *taskRepository) Update(ctx context.Context, owner domain.OwnerID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	query, args, err := buildTaskUpdate(owner, id, patch).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task update: %w", err)
	}
	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (r *taskRepository) Delete(ctx context.Context, owner domain.OwnerID, id string) error {
	if owner == "" {
		return ErrMissingOwner
	}
	query, args, err := buildTaskDelete(owner, id).ToSql()
	if err != nil {
		return fmt.Errorf("build task delete: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete task: %w", mapPgError(err))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("delete task: %w", ErrNotFound)
	}
	return nil
}

func ownedTasks(owner domain.OwnerID) sq.SelectBuilder {
	return psql.Select(taskColumns...).
		From("tasks t").
		Join("users u ON u.id = t.created_by").
		Where(sq.Eq{"t.created_by": string(owner)})
}

// filterConditions returns equality predicates for the set filters only; an
// unset status or priority means no filter rather than matching empty values.
func filterConditions(prefix string, filter domain.TaskFilter) sq.Eq {
	eq := sq.Eq{}
	if filter.Status != "" {
		eq[prefix+"status"] = string(filter.Status)
	}
	if filter.Priority != "" {
		eq[prefix+"priority"] = string(filter.Priority)
	}
	return eq
}

func buildTaskGet(owner domain.OwnerID, id string) sq.SelectBuilder {
	return ownedTasks(owner).Where(sq.Eq{"t.id": id})
}

func buildTaskList(owner domain.OwnerID, filter domain.TaskFilter) sq.SelectBuilder {
	b := ownedTasks(owner)
	if eq := filterConditions("t.", filter); len(eq) > 0 {
		b = b.Where(eq)
	}
	b = b.OrderBy("t.created_at DESC", "t.id DESC")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset()))
	}
	return b
}

func buildTaskCount(owner domain.OwnerID, filter domain.TaskFilter) sq.SelectBuilder {
	b := psql.Select("COUNT(*)").From("tasks").Where(sq.Eq{"created_by": string(owner)})
	if eq := filterConditions("", filter); len(eq) > 0 {
		b = b.Where(eq)
	}
	return b
}

// buildTaskUpdate sets only the supplied columns, scoped to id and owner in a
// single statement so the ownership check and the write cannot interleave.
func buildTaskUpdate(owner domain.OwnerID, id string, patch domain.TaskPatch) sq.UpdateBuilder {
	b := psql.Update("tasks t").Set("updated_at", sq.Expr("NOW()"))
	if patch.Title != nil {
		b = b.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		b = b.Set("description", *patch.Description)
	}
	if patch.Status != nil {
		b = b.Set("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		b = b.Set("priority", string(*patch.Priority))
	}
	if patch.DueDate != nil {
		b = b.Set("due_date", *patch.DueDate)
	}
	return b.From("users u").
		Where("u.id = t.created_by").
		Where(sq.Eq{"t.id": id, "t.created_by": string(owner)}).
		Suffix("RETURNING t.id, t.title, t.description, t.status, t.priority, t.due_date, t.created_by, t.created_at, t.updated_at, u.name, u.email")
}

func buildTaskDelete(owner domain.OwnerID, id string) sq.DeleteBuilder {
	return psql.Delete("tasks").Where(sq.Eq{"id": id, "created_by": string(owner)})
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task  domain.Task
		owner domain.TaskOwner
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
		&owner.Name,
		&owner.Email,
	); err != nil {
		return nil, mapPgError(err)
	}
	owner.ID = task.CreatedBy
	task.Owner = &owner
	return &task, nil
}
