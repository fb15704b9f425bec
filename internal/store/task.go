package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/flatmate/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var description, assignedTo sql.NullString
	var deadline, completedAt sql.NullTime
	var completed int

	err := scanner.Scan(
		&t.ID, &t.HouseID, &t.Title, &description, &assignedTo, &deadline,
		&t.Priority, &completed, &completedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = stringPtr(description)
	t.AssignedTo = stringPtr(assignedTo)
	t.Completed = completed != 0
	if deadline.Valid {
		t.Deadline = &deadline.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

const taskCols = `id, house_id, title, description, assigned_to, deadline, priority, completed, completed_at, created_at, updated_at`

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Create inserts t and returns the stored row. ID and timestamps on t are
// ignored.
func (s *TaskStore) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (house_id, title, description, assigned_to, deadline, priority, completed, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.HouseID, t.Title, nullString(t.Description), nullString(t.AssignedTo),
		nullTime(t.Deadline), t.Priority, boolInt(t.Completed), nullTime(t.CompletedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Update writes every mutable field of t. house_id is never changed.
func (s *TaskStore) Update(ctx context.Context, t *model.Task) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = ?, description = ?, assigned_to = ?, deadline = ?, priority = ?,
		     completed = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		t.Title, nullString(t.Description), nullString(t.AssignedTo), nullTime(t.Deadline),
		t.Priority, boolInt(t.Completed), nullTime(t.CompletedAt), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, t.ID)
}

// SetCompleted sets the completion flag and timestamp together.
func (s *TaskStore) SetCompleted(ctx context.Context, id int64, completedAt time.Time) (*model.Task, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET completed = 1, completed_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		completedAt.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskStore) ListByHouse(ctx context.Context, houseID int64) ([]model.Task, error) {
	return s.list(ctx, `SELECT `+taskCols+` FROM tasks WHERE house_id = ? ORDER BY id ASC`, houseID)
}

// ListForUser returns the tasks of every house userID created or belongs to.
func (s *TaskStore) ListForUser(ctx context.Context, userID int64) ([]model.Task, error) {
	return s.list(ctx,
		`SELECT `+taskCols+` FROM tasks
		 WHERE house_id IN (
		     SELECT id FROM houses WHERE creator_id = ?
		     UNION
		     SELECT house_id FROM house_members WHERE user_id = ?
		 )
		 ORDER BY id ASC`,
		userID, userID,
	)
}

func (s *TaskStore) list(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
