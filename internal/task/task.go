// Package task manages tasks inside houses. Every operation checks that the
// caller can act in the task's house before touching it.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/flatmate/internal/access"
	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/store"
)

// Input carries the fields of a new task. A nil Priority defaults to
// medium; any given value is kept as is.
type Input struct {
	Title       string
	Description *string
	AssignedTo  *string
	Deadline    *string
	Priority    *string
}

// Patch carries a partial update. Nil fields are left unchanged; an empty
// Deadline clears it.
type Patch struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Deadline    *string
	Priority    *string
	Completed   *bool
}

type Service struct {
	tasks *store.TaskStore
	auth  *access.Authority
	now   func() time.Time
}

func NewService(tasks *store.TaskStore, auth *access.Authority) *Service {
	return &Service{tasks: tasks, auth: auth, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID, houseID int64, in Input) (*model.Task, error) {
	if _, err := s.auth.ActableHouse(ctx, userID, houseID); err != nil {
		return nil, err
	}

	if isBlank(in.Title) {
		return nil, apperr.Validation("task title is required")
	}

	t := &model.Task{
		HouseID:     houseID,
		Title:       in.Title,
		Description: in.Description,
		AssignedTo:  in.AssignedTo,
		Priority:    model.DefaultPriority,
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Deadline != nil && *in.Deadline != "" {
		d, err := ParseDeadline(*in.Deadline)
		if err != nil {
			return nil, err
		}
		t.Deadline = &d
	}

	created, err := s.tasks.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

// isBlank reports whether a title has no visible characters. Titles are
// stored as given.
func isBlank(title string) bool {
	return strings.TrimSpace(title) == ""
}

// load resolves a task and checks the caller can act in its house.
func (s *Service) load(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrTaskNotFound
	}

	h, err := s.auth.House(ctx, t.HouseID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.RequireAct(ctx, userID, h); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	return s.load(ctx, userID, taskID)
}

// Update applies p to the task. completed and completed_at always change
// together. An empty patch only refreshes updated_at.
func (s *Service) Update(ctx context.Context, userID, taskID int64, p Patch) (*model.Task, error) {
	t, err := s.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		if isBlank(*p.Title) {
			return nil, apperr.Validation("task title is required")
		}
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.AssignedTo != nil {
		t.AssignedTo = p.AssignedTo
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Deadline != nil {
		if *p.Deadline == "" {
			t.Deadline = nil
		} else {
			d, err := ParseDeadline(*p.Deadline)
			if err != nil {
				return nil, err
			}
			t.Deadline = &d
		}
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
		if t.Completed {
			now := s.now().UTC()
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
	}

	updated, err := s.tasks.Update(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

// Complete marks the task done. Completing an already completed task
// refreshes completed_at.
func (s *Service) Complete(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	t, err := s.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	return s.tasks.SetCompleted(ctx, t.ID, s.now())
}

func (s *Service) Delete(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	t, err := s.load(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the tasks of one house, or of every house the user belongs
// to when houseID is nil. Tasks are not filtered by date.
func (s *Service) List(ctx context.Context, userID int64, houseID *int64) ([]model.Task, error) {
	var (
		tasks []model.Task
		err   error
	)
	if houseID != nil {
		if _, err := s.auth.ActableHouse(ctx, userID, *houseID); err != nil {
			return nil, err
		}
		tasks, err = s.tasks.ListByHouse(ctx, *houseID)
	} else {
		tasks, err = s.tasks.ListForUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}
