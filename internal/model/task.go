package model

import "time"

const DefaultPriority = "medium"

type Task struct {
	ID          int64      `json:"id"`
	HouseID     int64      `json:"house_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	AssignedTo  *string    `json:"assigned_to"`
	Deadline    *time.Time `json:"deadline"`
	Priority    string     `json:"priority"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
