package model

import "time"

type Status string

const (
	StatusNew        Status = "new"
	StatusIncomplete Status = "incomplete"
	StatusComplete   Status = "complete"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Statuses lists every valid status in display order.
var Statuses = []string{string(StatusNew), string(StatusIncomplete), string(StatusComplete)}

// Priorities lists every valid priority, highest first.
var Priorities = []string{string(PriorityHigh), string(PriorityMedium), string(PriorityLow)}

// PriorityRank orders priorities for listing; lower sorts first.
var PriorityRank = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// Task dates are ISO calendar dates (YYYY-MM-DD).
type Task struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	StartDate   string    `json:"start_date"`
	DueDate     string    `json:"due_date"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	NotesCount  int       `json:"notes_count"`
	Notes       []Note    `json:"notes"`
}

// TaskFilter narrows a listing. Empty fields impose no constraint; DueDate is ISO.
type TaskFilter struct {
	Status   Status
	Priority Priority
	DueDate  string
}
