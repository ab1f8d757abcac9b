package mq

import "time"

// RoutingKeyTaskCreated is published once a task and its notes are committed.
const RoutingKeyTaskCreated = "task.created"

// TaskCreatedPayload task.created 事件的 payload
type TaskCreatedPayload struct {
	TaskID          int64     `json:"task_id"`
	UserID          int       `json:"user_id"`
	Subject         string    `json:"subject"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	DueDate         string    `json:"due_date"` // YYYY-MM-DD
	NotesCount      int       `json:"notes_count"`
	AttachmentCount int       `json:"attachment_count"`
	CreatedAt       time.Time `json:"created_at"`
}
