package model

import "time"

// Note belongs to exactly one task. Attachments holds stored paths in upload order.
type Note struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	Subject     string    `json:"subject"`
	Note        string    `json:"note"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
