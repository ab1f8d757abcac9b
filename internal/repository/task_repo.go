package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tasknotes/internal/model"
	"tasknotes/pkg/metrics"
	"tasknotes/pkg/otel"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// CreateWithNotes inserts task and its notes, in slice order, in one transaction.
// On success the generated ids and timestamps are written back into task and notes,
// and task.Notes holds the inserted notes.
func (r *TaskRepository) CreateWithNotes(ctx context.Context, task *model.Task, notes []model.Note) (err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "tasks")
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("create_with_notes", "tasks", time.Since(start))
		otel.EndDBSpan(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
        INSERT INTO tasks (subject, description, start_date, due_date, status, priority)
        VALUES ($1, $2, $3::date, $4::date, $5, $6)
        RETURNING id, created_at, updated_at
    `,
		task.Subject, task.Description, task.StartDate, task.DueDate,
		string(task.Status), string(task.Priority),
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	for i := range notes {
		if err = insertNote(ctx, tx, task.ID, &notes[i]); err != nil {
			return fmt.Errorf("failed to insert note %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	task.Notes = notes
	task.NotesCount = len(notes)
	r.logger.Debug("Task inserted",
		zap.Int64("task_id", task.ID),
		zap.Int("notes", len(notes)),
	)
	return nil
}

func insertNote(ctx context.Context, tx pgx.Tx, taskID int64, n *model.Note) error {
	var attachments any
	if len(n.Attachments) > 0 {
		b, err := json.Marshal(n.Attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}
		attachments = string(b)
	}

	n.TaskID = taskID
	return tx.QueryRow(ctx, `
        INSERT INTO notes (task_id, subject, note, attachments)
        VALUES ($1, $2, $3, $4::jsonb)
        RETURNING id, created_at, updated_at
    `, taskID, n.Subject, n.Note, attachments).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
}

// ListFiltered returns tasks matching filter that have at least one note, with
// their notes loaded. See BuildTaskListQuery for the ordering.
func (r *TaskRepository) ListFiltered(ctx context.Context, filter model.TaskFilter) (tasks []model.Task, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "tasks")
	start := time.Now()
	defer func() {
		metrics.RecordDBQueryDuration("list_filtered", "tasks", time.Since(start))
		otel.EndDBSpan(span, err)
	}()

	query, args := BuildTaskListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks = []model.Task{}
	for rows.Next() {
		var t model.Task
		var status, priority string
		if err = rows.Scan(
			&t.ID,
			&t.Subject,
			&t.Description,
			&t.StartDate,
			&t.DueDate,
			&status,
			&priority,
			&t.CreatedAt,
			&t.UpdatedAt,
			&t.NotesCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Status = model.Status(status)
		t.Priority = model.Priority(priority)
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	ids := make([]int64, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	notes, err := r.notesForTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Notes = notes[tasks[i].ID]
		if tasks[i].Notes == nil {
			tasks[i].Notes = []model.Note{}
		}
	}
	return tasks, nil
}

// notesForTasks loads the notes of every task in ids, grouped by task and ordered by id.
func (r *TaskRepository) notesForTasks(ctx context.Context, ids []int64) (map[int64][]model.Note, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, task_id, subject, note, attachments, created_at, updated_at
        FROM notes
        WHERE task_id = ANY($1)
        ORDER BY task_id, id
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	defer rows.Close()

	byTask := make(map[int64][]model.Note, len(ids))
	for rows.Next() {
		var n model.Note
		var raw []byte
		if err := rows.Scan(&n.ID, &n.TaskID, &n.Subject, &n.Note, &raw, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.Attachments = []string{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &n.Attachments); err != nil {
				r.logger.Warn("Malformed note attachments",
					zap.Int64("note_id", n.ID),
					zap.Error(err),
				)
			}
		}
		if n.Attachments == nil {
			n.Attachments = []string{}
		}
		byTask[n.TaskID] = append(byTask[n.TaskID], n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return byTask, nil
}

// AttachmentReferenced reports whether any note lists storedPath.
func (r *TaskRepository) AttachmentReferenced(ctx context.Context, storedPath string) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notes WHERE attachments @> jsonb_build_array($1::text))`,
		storedPath,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to look up attachment %s: %w", storedPath, err)
	}
	return found, nil
}
