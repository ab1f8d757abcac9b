package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	mqcontract "tasknotes/contracts/mq"
	"tasknotes/internal/dates"
	"tasknotes/internal/model"
	"tasknotes/pkg/circuitbreaker"
	"tasknotes/pkg/logger"
	"tasknotes/pkg/metrics"
	"tasknotes/pkg/mq"
	"tasknotes/pkg/otel"
)

// ErrCreateFailed hides storage and persistence failures from callers.
var ErrCreateFailed = errors.New("an error occurred while creating the task and notes")

const defaultMaxFileKB = 10240

type Repository interface {
	CreateWithNotes(ctx context.Context, task *model.Task, notes []model.Note) error
	ListFiltered(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
}

// AttachmentStore is satisfied by storage.Store implementations.
type AttachmentStore interface {
	NewPath(filename string) string
	Put(ctx context.Context, storedPath string, r io.Reader) error
}

// Tracker follows attachments from naming to commit. *storage.Janitor satisfies it.
type Tracker interface {
	Track(ctx context.Context, paths []string) error
	Discard(ctx context.Context, paths []string) []string
	Release(ctx context.Context, paths []string) error
}

type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Upload is one file of a note as received from the client. Open is nil when
// the client sent something that is not a readable file.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type NoteInput struct {
	Subject     string
	Note        string
	Attachments []Upload
}

type CreateTaskInput struct {
	UserID      int
	Subject     string
	Description string
	StartDate   string
	DueDate     string
	Status      string
	Priority    string
	Notes       []NoteInput
}

// ListTasksInput holds raw filter values; empty means unset.
type ListTasksInput struct {
	Status   string
	Priority string
	DueDate  string
}

type Options struct {
	Dates     *dates.Parser
	MaxFileKB int
	// Publisher may be nil, in which case no events are sent.
	Publisher Publisher
	Breaker   *circuitbreaker.CircuitBreaker
}

type Service struct {
	repo      Repository
	store     AttachmentStore
	tracker   Tracker
	publisher Publisher
	breaker   *circuitbreaker.CircuitBreaker
	dates     *dates.Parser
	maxFileKB int
	logger    *zap.Logger
}

func NewService(repo Repository, store AttachmentStore, tracker Tracker, opts Options, logger *zap.Logger) *Service {
	if opts.Dates == nil {
		opts.Dates = dates.NewParser("", "")
	}
	if opts.MaxFileKB <= 0 {
		opts.MaxFileKB = defaultMaxFileKB
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return &Service{
		repo:      repo,
		store:     store,
		tracker:   tracker,
		publisher: opts.Publisher,
		breaker:   opts.Breaker,
		dates:     opts.Dates,
		maxFileKB: opts.MaxFileKB,
		logger:    logger,
	}
}

// Create validates in, stores every attachment and persists the task with its notes.
// Invalid input yields *validation.Errors before anything is stored. Any later
// failure removes the files named for this task and yields ErrCreateFailed.
func (s *Service) Create(ctx context.Context, in CreateTaskInput) (*model.Task, error) {
	log := logger.WithTrace(ctx, s.logger)

	if errs := s.createSchema().Validate(createValues(in)); errs != nil {
		metrics.IncrementTaskCreated("invalid")
		log.Info("Task rejected by validation", zap.Strings("fields", fieldNames(errs)))
		return nil, errs
	}

	startDate, err := s.dates.Normalize(in.StartDate)
	if err != nil {
		return nil, s.fail(log, "normalize start_date", err)
	}
	dueDate, err := s.dates.Normalize(in.DueDate)
	if err != nil {
		return nil, s.fail(log, "normalize due_date", err)
	}

	t := &model.Task{
		Subject:     in.Subject,
		Description: in.Description,
		StartDate:   startDate,
		DueDate:     dueDate,
		Status:      model.Status(in.Status),
		Priority:    model.Priority(in.Priority),
	}

	// Every file is named and tracked before any is written, so a crash at
	// any later point leaves nothing the janitor does not know about.
	var stored []string
	paths := make([][]string, len(in.Notes))
	for i, n := range in.Notes {
		paths[i] = make([]string, len(n.Attachments))
		for j, up := range n.Attachments {
			paths[i][j] = s.store.NewPath(up.Filename)
			stored = append(stored, paths[i][j])
		}
	}
	if err := s.tracker.Track(ctx, stored); err != nil {
		return nil, s.fail(log, "track attachments", err)
	}

	notes := make([]model.Note, len(in.Notes))
	for i, n := range in.Notes {
		for j, up := range n.Attachments {
			if err := s.storeUpload(ctx, paths[i][j], up); err != nil {
				s.discard(ctx, log, stored)
				return nil, s.fail(log, fmt.Sprintf("store notes.%d.attachments.%d", i, j), err)
			}
		}
		notes[i] = model.Note{Subject: n.Subject, Note: n.Note, Attachments: paths[i]}
	}

	if err := s.repo.CreateWithNotes(ctx, t, notes); err != nil {
		s.discard(ctx, log, stored)
		return nil, s.fail(log, "persist task", err)
	}
	if err := s.tracker.Release(ctx, stored); err != nil {
		log.Warn("Failed to release committed attachments", zap.Int64("task_id", t.ID), zap.Error(err))
	}

	metrics.IncrementTaskCreated("success")
	log.Info("Task created",
		zap.Int64("task_id", t.ID),
		zap.Int("user_id", in.UserID),
		zap.Int("notes", len(notes)),
		zap.Int("attachments", len(stored)),
	)

	s.publishCreated(ctx, log, in.UserID, t, len(stored))
	return t, nil
}

func (s *Service) storeUpload(ctx context.Context, storedPath string, up Upload) error {
	if up.Open == nil {
		return fmt.Errorf("%s is not a file", up.Filename)
	}
	f, err := up.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", up.Filename, err)
	}
	defer f.Close()
	return s.store.Put(ctx, storedPath, f)
}

func (s *Service) discard(ctx context.Context, log *zap.Logger, paths []string) {
	if len(paths) == 0 {
		return
	}
	if left := s.tracker.Discard(ctx, paths); len(left) > 0 {
		log.Warn("Attachments left for reconciliation", zap.Strings("paths", left))
	}
}

func (s *Service) fail(log *zap.Logger, step string, err error) error {
	metrics.IncrementTaskCreated("failed")
	log.Error("Task creation failed", zap.String("step", step), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrCreateFailed, step, err)
}

// publishCreated sends task.created. Failures are logged only; the task is committed.
func (s *Service) publishCreated(ctx context.Context, log *zap.Logger, userID int, t *model.Task, attachments int) {
	if s.publisher == nil {
		return
	}
	payload := mqcontract.TaskCreatedPayload{
		TaskID:          t.ID,
		UserID:          userID,
		Subject:         t.Subject,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		DueDate:         t.DueDate,
		NotesCount:      t.NotesCount,
		AttachmentCount: attachments,
		CreatedAt:       t.CreatedAt,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	pubCtx, span := otel.MQPublishSpan(pubCtx, mq.ExchangeName, mqcontract.RoutingKeyTaskCreated)
	defer span.End()

	err := s.breaker.Execute(func() error {
		return s.publisher.PublishWithContext(pubCtx, mqcontract.RoutingKeyTaskCreated, payload)
	})
	if err != nil {
		span.RecordError(err)
		log.Warn("Failed to publish task.created",
			zap.Int64("task_id", t.ID),
			zap.String("breaker", s.breaker.State().String()),
			zap.Error(err),
		)
	}
}

// List validates the raw filters and returns matching tasks with their notes.
func (s *Service) List(ctx context.Context, in ListTasksInput) ([]model.Task, error) {
	in.Status = strings.TrimSpace(in.Status)
	in.Priority = strings.TrimSpace(in.Priority)
	in.DueDate = strings.TrimSpace(in.DueDate)

	if errs := s.listSchema().Validate(listValues(in)); errs != nil {
		return nil, errs
	}

	filter := model.TaskFilter{
		Status:   model.Status(in.Status),
		Priority: model.Priority(in.Priority),
	}
	if in.DueDate != "" {
		due, err := s.dates.Normalize(in.DueDate)
		if err != nil {
			return nil, err
		}
		filter.DueDate = due
	}

	tasks, err := s.repo.ListFiltered(ctx, filter)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
