package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknotes/internal/model"
	"tasknotes/internal/service/task"
	"tasknotes/pkg/logger"
)

type TaskService interface {
	Create(ctx context.Context, in task.CreateTaskInput) (*model.Task, error)
	List(ctx context.Context, in task.ListTasksInput) ([]model.Task, error)
}

type TaskHandler struct {
	taskService TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, logger: logger}
}

// CreateTask handles POST /tasks/create
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var in task.CreateTaskInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			respondMalformed(c)
			return
		}
		if in, err = fromMultipart(form); err != nil {
			respondMalformed(c)
			return
		}
	} else {
		var req createTaskRequest
		// an empty body is validated like an empty object
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondMalformed(c)
			return
		}
		in = req.input()
	}
	in.UserID = userID

	created, err := h.taskService.Create(c.Request.Context(), in)
	if err != nil {
		if respondValidation(c, err) {
			return
		}
		if !errors.Is(err, task.ErrCreateFailed) {
			logger.WithTrace(c.Request.Context(), h.logger).Error("Unexpected create error", zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "An error occurred while creating the task and notes.",
		})
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Debug("Create task handled",
		zap.Int64("task_id", created.ID),
	)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Task created successfully with associated notes and attachments.",
	})
}

// GetTasks handles GET /tasks?filter[status]=&filter[priority]=&filter[due_date]=
func (h *TaskHandler) GetTasks(c *gin.Context) {
	if _, ok := getUserID(c); !ok {
		return
	}

	filter := c.QueryMap("filter")
	tasks, err := h.taskService.List(c.Request.Context(), task.ListTasksInput{
		Status:   filter["status"],
		Priority: filter["priority"],
		DueDate:  filter["due_date"],
	})
	if err != nil {
		if respondValidation(c, err) {
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "An error occurred while listing tasks.",
		})
		return
	}

	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tasks":   tasks,
	})
}
