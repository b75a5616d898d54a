package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/models"
)

// TaskLister lists the tasks a focus session can be started for.
type TaskLister interface {
	ListTasks(ctx context.Context) ([]*models.Task, error)
}

type TaskHandler struct {
	tasks TaskLister
}

func NewTaskHandler(tasks TaskLister) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// HandleListTasks handles GET /api/tasks
func (h *TaskHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListTasks(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list tasks")
		http.Error(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.HandleListTasks)
}
