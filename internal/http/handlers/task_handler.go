// README: Task list handler.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillments/internal/modules/tasks"
	"fulfillments/internal/types"
)

type TaskLister interface {
	GetTasks(ctx context.Context, channelID types.ID) ([]tasks.Task, error)
}

type TaskHandler struct {
	tasks TaskLister
}

func NewTaskHandler(svc TaskLister) *TaskHandler {
	return &TaskHandler{tasks: svc}
}

func (h *TaskHandler) List(c *gin.Context) {
	ch, ok := channelID(c)
	if !ok {
		return
	}
	list, err := h.tasks.GetTasks(c.Request.Context(), ch)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if list == nil {
		list = []tasks.Task{}
	}
	writeJSON(c, http.StatusOK, list)
}
