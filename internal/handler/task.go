package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/house"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/task"
	"github.com/dukerupert/flatmate/internal/websocket"
)

type TaskHandler struct {
	tasks  *task.Service
	houses *house.Service
	hub    Broadcaster
	logger *slog.Logger
}

func NewTaskHandler(tasks *task.Service, houses *house.Service, hub Broadcaster, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, houses: houses, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(r *http.Request, action string, t *model.Task) {
	if h.hub == nil {
		return
	}
	ids, err := h.houses.AudienceIDs(r.Context(), t.HouseID)
	if err != nil {
		h.logger.Warn("broadcast audience", "house_id", t.HouseID, "error", err)
		return
	}
	var data any
	if action != "deleted" {
		data = t
	}
	h.hub.BroadcastTo(ids, websocket.NewMessage("task", action, t.ID, t.HouseID, data))
}

// List serves both /tasks and /tasks/today. Tasks are not filtered by date.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var houseID *int64
	if v := r.URL.Query().Get("house_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "invalid house_id")
			return
		}
		houseID = &id
	}

	tasks, err := h.tasks.List(r.Context(), auth.UserID(r.Context()), houseID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	HouseID     int64   `json:"house_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	AssignedTo  *string `json:"assigned_to"`
	Deadline    *string `json:"deadline"`
	Priority    *string `json:"priority"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	t, err := h.tasks.Create(r.Context(), auth.UserID(r.Context()), req.HouseID, task.Input{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Deadline:    req.Deadline,
		Priority:    req.Priority,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(r, "created", t)
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}

	t, err := h.tasks.Get(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AssignedTo  *string `json:"assigned_to"`
	Deadline    *string `json:"deadline"`
	Priority    *string `json:"priority"`
	Completed   *bool   `json:"completed"`
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	t, err := h.tasks.Update(r.Context(), auth.UserID(r.Context()), id, task.Patch{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Deadline:    req.Deadline,
		Priority:    req.Priority,
		Completed:   req.Completed,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(r, "updated", t)
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}

	t, err := h.tasks.Complete(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(r, "completed", t)
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeBadRequest(w, "invalid id")
		return
	}

	t, err := h.tasks.Delete(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(r, "deleted", t)
	writeMessage(w, "Task deleted successfully")
}
