package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/familyxp/internal/completion"
	"github.com/dukerupert/familyxp/internal/middleware"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/points"
)

type TaskHandler struct {
	base
}

func NewTaskHandler(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{base: newBase(svc, pins, logger, "task")}
}

type taskRequest struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Points         int                `json:"points"`
	Frequency      model.Frequency    `json:"frequency"`
	ApprovalType   model.ApprovalType `json:"approval_type"`
	TimerMinutes   *int               `json:"timer_minutes"`
	ChecklistItems []string           `json:"checklist_items"`
	Active         *bool              `json:"active"`
}

func (req taskRequest) task() model.Task {
	t := model.Task{
		Title:          req.Title,
		Description:    req.Description,
		Points:         req.Points,
		Frequency:      req.Frequency,
		ApprovalType:   req.ApprovalType,
		TimerMinutes:   req.TimerMinutes,
		ChecklistItems: req.ChecklistItems,
		Active:         true,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}
	return t
}

// Create handles POST /api/families/{id}/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, familyID) {
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t := req.task()
	t.FamilyID = familyID
	created, err := h.svc.CreateTask(r.Context(), t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/families/{id}/tasks. ?active=true hides inactive tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tasks, err := h.svc.ListTasks(r.Context(), familyID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tasks))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cur, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, cur.FamilyID) {
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t := req.task()
	t.ID = id
	if req.Active == nil {
		t.Active = cur.Active
	}
	updated, err := h.svc.UpdateTask(r.Context(), t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cur, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, cur.FamilyID) {
		return
	}
	if err := h.svc.ArchiveTask(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleRequest struct {
	ChildID int64  `json:"child_id"`
	Day     string `json:"day"`
}

func (h *TaskHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParentOfChild(w, r, req.ChildID) {
		return
	}
	inst, err := h.svc.ScheduleTask(r.Context(), id, req.ChildID, req.Day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

type submitRequest struct {
	ChildID    int64                 `json:"child_id"`
	InstanceID *int64                `json:"instance_id"`
	Evidence   completion.Submission `json:"evidence"`
}

// Submit handles a child marking a task done for today.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.SubmitTask(r.Context(), points.SubmitInput{
		TaskID:     id,
		ChildID:    req.ChildID,
		InstanceID: req.InstanceID,
		Evidence:   req.Evidence,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Resubmitted {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

type CompletionHandler struct {
	base
}

func NewCompletionHandler(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{base: newBase(svc, pins, logger, "completion")}
}

// load fetches the completion named in the path and, for parent actions,
// checks the PIN of its family.
func (h *CompletionHandler) load(w http.ResponseWriter, r *http.Request, parent bool) (*model.TaskCompletion, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	c, err := h.svc.GetCompletion(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if parent && !h.requireParentOfChild(w, r, c.ChildID) {
		return nil, false
	}
	return c, true
}

func (h *CompletionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CompletionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, true)
	if !ok {
		return
	}
	approved, err := h.svc.ApproveCompletion(r.Context(), c.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approved)
}

type fixRequest struct {
	Message string `json:"message"`
}

func (h *CompletionHandler) RequestFix(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, true)
	if !ok {
		return
	}
	var req fixRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.RequestFix(r.Context(), c.ID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *CompletionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, true)
	if !ok {
		return
	}
	if err := h.svc.DeleteCompletion(r.Context(), c.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
