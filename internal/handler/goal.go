package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/familyxp/internal/middleware"
	"github.com/dukerupert/familyxp/internal/milestone"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/points"
)

type GoalHandler struct {
	base
}

func NewGoalHandler(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{base: newBase(svc, pins, logger, "goal")}
}

type goalRequest struct {
	Title            string      `json:"title"`
	TargetPoints     int         `json:"target_points"`
	MilestoneBonuses map[int]int `json:"milestone_bonuses"`
}

// Create handles POST /api/children/{id}/goals.
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.svc.CreateGoal(r.Context(), points.GoalInput{
		ChildID:          childID,
		Title:            req.Title,
		TargetPoints:     req.TargetPoints,
		MilestoneBonuses: req.MilestoneBonuses,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GoalHandler) load(w http.ResponseWriter, r *http.Request, parent bool) (*model.Goal, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	g, err := h.svc.GetGoal(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if parent && !h.requireParentOfChild(w, r, g.ChildID) {
		return nil, false
	}
	return g, true
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, ok := h.load(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Summary returns the goal with its tier, milestones and time estimate.
func (h *GoalHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum, err := h.svc.GetGoalSummary(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type depositRequest struct {
	Amount int `json:"amount"`
}

func (h *GoalHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Deposit(r.Context(), id, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type targetRequest struct {
	TargetPoints int    `json:"target_points"`
	Reason       string `json:"reason"`
}

func (h *GoalHandler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	g, ok := h.load(w, r, true)
	if !ok {
		return
	}
	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.UpdateGoalTarget(r.Context(), g.ID, req.TargetPoints, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type bonusesRequest struct {
	MilestoneBonuses map[int]int `json:"milestone_bonuses"`
}

func (h *GoalHandler) UpdateBonuses(w http.ResponseWriter, r *http.Request) {
	g, ok := h.load(w, r, true)
	if !ok {
		return
	}
	var req bonusesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.UpdateGoalBonuses(r.Context(), g.ID, req.MilestoneBonuses)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *GoalHandler) Archive(w http.ResponseWriter, r *http.Request) {
	g, ok := h.load(w, r, true)
	if !ok {
		return
	}
	if err := h.svc.ArchiveGoal(r.Context(), g.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SuggestBonuses handles GET /api/milestones/suggest?target=N. The result is
// only a proposal for the goal form.
func (h *GoalHandler) SuggestBonuses(w http.ResponseWriter, r *http.Request) {
	target, err := queryInt(r, "target")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target":            target,
		"thresholds":        h.svc.Milestones().Thresholds(),
		"milestone_bonuses": milestone.SuggestedBonuses(target),
	})
}
