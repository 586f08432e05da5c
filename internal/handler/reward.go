package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/middleware"
	"github.com/dukerupert/familyxp/internal/model"
	"github.com/dukerupert/familyxp/internal/points"
)

type RewardHandler struct {
	base
}

func NewRewardHandler(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{base: newBase(svc, pins, logger, "reward")}
}

type rewardRequest struct {
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	PointsCost    int                  `json:"points_cost"`
	Category      model.RewardCategory `json:"category"`
	ScreenMinutes *int                 `json:"screen_minutes"`
	WeeklyLimit   *int                 `json:"weekly_limit"`
	Active        *bool                `json:"active"`
}

func (req rewardRequest) reward() model.Reward {
	rw := model.Reward{
		Title:         req.Title,
		Description:   req.Description,
		PointsCost:    req.PointsCost,
		Category:      req.Category,
		ScreenMinutes: req.ScreenMinutes,
		WeeklyLimit:   req.WeeklyLimit,
		Active:        true,
	}
	if req.Active != nil {
		rw.Active = *req.Active
	}
	return rw
}

// Create handles POST /api/families/{id}/rewards.
func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, familyID) {
		return
	}
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rw := req.reward()
	rw.FamilyID = familyID
	created, err := h.svc.CreateReward(r.Context(), rw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/families/{id}/rewards. ?active=true hides inactive rewards.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rewards, err := h.svc.ListRewards(r.Context(), familyID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rewards))
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rw, err := h.svc.GetReward(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cur, err := h.svc.GetReward(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, cur.FamilyID) {
		return
	}
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rw := req.reward()
	rw.ID = id
	if req.Active == nil {
		rw.Active = cur.Active
	}
	updated, err := h.svc.UpdateReward(r.Context(), rw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type purchaseRequest struct {
	ChildID int64  `json:"child_id"`
	Message string `json:"message"`
}

func (h *RewardHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.PurchaseReward(r.Context(), id, req.ChildID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *RewardHandler) Gift(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParentOfChild(w, r, req.ChildID) {
		return
	}
	t, err := h.svc.GiftReward(r.Context(), id, req.ChildID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type TicketHandler struct {
	base
	actions map[string]ticketAction
}

type ticketAction struct {
	parent bool
	apply  func(ctx context.Context, id int64) (*points.TicketResult, error)
}

func NewTicketHandler(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		base: newBase(svc, pins, logger, "ticket"),
		actions: map[string]ticketAction{
			"cancel":      {apply: svc.CancelTicket},
			"request-use": {apply: svc.RequestUse},
			"pause":       {apply: svc.PauseUse},
			"resume":      {apply: svc.ResumeUse},
			"finish":      {apply: svc.FinishUse},
			"approve-use": {parent: true, apply: svc.ApproveUse},
			"deny-use":    {parent: true, apply: svc.DenyUse},
			"fulfill":     {parent: true, apply: svc.FulfillTicket},
		},
	}
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.GetTicket(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Act handles POST /api/tickets/{id}/{action}.
func (h *TicketHandler) Act(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	act, ok := h.actions[r.PathValue("action")]
	if !ok {
		h.fail(w, r, apperr.NotFound("unknown ticket action"))
		return
	}
	if act.parent {
		t, err := h.svc.GetTicket(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !h.requireParentOfChild(w, r, t.ChildID) {
			return
		}
	}
	res, err := act.apply(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
