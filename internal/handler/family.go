package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/middleware"
	"github.com/dukerupert/familyxp/internal/points"
)

type FamilyHandler struct {
	base
}

func NewFamilyHandler(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{base: newBase(svc, pins, logger, "family")}
}

type familyRequest struct {
	Name         string `json:"name"`
	ExchangeRate int    `json:"exchange_rate"`
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := h.svc.CreateFamily(r.Context(), strings.TrimSpace(req.Name), req.ExchangeRate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := h.svc.GetFamily(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, id) {
		return
	}
	var req familyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := h.svc.UpdateFamily(r.Context(), id, strings.TrimSpace(req.Name), req.ExchangeRate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPIN sets or replaces the parent PIN. Replacing requires the current PIN.
func (h *FamilyHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, id) {
		return
	}
	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	hash, err := middleware.HashPIN(req.PIN)
	if err != nil {
		h.fail(w, r, apperr.Validation(err.Error()))
		return
	}
	if err := h.svc.SetPIN(r.Context(), id, hash); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *FamilyHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, id) {
		return
	}
	if err := h.svc.SetPIN(r.Context(), id, ""); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VerifyPIN lets a client check the PIN before showing parent screens.
func (h *FamilyHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.svc.GetFamily(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, id) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *FamilyHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	children, err := h.svc.ListChildren(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(children))
}

type childRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

func (req childRequest) birthDate() (*time.Time, error) {
	if req.BirthDate == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return nil, apperr.Validation("birth_date must be YYYY-MM-DD")
	}
	return &t, nil
}

func (h *FamilyHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParent(w, r, id) {
		return
	}
	var req childRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	birth, err := req.birthDate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.CreateChild(r.Context(), id, strings.TrimSpace(req.Name), birth)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *FamilyHandler) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pending, err := h.svc.ListPendingReviews(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(pending))
}

type ChildHandler struct {
	base
}

func NewChildHandler(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{base: newBase(svc, pins, logger, "child")}
}

func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.GetChild(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"child":     c,
		"age_group": c.AgeGroup(time.Now()),
	})
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParentOfChild(w, r, id) {
		return
	}
	var req childRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	birth, err := req.birthDate()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.UpdateChild(r.Context(), id, strings.TrimSpace(req.Name), birth)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChildHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParentOfChild(w, r, id) {
		return
	}
	if err := h.svc.ArchiveChild(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

func (h *ChildHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.requireParentOfChild(w, r, id) {
		return
	}
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.svc.AdjustPoints(r.Context(), id, req.Amount, strings.TrimSpace(req.Reason))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *ChildHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.svc.ListLedger(r.Context(), id, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

func (h *ChildHandler) Completions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.ListCompletions(r.Context(), id, r.URL.Query().Get("day"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *ChildHandler) Instances(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.ListInstances(r.Context(), id, r.URL.Query().Get("day"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *ChildHandler) Goals(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.ListGoals(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *ChildHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.ListActiveTickets(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}
