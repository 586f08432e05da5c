package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/points"
)

// ValuationHandler serves the pricing guidance parents see while setting
// point costs.
type ValuationHandler struct {
	base
}

func NewValuationHandler(svc *points.Service, logger *slog.Logger) *ValuationHandler {
	return &ValuationHandler{base: newBase(svc, nil, logger, "valuation")}
}

// Estimate handles GET /api/estimate?points=N&family_id=ID&locale=L.
func (h *ValuationHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	pts, err := queryInt(r, "points")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var familyID int64
	if v := r.URL.Query().Get("family_id"); v != "" {
		familyID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.fail(w, r, apperr.Validation("family_id must be a number"))
			return
		}
	}
	q, err := h.svc.Quote(r.Context(), familyID, pts, r.URL.Query().Get("locale"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Tiers handles GET /api/tiers.
func (h *ValuationHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tiers":          h.svc.Tiers().Tiers(),
		"exchange_rates": h.svc.Exchange().Rates(),
		"default_rate":   h.svc.Exchange().DefaultRate(),
	})
}
