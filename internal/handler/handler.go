// Package handler exposes the points service as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/familyxp/internal/apperr"
	"github.com/dukerupert/familyxp/internal/middleware"
	"github.com/dukerupert/familyxp/internal/points"
)

// base carries what every handler needs.
type base struct {
	svc    *points.Service
	pins   *middleware.PINGate
	logger *slog.Logger
}

func newBase(svc *points.Service, pins *middleware.PINGate, logger *slog.Logger, component string) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{svc: svc, pins: pins, logger: logger.With("component", component)}
}

// fail writes err as a JSON error. Business errors keep their message;
// anything else is logged in full and reported generically.
func (b *base) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, ok := middleware.PINStatus(err); ok {
		b.logger.Warn("parent check failed", "path", r.URL.Path, "error", err,
			"request_id", middleware.RequestID(r.Context()))
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err,
			"request_id", middleware.RequestID(r.Context()))
	} else {
		b.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "error", err,
			"request_id", middleware.RequestID(r.Context()))
	}
	writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

// requireParent checks the parent PIN for familyID, writing the error
// response when it does not pass.
func (b *base) requireParent(w http.ResponseWriter, r *http.Request, familyID int64) bool {
	if b.pins == nil {
		return true
	}
	if err := b.pins.Check(r, familyID); err != nil {
		b.fail(w, r, err)
		return false
	}
	return true
}

// requireParentOfChild is requireParent for the family owning childID.
func (b *base) requireParentOfChild(w http.ResponseWriter, r *http.Request, childID int64) bool {
	familyID, err := b.svc.FamilyOfChild(r.Context(), childID)
	if err != nil {
		b.fail(w, r, err)
		return false
	}
	return b.requireParent(w, r, familyID)
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Validation("invalid JSON")
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validationf("%s must be a number", key)
	}
	return n, nil
}

// emptyIfNil keeps JSON lists as [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
