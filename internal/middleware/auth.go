package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const PINHeader = "X-Parent-PIN"

var (
	ErrPINRequired     = errors.New("parent PIN required")
	ErrPINInvalid      = errors.New("incorrect parent PIN")
	ErrTooManyAttempts = errors.New("too many PIN attempts, try again later")
)

// PINSource looks up a family's PIN hash. An empty hash means no PIN is set.
type PINSource interface {
	GetPINHash(ctx context.Context, familyID int64) (string, error)
}

// PINGate guards parent-only actions with the family PIN. Failed attempts
// are limited per family.
type PINGate struct {
	source  PINSource
	limiter *RateLimiter
	limit   int
	window  time.Duration
}

func NewPINGate(source PINSource, limiter *RateLimiter, limit int, window time.Duration) *PINGate {
	return &PINGate{source: source, limiter: limiter, limit: limit, window: window}
}

// Check verifies the X-Parent-PIN header against familyID's PIN. Families
// without a PIN pass.
func (g *PINGate) Check(r *http.Request, familyID int64) error {
	hash, err := g.source.GetPINHash(r.Context(), familyID)
	if err != nil {
		return err
	}
	if hash == "" {
		return nil
	}

	key := "pin:" + strconv.FormatInt(familyID, 10)
	if g.limiter.Blocked(key, g.limit) {
		return ErrTooManyAttempts
	}
	pin := r.Header.Get(PINHeader)
	if pin == "" {
		return ErrPINRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		g.limiter.Allow(key, g.limit, g.window)
		return ErrPINInvalid
	}
	g.limiter.Reset(key)
	return nil
}

// PINStatus maps gate errors to HTTP statuses; ok is false for other errors.
func PINStatus(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, ErrPINRequired), errors.Is(err, ErrPINInvalid):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests, true
	}
	return 0, false
}

// HashPIN validates a 4 to 8 digit PIN and returns its bcrypt hash.
func HashPIN(pin string) (string, error) {
	if len(pin) < 4 || len(pin) > 8 {
		return "", fmt.Errorf("PIN must be 4 to 8 digits")
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("PIN must be 4 to 8 digits")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}
