package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type pinSource map[int64]string

func (p pinSource) GetPINHash(ctx context.Context, familyID int64) (string, error) {
	return p[familyID], nil
}

func pinRequest(pin string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/completions/1/approve", nil)
	if pin != "" {
		req.Header.Set(PINHeader, pin)
	}
	return req
}

func newTestGate(t *testing.T) *PINGate {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("2468"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return NewPINGate(pinSource{1: string(hash)}, NewRateLimiter(), 3, time.Minute)
}

func TestPINGateNoPINSet(t *testing.T) {
	gate := newTestGate(t)
	if err := gate.Check(pinRequest(""), 2); err != nil {
		t.Errorf("family without PIN err = %v, want nil", err)
	}
}

func TestPINGateChecksHeader(t *testing.T) {
	gate := newTestGate(t)

	if err := gate.Check(pinRequest(""), 1); !errors.Is(err, ErrPINRequired) {
		t.Errorf("missing pin err = %v, want ErrPINRequired", err)
	}
	if err := gate.Check(pinRequest("1111"), 1); !errors.Is(err, ErrPINInvalid) {
		t.Errorf("wrong pin err = %v, want ErrPINInvalid", err)
	}
	if err := gate.Check(pinRequest("2468"), 1); err != nil {
		t.Errorf("correct pin err = %v", err)
	}
}

func TestPINGateLimitsFailures(t *testing.T) {
	gate := newTestGate(t)

	for i := 0; i < 3; i++ {
		if err := gate.Check(pinRequest("0000"), 1); !errors.Is(err, ErrPINInvalid) {
			t.Fatalf("attempt %d err = %v", i+1, err)
		}
	}
	err := gate.Check(pinRequest("2468"), 1)
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("locked out err = %v, want ErrTooManyAttempts", err)
	}
	if status, ok := PINStatus(err); !ok || status != http.StatusTooManyRequests {
		t.Errorf("PINStatus = %d, %v", status, ok)
	}
}

func TestHashPIN(t *testing.T) {
	for _, bad := range []string{"", "123", "123456789", "12a4"} {
		if _, err := HashPIN(bad); err == nil {
			t.Errorf("HashPIN(%q) should fail", bad)
		}
	}
	hash, err := HashPIN("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("1234")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}
