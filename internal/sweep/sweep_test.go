package sweep

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/familyxp/internal/points"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeProcessor) ProcessExpired(ctx context.Context) (points.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return points.SweepResult{AutoApproved: 1}, f.err
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSchedulerRunsUntilStopped(t *testing.T) {
	proc := &fakeProcessor{}
	s := NewScheduler(proc, 10*time.Millisecond, slog.Default())

	s.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for proc.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	n := proc.count()
	if n < 3 {
		t.Fatalf("calls = %d, want at least 3", n)
	}
	time.Sleep(30 * time.Millisecond)
	if got := proc.count(); got != n {
		t.Errorf("calls after stop = %d, want %d", got, n)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := NewScheduler(&fakeProcessor{}, time.Hour, nil)
	s.Stop()
}

func TestRunOnceLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	proc := &fakeProcessor{err: errors.New("database is locked")}
	s := NewScheduler(proc, time.Hour, logger)

	res := s.RunOnce(context.Background())
	if res.AutoApproved != 1 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(buf.String(), "database is locked") {
		t.Errorf("log = %q, want the error", buf.String())
	}
}
