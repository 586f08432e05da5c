package tier

import (
	"testing"

	"github.com/dukerupert/familyxp/internal/config"
)

func newTestClassifier() *Classifier {
	cfg := config.Default()
	return New(cfg.Tiers, cfg.Effort)
}

func TestForPointsBoundaries(t *testing.T) {
	c := newTestClassifier()
	tests := []struct {
		points int
		want   string
	}{
		{0, "small"},
		{150, "small"},
		{200, "small"},
		{201, "medium"},
		{400, "medium"},
		{401, "large"},
		{1000, "large"},
		{1001, "xl"},
		{50000, "xl"},
	}
	for _, tt := range tests {
		if got := c.ForPoints(tt.points).Name; got != tt.want {
			t.Errorf("ForPoints(%d) = %q, want %q", tt.points, got, tt.want)
		}
	}
}

func TestTierAttributes(t *testing.T) {
	c := newTestClassifier()
	for i, name := range []string{"small", "medium", "large", "xl"} {
		tr, ok := c.Lookup(name)
		if !ok {
			t.Fatalf("lookup %q failed", name)
		}
		if tr.Stars != i+1 {
			t.Errorf("%s stars = %d, want %d", name, tr.Stars, i+1)
		}
	}
	if _, ok := c.Lookup("giant"); ok {
		t.Error("expected lookup of unknown tier to fail")
	}
}

func TestIsWithinRangeSharedEdges(t *testing.T) {
	c := newTestClassifier()
	small, _ := c.Lookup("small")
	medium, _ := c.Lookup("medium")

	if !IsWithinRange(200, small) || !IsWithinRange(200, medium) {
		t.Error("200 should be inside both small and medium ranges")
	}
	if IsWithinRange(99, small) {
		t.Error("99 should be below small range")
	}
}

func TestPriceWarning(t *testing.T) {
	c := newTestClassifier()
	large, _ := c.Lookup("large")

	if w := PriceWarning(500, large); w != nil {
		t.Errorf("expected no warning, got %+v", w)
	}
	w := PriceWarning(300, large)
	if w == nil || w.Direction != "below" {
		t.Fatalf("expected below warning, got %+v", w)
	}
	if w.Message != "300 XP is below the recommended range for Large (400-1000 XP)" {
		t.Errorf("message = %q", w.Message)
	}
	if w := PriceWarning(1200, large); w == nil || w.Direction != "above" {
		t.Errorf("expected above warning, got %+v", w)
	}
}

func TestEffortEquivalents(t *testing.T) {
	e := EffortEquivalents(200, 50, 150)
	if e.DailyRoutines != 4 {
		t.Errorf("daily routines = %d, want 4", e.DailyRoutines)
	}
	if e.SpecialMissions != 1.3 {
		t.Errorf("special missions = %v, want 1.3", e.SpecialMissions)
	}
	if e.SpecialLabel != "1.3 special missions" {
		t.Errorf("special label = %q", e.SpecialLabel)
	}

	e = newTestClassifier().EffortEquivalents(301)
	if e.DailyRoutines != 7 {
		t.Errorf("daily routines = %d, want 7", e.DailyRoutines)
	}
	if e.SpecialLabel != "2 special missions" {
		t.Errorf("special label = %q", e.SpecialLabel)
	}
}

func TestWeeklyPercentage(t *testing.T) {
	if got := WeeklyPercentage(100, 0); got != "N/A" {
		t.Errorf("got %q, want N/A", got)
	}
	if got := WeeklyPercentage(150, 400); got != "38%" {
		t.Errorf("got %q, want 38%%", got)
	}
}

func TestEstimateTimeToGoal(t *testing.T) {
	tests := []struct {
		target, current, weekly int
		want                    string
	}{
		{100, 100, 50, "Ready!"},
		{100, 0, 0, "Unable to estimate"},
		{100, 0, 100, "About 1 week"},
		{100, 0, 40, "About 3 weeks"},
		{400, 0, 100, "About 1 month"},
		{700, 0, 100, "About 1 month"},
		{800, 0, 100, "About 2 months"},
		{2000, 0, 100, "About 5 months"},
	}
	for _, tt := range tests {
		if got := EstimateTimeToGoal(tt.target, tt.current, tt.weekly); got != tt.want {
			t.Errorf("EstimateTimeToGoal(%d, %d, %d) = %q, want %q", tt.target, tt.current, tt.weekly, got, tt.want)
		}
	}
}
