// Package milestone detects goal milestone crossings and computes bonuses.
//
// A threshold is a percentage of a goal's target. It is active only when its
// configured bonus is positive; zero or missing bonuses are ignored everywhere.
package milestone

import (
	"fmt"
	"math"
	"slices"
)

// Bonuses maps a threshold percentage to its bonus points.
type Bonuses map[int]int

// Reached is a milestone newly crossed by a deposit.
type Reached struct {
	Percentage int `json:"percentage"`
	Bonus      int `json:"bonus"`
}

// Milestone describes one active threshold of a goal.
type Milestone struct {
	Percentage     int  `json:"percentage"`
	BonusPoints    int  `json:"bonus_points"`
	IsCompleted    bool `json:"is_completed"`
	PointsRequired int  `json:"points_required"`
}

// Progress measures the distance to the next milestone.
type Progress struct {
	Milestone         Milestone `json:"milestone"`
	PointsToMilestone int       `json:"points_to_milestone"`
	PercentComplete   float64   `json:"percent_complete"`
}

// Engine evaluates milestones against a fixed ascending threshold list.
type Engine struct {
	thresholds []int
}

// New returns an Engine over the given ascending thresholds.
func New(thresholds []int) *Engine {
	return &Engine{thresholds: slices.Clone(thresholds)}
}

func (e *Engine) Thresholds() []int { return slices.Clone(e.thresholds) }

// Crossed reports whether moving from oldPoints to newPoints passes pct of
// target, using exact integer comparison: old*100 < pct*target <= new*100.
func Crossed(oldPoints, newPoints, target, pct int, completed []int) bool {
	if target <= 0 || slices.Contains(completed, pct) {
		return false
	}
	mark := pct * target
	return oldPoints*100 < mark && mark <= newPoints*100
}

// FirstCrossed returns the lowest active threshold crossed by the move, or
// nil. A deposit that jumps several thresholds reports only the first.
func (e *Engine) FirstCrossed(oldPoints, newPoints, target int, bonuses Bonuses, completed []int) *Reached {
	for _, pct := range e.thresholds {
		bonus := bonuses[pct]
		if bonus <= 0 {
			continue
		}
		if Crossed(oldPoints, newPoints, target, pct, completed) {
			return &Reached{Percentage: pct, Bonus: bonus}
		}
	}
	return nil
}

// PointsRequired is the progress at which pct of target is reached.
func PointsRequired(target, pct int) int {
	return int(math.Ceil(float64(target) * float64(pct) / 100))
}

// Next returns the first active threshold not completed and not yet reached.
func (e *Engine) Next(current, target int, bonuses Bonuses, completed []int) *Milestone {
	if target <= 0 {
		return nil
	}
	for _, pct := range e.thresholds {
		bonus := bonuses[pct]
		if bonus <= 0 || slices.Contains(completed, pct) {
			continue
		}
		if current*100 < pct*target {
			return &Milestone{
				Percentage:     pct,
				BonusPoints:    bonus,
				PointsRequired: PointsRequired(target, pct),
			}
		}
	}
	return nil
}

// All lists every active threshold. Inert thresholds are omitted.
func (e *Engine) All(target, current int, bonuses Bonuses, completed []int) []Milestone {
	out := []Milestone{}
	for _, pct := range e.thresholds {
		bonus := bonuses[pct]
		if bonus <= 0 {
			continue
		}
		out = append(out, Milestone{
			Percentage:     pct,
			BonusPoints:    bonus,
			IsCompleted:    slices.Contains(completed, pct),
			PointsRequired: PointsRequired(target, pct),
		})
	}
	return out
}

// TotalBonus sums the positive bonuses.
func TotalBonus(bonuses Bonuses) int {
	total := 0
	for _, b := range bonuses {
		if b > 0 {
			total += b
		}
	}
	return total
}

// NetPointsNeeded is what a child must deposit once every bonus is paid.
func NetPointsNeeded(target int, bonuses Bonuses) int {
	return max(0, target-TotalBonus(bonuses))
}

// HasMilestones reports whether any threshold carries a positive bonus.
func HasMilestones(bonuses Bonuses) bool {
	for _, b := range bonuses {
		if b > 0 {
			return true
		}
	}
	return false
}

// ProgressToNext measures progress toward Next, or nil when none remains.
func (e *Engine) ProgressToNext(current, target int, bonuses Bonuses, completed []int) *Progress {
	next := e.Next(current, target, bonuses, completed)
	if next == nil {
		return nil
	}
	p := &Progress{
		Milestone:         *next,
		PointsToMilestone: max(0, next.PointsRequired-current),
		PercentComplete:   100,
	}
	if next.PointsRequired > 0 {
		p.PercentComplete = math.Min(100, float64(current)/float64(next.PointsRequired)*100)
	}
	return p
}

// SuggestedBonuses is a default schedule offered to parents. It is never
// applied without their confirmation.
func SuggestedBonuses(target int) Bonuses {
	base := int(math.Round(float64(target) * 0.05))
	return Bonuses{
		25: max(10, base),
		50: max(15, int(math.Round(float64(base)*1.5))),
		75: max(20, base*2),
	}
}

// Validate rejects bonuses keyed on unknown thresholds or with negative values.
func (e *Engine) Validate(bonuses Bonuses) error {
	for pct, b := range bonuses {
		if !slices.Contains(e.thresholds, pct) {
			return fmt.Errorf("milestone %d%% is not one of %v", pct, e.thresholds)
		}
		if b < 0 {
			return fmt.Errorf("milestone %d%% bonus must not be negative", pct)
		}
	}
	return nil
}
