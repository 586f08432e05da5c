// Package tier classifies goal and reward point costs into size tiers and
// derives effort and pricing guidance from them.
package tier

import (
	"fmt"
	"math"

	"github.com/dukerupert/familyxp/internal/config"
)

// Tier is a size class with its recommended price range.
type Tier struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Stars int    `json:"stars"`
	Icon  string `json:"icon"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	upper int
}

// Warning flags a price outside its tier's recommended range.
type Warning struct {
	Direction string `json:"direction"` // "below" or "above"
	Message   string `json:"message"`
}

// Effort expresses a point cost in units of typical tasks.
type Effort struct {
	DailyRoutines   int     `json:"daily_routines"`
	SpecialMissions float64 `json:"special_missions"`
	DailyLabel      string  `json:"daily_label"`
	SpecialLabel    string  `json:"special_label"`
}

// Classifier holds an ordered tier table.
type Classifier struct {
	tiers             []Tier
	dailyTaskPoints   int
	specialTaskPoints int
}

// New builds a Classifier from the configured table, which must already be
// validated (ascending upper bounds, unbounded last tier).
func New(tiers []config.Tier, effort config.Effort) *Classifier {
	c := &Classifier{
		dailyTaskPoints:   effort.DailyTaskPoints,
		specialTaskPoints: effort.SpecialTaskPoints,
	}
	for _, t := range tiers {
		c.tiers = append(c.tiers, Tier{
			Name:  t.Name,
			Label: t.Label,
			Stars: t.Stars,
			Icon:  t.Icon,
			Min:   t.Min,
			Max:   t.Max,
			upper: t.Upper,
		})
	}
	return c
}

// Tiers returns the table in ascending order.
func (c *Classifier) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// ForPoints returns the tier a point value belongs to.
func (c *Classifier) ForPoints(points int) Tier {
	for _, t := range c.tiers[:len(c.tiers)-1] {
		if points <= t.upper {
			return t
		}
	}
	return c.tiers[len(c.tiers)-1]
}

// Lookup finds a tier by name.
func (c *Classifier) Lookup(name string) (Tier, bool) {
	for _, t := range c.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// IsWithinRange reports inclusive membership in the tier's recommended range.
// Adjacent ranges share their edges, so this is advisory only.
func IsWithinRange(points int, t Tier) bool {
	return points >= t.Min && points <= t.Max
}

// PriceWarning returns nil when points sit inside the tier's range.
func PriceWarning(points int, t Tier) *Warning {
	switch {
	case points < t.Min:
		return &Warning{
			Direction: "below",
			Message:   fmt.Sprintf("%d XP is below the recommended range for %s (%d-%d XP)", points, t.Label, t.Min, t.Max),
		}
	case points > t.Max:
		return &Warning{
			Direction: "above",
			Message:   fmt.Sprintf("%d XP is above the recommended range for %s (%d-%d XP)", points, t.Label, t.Min, t.Max),
		}
	}
	return nil
}

// EffortEquivalents uses the configured daily and special task values.
func (c *Classifier) EffortEquivalents(points int) Effort {
	return EffortEquivalents(points, c.dailyTaskPoints, c.specialTaskPoints)
}

// EffortEquivalents expresses points as daily routines (rounded up) and
// special missions (one decimal place).
func EffortEquivalents(points, dailyTaskPoints, specialTaskPoints int) Effort {
	var e Effort
	if dailyTaskPoints > 0 {
		e.DailyRoutines = int(math.Ceil(float64(points) / float64(dailyTaskPoints)))
	}
	if specialTaskPoints > 0 {
		e.SpecialMissions = math.Round(float64(points)/float64(specialTaskPoints)*10) / 10
	}
	e.DailyLabel = fmt.Sprintf("%d daily routines", e.DailyRoutines)
	e.SpecialLabel = fmt.Sprintf("%s special missions", formatOneDecimal(e.SpecialMissions))
	return e
}

func formatOneDecimal(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}

// WeeklyPercentage labels points as a share of a week's earnings.
func WeeklyPercentage(points, weeklyEarnings int) string {
	if weeklyEarnings <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(points)/float64(weeklyEarnings)*100)))
}

// EstimateTimeToGoal labels how long weekly earnings take to close the gap.
func EstimateTimeToGoal(target, current, weeklyEarnings int) string {
	if current >= target {
		return "Ready!"
	}
	if weeklyEarnings <= 0 {
		return "Unable to estimate"
	}
	weeks := int(math.Ceil(float64(target-current) / float64(weeklyEarnings)))
	switch {
	case weeks < 1:
		return "Less than a week"
	case weeks == 1:
		return "About 1 week"
	case weeks < 4:
		return fmt.Sprintf("About %d weeks", weeks)
	case weeks < 8:
		return "About 1 month"
	default:
		return fmt.Sprintf("About %d months", int(math.Round(float64(weeks)/4)))
	}
}
