// Package exchange converts between points and real-world currency for
// parent-facing valuation. Nothing here mutates balances.
package exchange

import (
	"fmt"
	"math"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dukerupert/familyxp/internal/config"
)

// DefaultDailyAverage is the assumed points a child earns per day.
const DefaultDailyAverage = 220

var hundred = decimal.NewFromInt(100)

// Converter applies a configured set of exchange rates. A rate means
// "$1 equals N points".
type Converter struct {
	rates        []int
	defaultRate  int
	unit         currency.Unit
	dailyAverage int
}

// New builds a Converter from validated configuration.
func New(cfg config.Exchange) (*Converter, error) {
	code := cfg.Currency
	if code == "" {
		code = "USD"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	daily := cfg.DailyAverage
	if daily == 0 {
		daily = DefaultDailyAverage
	}
	return &Converter{
		rates:        slices.Clone(cfg.Rates),
		defaultRate:  cfg.Default,
		unit:         unit,
		dailyAverage: daily,
	}, nil
}

func (c *Converter) Rates() []int { return slices.Clone(c.rates) }

func (c *Converter) DefaultRate() int { return c.defaultRate }

// DailyAverage is the configured points-per-day used for time estimates.
func (c *Converter) DailyAverage() int { return c.dailyAverage }

// IsValidRate reports whether n is one of the configured rates.
func (c *Converter) IsValidRate(n int) bool {
	return slices.Contains(c.rates, n)
}

func (c *Converter) rate(r int) int64 {
	if r <= 0 {
		return int64(c.defaultRate)
	}
	return int64(r)
}

// PointsFromDollars returns round(dollars * rate). A non-positive rate
// selects the default.
func (c *Converter) PointsFromDollars(dollars decimal.Decimal, rate int) int {
	return int(dollars.Mul(decimal.NewFromInt(c.rate(rate))).Round(0).IntPart())
}

// DollarValue returns points / rate.
func (c *Converter) DollarValue(points int, rate int) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Div(decimal.NewFromInt(c.rate(rate)))
}

// FormatPointsAsCurrency renders the dollar value of points in the given
// locale. Unparseable locales fall back to English.
func (c *Converter) FormatPointsAsCurrency(points, rate int, locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	amount, _ := c.DollarValue(points, rate).Float64()
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(c.unit.Amount(amount)))
}

// DollarsToCents returns round(dollars * 100).
func DollarsToCents(dollars decimal.Decimal) int64 {
	return dollars.Mul(hundred).Round(0).IntPart()
}

// CentsToDollars returns cents / 100.
func CentsToDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// DaysNeeded returns how many days of dailyAverage earnings close the gap
// between current and target. It is +Inf when dailyAverage <= 0.
func DaysNeeded(target, current, dailyAverage int) float64 {
	if dailyAverage <= 0 {
		return math.Inf(1)
	}
	remaining := max(target-current, 0)
	return math.Ceil(float64(remaining) / float64(dailyAverage))
}

// FormatTimeEstimate renders a day count as a human label.
func FormatTimeEstimate(days int) string {
	switch {
	case days <= 0:
		return "Ready now!"
	case days == 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days < 14:
		return "About 1 week"
	case days < 30:
		return fmt.Sprintf("About %d weeks", int(math.Round(float64(days)/7)))
	case days < 60:
		return "About 1 month"
	default:
		return fmt.Sprintf("About %d months", int(math.Round(float64(days)/30)))
	}
}

// EstimateLabel combines DaysNeeded and FormatTimeEstimate.
func EstimateLabel(target, current, dailyAverage int) string {
	days := DaysNeeded(target, current, dailyAverage)
	if math.IsInf(days, 1) {
		return "Unable to estimate"
	}
	return FormatTimeEstimate(int(days))
}
