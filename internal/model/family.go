package model

import "time"

// Lifecycle tags entities that are archived instead of deleted.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleArchived Lifecycle = "archived"
)

type Family struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ExchangeRate int       `json:"exchange_rate"`
	HasPIN       bool      `json:"has_pin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AgeGroup buckets children for age-appropriate defaults.
type AgeGroup string

const (
	AgeGroupUnknown AgeGroup = "unknown"
	AgeGroupYoung   AgeGroup = "young"
	AgeGroupKid     AgeGroup = "kid"
	AgeGroupTween   AgeGroup = "tween"
	AgeGroupTeen    AgeGroup = "teen"
)

type Child struct {
	ID            int64      `json:"id"`
	FamilyID      int64      `json:"family_id"`
	Name          string     `json:"name"`
	BirthDate     *time.Time `json:"birth_date"`
	PointsBalance int        `json:"points_balance"`
	Lifecycle     Lifecycle  `json:"lifecycle"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AgeGroup classifies the child by age in whole years at now.
func (c Child) AgeGroup(now time.Time) AgeGroup {
	if c.BirthDate == nil {
		return AgeGroupUnknown
	}
	b := *c.BirthDate
	age := now.Year() - b.Year()
	if now.YearDay() < b.YearDay() {
		age--
	}
	switch {
	case age < 0:
		return AgeGroupUnknown
	case age <= 5:
		return AgeGroupYoung
	case age <= 8:
		return AgeGroupKid
	case age <= 12:
		return AgeGroupTween
	default:
		return AgeGroupTeen
	}
}
