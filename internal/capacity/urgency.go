package capacity

import (
	"context"
	"fmt"
	"time"
)

// Level is a coarse urgency severity.
type Level string

const (
	LevelNormal Level = "normal"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Urgency is the banner shown next to the order form.
type Urgency struct {
	Level       Level  `json:"level"`
	Color       string `json:"color"`
	Message     string `json:"message"`
	PercentUsed int    `json:"percentUsed"`
	Remaining   int    `json:"remaining"`
	Started     int    `json:"started"`
}

// UrgencyFor derives the indicator from regular-class usage. The thresholds
// are 90, 70 and 50 percent used.
func UrgencyFor(regular ClassStatus) Urgency {
	u := Urgency{PercentUsed: regular.PercentUsed, Remaining: regular.Available, Started: regular.Current}
	switch pct := regular.PercentUsed; {
	case pct >= 90:
		u.Level, u.Color = LevelHigh, "red"
		u.Message = "Only 1-2 slots left today"
	case pct >= 70:
		u.Level, u.Color = LevelMedium, "orange"
		u.Message = fmt.Sprintf("%d slots remaining today", regular.Available)
	case pct >= 50:
		u.Level, u.Color = LevelLow, "yellow"
		u.Message = fmt.Sprintf("%d orders started today", regular.Current)
	default:
		u.Level, u.Color = LevelNormal, "green"
		u.Message = "Slots available today"
	}
	return u
}

// Urgency reports the indicator for the day of at.
func (e *Estimator) Urgency(ctx context.Context, at time.Time) (Urgency, error) {
	st, err := e.Status(ctx, at)
	if err != nil {
		return Urgency{}, err
	}
	return UrgencyFor(st.Regular), nil
}
