package capacity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// ErrInvalidConfig is returned for capacity settings that cannot be scheduled.
var ErrInvalidConfig = errors.New("capacity: invalid configuration")

// Config holds the scheduling rules of the estimator.
type Config struct {
	// Capacity is the daily ceiling per class.
	Capacity map[Class]int
	// RushHours is the delivery window of each rush class.
	RushHours map[Class]int
	// Surcharges are reported by estimates as fractions, e.g. 0.25.
	Surcharges       map[Class]pricing.Money
	NonWorkingDays   []time.Weekday
	BaseDeliveryDays int
	// QueueStepPercent adds one business day per step of regular utilisation.
	QueueStepPercent int
	// SearchDays bounds the calendar-day search for the next rush slot.
	SearchDays int
	// FallbackBusinessDays is used when the search finds nothing.
	FallbackBusinessDays int
	Location             *time.Location
}

// DefaultConfig returns the reference deployment settings.
func DefaultConfig() Config {
	return Config{
		Capacity:             map[Class]int{ClassRegular: 15, ClassRush24h: 5, ClassRush12h: 2},
		RushHours:            map[Class]int{ClassRush24h: 24, ClassRush12h: 12},
		Surcharges:           map[Class]pricing.Money{ClassRegular: pricing.Zero, ClassRush24h: pricing.NewMoney("0.25"), ClassRush12h: pricing.NewMoney("0.50")},
		NonWorkingDays:       []time.Weekday{time.Saturday, time.Sunday},
		BaseDeliveryDays:     2,
		QueueStepPercent:     25,
		SearchDays:           7,
		FallbackBusinessDays: 7,
		Location:             time.UTC,
	}
}

// SurchargesFromCatalog reads rush surcharges from the pricing catalog so
// estimates report the same percentages quotes charge.
func SurchargesFromCatalog(c *pricing.Catalog) map[Class]pricing.Money {
	out := map[Class]pricing.Money{ClassRegular: pricing.Zero}
	for class, key := range map[Class]string{ClassRush24h: pricing.AddOnRush24h, ClassRush12h: pricing.AddOnRush12h} {
		if a, ok := c.Lookup(key); ok {
			out[class] = a.Percentage
		}
	}
	return out
}

// Validate checks the configuration.
func (c Config) Validate() error {
	for _, class := range Classes() {
		if c.Capacity[class] < 0 {
			return fmt.Errorf("%w: negative capacity for %s", ErrInvalidConfig, class)
		}
		if class.IsRush() && c.RushHours[class] <= 0 {
			return fmt.Errorf("%w: %s needs positive service hours", ErrInvalidConfig, class)
		}
	}
	if c.BaseDeliveryDays < 0 {
		return fmt.Errorf("%w: negative base delivery days", ErrInvalidConfig)
	}
	if c.QueueStepPercent <= 0 {
		return fmt.Errorf("%w: queue step must be positive", ErrInvalidConfig)
	}
	if c.SearchDays < 0 || c.FallbackBusinessDays <= 0 {
		return fmt.Errorf("%w: search and fallback windows must be positive", ErrInvalidConfig)
	}
	if _, err := NewCalendar(c.NonWorkingDays...); err != nil {
		return err
	}
	return nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays parses a comma-separated list such as "sat,sun".
func ParseWeekdays(csv string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		d, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("capacity: unknown weekday %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}
