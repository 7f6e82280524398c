package capacity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/snapstudio-api/internal/obs"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// ClassStatus is one class's usage for a day.
type ClassStatus struct {
	Class       Class `json:"class"`
	Current     int   `json:"current"`
	Capacity    int   `json:"capacity"`
	Available   int   `json:"available"`
	PercentUsed int   `json:"percentUsed"`
}

// Status is the usage of every class for a day.
type Status struct {
	Day     string      `json:"day"`
	Regular ClassStatus `json:"regular"`
	Rush24h ClassStatus `json:"rush24h"`
	Rush12h ClassStatus `json:"rush12h"`
}

// For returns the status of class.
func (s Status) For(class Class) ClassStatus {
	switch class {
	case ClassRush24h:
		return s.Rush24h
	case ClassRush12h:
		return s.Rush12h
	default:
		return s.Regular
	}
}

// Estimate is a delivery estimate. Available is false when a rush class is
// full today; Date then names the next day with a free slot. SlotDay is the
// day whose capacity a reservation for this estimate consumes; for a full
// standard class it moves to the next day with room.
type Estimate struct {
	Class          Class         `json:"class"`
	Date           time.Time     `json:"date"`
	Available      bool          `json:"available"`
	Message        string        `json:"message"`
	Surcharge      pricing.Money `json:"surcharge"`
	QueueDelayDays int           `json:"queueDelayDays,omitempty"`
	SlotDay        string        `json:"slotDay"`
}

// Estimator reports capacity and estimates delivery dates over a Store.
type Estimator struct {
	store    Store
	cfg      Config
	calendar Calendar
	overbook OverbookPolicy

	Now    func() time.Time
	Logger zerolog.Logger
}

// NewEstimator validates cfg and builds an estimator.
func NewEstimator(store Store, cfg Config, overbook OverbookPolicy) (*Estimator, error) {
	if store == nil {
		return nil, errors.New("capacity: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cal, err := NewCalendar(cfg.NonWorkingDays...)
	if err != nil {
		return nil, err
	}
	if overbook == "" {
		overbook = OverbookReject
	}
	return &Estimator{store: store, cfg: cfg, calendar: cal, overbook: overbook}, nil
}

// Calendar exposes the working-day calendar.
func (e *Estimator) Calendar() Calendar { return e.calendar }

// Config exposes the scheduling configuration.
func (e *Estimator) Config() Config { return e.cfg }

func (e *Estimator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Status reports usage of every class on the day of at.
func (e *Estimator) Status(ctx context.Context, at time.Time) (Status, error) {
	if at.IsZero() {
		at = e.now()
	}
	day := DayKey(at, e.cfg.location())
	st := Status{Day: day}
	for _, class := range Classes() {
		cs, err := e.classStatus(ctx, day, class)
		if err != nil {
			return Status{}, err
		}
		switch class {
		case ClassRegular:
			st.Regular = cs
		case ClassRush24h:
			st.Rush24h = cs
		case ClassRush12h:
			st.Rush12h = cs
		}
		if obs.CapacityUtilisation != nil {
			obs.CapacityUtilisation.WithLabelValues(string(class)).Set(float64(cs.PercentUsed))
		}
	}
	return st, nil
}

func (e *Estimator) classStatus(ctx context.Context, day string, class Class) (ClassStatus, error) {
	current, err := e.store.Count(ctx, day, class)
	if err != nil {
		return ClassStatus{}, fmt.Errorf("capacity: count %s on %s: %w", class, day, err)
	}
	capacity := e.cfg.Capacity[class]
	return ClassStatus{
		Class:       class,
		Current:     current,
		Capacity:    capacity,
		Available:   max(0, capacity-current),
		PercentUsed: percentUsed(current, capacity),
	}, nil
}

func percentUsed(current, capacity int) int {
	if capacity <= 0 {
		return 100
	}
	return int(math.Round(float64(current) / float64(capacity) * 100))
}

// Estimate computes the delivery estimate for class from ref. A full rush
// class is a normal result with Available false, not an error.
func (e *Estimator) Estimate(ctx context.Context, class Class, ref time.Time) (Estimate, error) {
	if ref.IsZero() {
		ref = e.now()
	}
	ref = ref.In(e.cfg.location())
	today := DayKey(ref, e.cfg.location())
	surcharge := e.cfg.Surcharges[class]

	if !class.IsRush() {
		regular, err := e.classStatus(ctx, today, ClassRegular)
		if err != nil {
			return Estimate{}, err
		}
		delay := int(math.Ceil(float64(regular.PercentUsed) / float64(e.cfg.QueueStepPercent)))
		date := e.calendar.NextWorkingDay(e.calendar.AddBusinessDays(ref, e.cfg.BaseDeliveryDays+delay))
		slot := today
		if regular.Available == 0 {
			// Reserve against the next day that still has room.
			next, err := e.freeDayAfter(ctx, ClassRegular, ref)
			if err != nil {
				return Estimate{}, err
			}
			slot = DayKey(next, e.cfg.location())
			if date.Before(next) {
				date = e.calendar.NextWorkingDay(next)
			}
		}
		return Estimate{
			Class:          ClassRegular,
			Date:           date,
			Available:      true,
			Message:        "Estimated delivery by " + formatDate(date),
			Surcharge:      surcharge,
			QueueDelayDays: delay,
			SlotDay:        slot,
		}, nil
	}

	cs, err := e.classStatus(ctx, today, class)
	if err != nil {
		return Estimate{}, err
	}
	hours := e.cfg.RushHours[class]
	if cs.Available > 0 {
		return Estimate{
			Class:     class,
			Date:      ref.Add(time.Duration(hours) * time.Hour),
			Available: true,
			Message:   fmt.Sprintf("Delivered within %d hours", hours),
			Surcharge: surcharge,
			SlotDay:   today,
		}, nil
	}

	next, err := e.freeDayAfter(ctx, class, ref)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		Class:     class,
		Date:      next,
		Available: false,
		Message:   fmt.Sprintf("%s is fully booked today. Next available: %s", class.label(), formatDate(next)),
		Surcharge: surcharge,
		SlotDay:   DayKey(next, e.cfg.location()),
	}, nil
}

// freeDayAfter returns the next day with a free slot of class, or the start of
// the fallback day when the search window finds none.
func (e *Estimator) freeDayAfter(ctx context.Context, class Class, ref time.Time) (time.Time, error) {
	next, found, err := e.nextFreeDay(ctx, class, ref)
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		next = startOfDay(e.calendar.AddBusinessDays(ref, e.cfg.FallbackBusinessDays))
	}
	return next, nil
}

// nextFreeDay searches forward up to SearchDays calendar days, skipping
// non-working days, for a day with a free slot of class.
func (e *Estimator) nextFreeDay(ctx context.Context, class Class, ref time.Time) (time.Time, bool, error) {
	for offset := 1; offset <= e.cfg.SearchDays; offset++ {
		day := startOfDay(ref).AddDate(0, 0, offset)
		if !e.calendar.IsWorkingDay(day) {
			continue
		}
		n, err := e.store.Count(ctx, DayKey(day, e.cfg.location()), class)
		if err != nil {
			return time.Time{}, false, err
		}
		if n < e.cfg.Capacity[class] {
			return day, true, nil
		}
	}
	return time.Time{}, false, nil
}

// Reserve takes one slot of class on day for orderID. It is idempotent per
// order id. A full day fails with ErrCapacityExhausted unless the overbook
// policy flags instead.
func (e *Estimator) Reserve(ctx context.Context, orderID string, class Class, day string) (Reservation, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Reservation{}, errors.New("capacity: order id is required")
	}
	if day == "" {
		day = DayKey(e.now(), e.cfg.location())
	}
	res, err := e.store.Reserve(ctx, Reservation{
		OrderID:   orderID,
		Class:     class,
		Day:       day,
		CreatedAt: e.now().UTC(),
	}, e.cfg.Capacity[class], e.overbook.AllowOverbook())

	result := "reserved"
	switch {
	case errors.Is(err, ErrCapacityExhausted):
		result = "exhausted"
	case err != nil:
		result = "error"
	case res.Overbooked:
		result = "overbooked"
		e.Logger.Warn().Str("order_id", orderID).Str("class", string(class)).Str("day", day).Msg("capacity_overbooked")
	}
	if obs.ReservationsTotal != nil {
		obs.ReservationsTotal.WithLabelValues(string(class), result).Inc()
	}
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Lookup returns the reservation held by orderID.
func (e *Estimator) Lookup(ctx context.Context, orderID string) (Reservation, error) {
	return e.store.Lookup(ctx, orderID)
}

func formatDate(t time.Time) string {
	return t.Format("Mon, Jan 2")
}
