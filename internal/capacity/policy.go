package capacity

import (
	"fmt"
	"strings"
)

// Timing decides when a slot is reserved for an order.
type Timing string

const (
	// TimingQuote reserves optimistically when the order is quoted; abandoned
	// quotes keep their slot.
	TimingQuote Timing = "quote"
	// TimingConfirmation reserves only after payment is confirmed; two
	// customers may be quoted the same last slot.
	TimingConfirmation Timing = "confirmation"
)

// ParseTiming parses a timing name; empty means confirmation.
func ParseTiming(s string) (Timing, error) {
	switch Timing(strings.ToLower(strings.TrimSpace(s))) {
	case "", TimingConfirmation:
		return TimingConfirmation, nil
	case TimingQuote:
		return TimingQuote, nil
	default:
		return "", fmt.Errorf("capacity: unknown reservation timing %q", s)
	}
}

// OverbookPolicy decides what happens when a reservation finds its day full.
type OverbookPolicy string

const (
	// OverbookReject fails the reservation with ErrCapacityExhausted.
	OverbookReject OverbookPolicy = "reject"
	// OverbookFlag accepts it and marks the reservation Overbooked.
	OverbookFlag OverbookPolicy = "flag"
)

// ParseOverbookPolicy parses a policy name; empty means reject.
func ParseOverbookPolicy(s string) (OverbookPolicy, error) {
	switch OverbookPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverbookReject:
		return OverbookReject, nil
	case OverbookFlag:
		return OverbookFlag, nil
	default:
		return "", fmt.Errorf("capacity: unknown overbook policy %q", s)
	}
}

// AllowOverbook reports whether full days still accept reservations.
func (p OverbookPolicy) AllowOverbook() bool { return p == OverbookFlag }
