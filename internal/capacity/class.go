package capacity

import (
	"fmt"
	"strings"
)

// Class is a service class with its own daily ceiling.
type Class string

const (
	ClassRegular Class = "regular"
	ClassRush24h Class = "rush24h"
	ClassRush12h Class = "rush12h"
)

// Classes lists every service class in display order.
func Classes() []Class {
	return []Class{ClassRegular, ClassRush24h, ClassRush12h}
}

// ParseClass accepts the class names plus "standard" for regular. Empty input
// is regular.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "regular", "standard":
		return ClassRegular, nil
	case "rush24h":
		return ClassRush24h, nil
	case "rush12h":
		return ClassRush12h, nil
	default:
		return "", fmt.Errorf("capacity: unknown service class %q", s)
	}
}

// IsRush reports whether the class is delivered in hours rather than days.
func (c Class) IsRush() bool {
	return c == ClassRush24h || c == ClassRush12h
}

func (c Class) label() string {
	switch c {
	case ClassRush24h:
		return "Rush 24h"
	case ClassRush12h:
		return "Rush 12h"
	default:
		return "Standard"
	}
}
