package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown renders one human-readable line per priced component followed by
// a total line.
func Breakdown(q Quote) []string {
	lines := make([]string, 0, len(q.AddOns)+3)
	switch q.Source {
	case SourcePackage:
		lines = append(lines, fmt.Sprintf("%s package (%d edits): %s", q.Tier.Label, q.Quantity, Format(q.BaseCost)))
	default:
		base := fmt.Sprintf("%d edits x %s (%s): %s", q.Quantity, Format(q.PricePerUnit), q.Tier.Label, Format(q.BaseCost))
		if q.Clamped {
			base += fmt.Sprintf(" (minimum order %d, requested %d)", q.Quantity, q.RequestedQuantity)
		}
		lines = append(lines, base)
		if q.VolumeSavings.IsPositive() {
			lines = append(lines, fmt.Sprintf("Volume savings: %s", Format(q.VolumeSavings)))
		}
	}
	for _, it := range q.AddOns {
		switch it.Kind {
		case AddOnPercentage:
			lines = append(lines, fmt.Sprintf("%s: %s%% = %s", it.Description, it.Percentage.Mul(hundred).String(), Format(it.TotalCost)))
		default:
			lines = append(lines, fmt.Sprintf("%s: %d x %s = %s", it.Description, it.Quantity, Format(it.UnitCost), Format(it.TotalCost)))
		}
	}
	lines = append(lines, fmt.Sprintf("Total: %s", Format(q.Subtotal)))
	return lines
}
