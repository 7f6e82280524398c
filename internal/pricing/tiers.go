package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Unbounded marks the open-ended upper bound of the highest tier.
const Unbounded = math.MaxInt

// ErrInvalidTierTable is returned when a tier table does not partition the
// quantity range from the minimum order upwards.
var ErrInvalidTierTable = errors.New("pricing: invalid tier table")

// Tier is one volume band. Bounds are inclusive.
type Tier struct {
	MinQuantity      int
	MaxQuantity      int
	PricePerUnit     Money
	DiscountFraction Money
	Label            string
}

// Contains reports whether qty falls inside the band.
func (t Tier) Contains(qty int) bool {
	return qty >= t.MinQuantity && qty <= t.MaxQuantity
}

// OpenEnded reports whether the tier has no upper bound.
func (t Tier) OpenEnded() bool {
	return t.MaxQuantity == Unbounded
}

// TierTable is an immutable, validated set of contiguous volume tiers.
type TierTable struct {
	listPrice Money
	tiers     []Tier
}

// NewTierTable validates the bands and returns a table sorted by MinQuantity.
// Bands must be contiguous, non-overlapping, end with an open-ended band and
// never charge more per unit at a higher volume.
func NewTierTable(listPrice Money, tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTierTable)
	}
	if !listPrice.IsPositive() {
		return nil, fmt.Errorf("%w: list price must be positive", ErrInvalidTierTable)
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinQuantity < sorted[j].MinQuantity })

	if sorted[0].MinQuantity < 1 {
		return nil, fmt.Errorf("%w: minimum quantity must be at least 1", ErrInvalidTierTable)
	}
	for i, t := range sorted {
		if t.MaxQuantity < t.MinQuantity {
			return nil, fmt.Errorf("%w: tier %q has max below min", ErrInvalidTierTable, t.Label)
		}
		if !t.PricePerUnit.IsPositive() {
			return nil, fmt.Errorf("%w: tier %q has non-positive price", ErrInvalidTierTable, t.Label)
		}
		if t.DiscountFraction.IsNegative() || t.DiscountFraction.GreaterThan(decimalOne) {
			return nil, fmt.Errorf("%w: tier %q discount fraction outside [0,1]", ErrInvalidTierTable, t.Label)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.MaxQuantity == Unbounded || prev.MaxQuantity+1 != t.MinQuantity {
			return nil, fmt.Errorf("%w: gap or overlap between %q and %q", ErrInvalidTierTable, prev.Label, t.Label)
		}
		if t.PricePerUnit.GreaterThan(prev.PricePerUnit) {
			return nil, fmt.Errorf("%w: tier %q costs more per unit than %q", ErrInvalidTierTable, t.Label, prev.Label)
		}
	}
	if !sorted[len(sorted)-1].OpenEnded() {
		return nil, fmt.Errorf("%w: highest tier must be open-ended", ErrInvalidTierTable)
	}
	return &TierTable{listPrice: listPrice, tiers: sorted}, nil
}

// MustTierTable is NewTierTable for static tables; it panics on error.
func MustTierTable(listPrice Money, tiers []Tier) *TierTable {
	t, err := NewTierTable(listPrice, tiers)
	if err != nil {
		panic(err)
	}
	return t
}

// MinimumOrder is the smallest billable quantity.
func (t *TierTable) MinimumOrder() int {
	return t.tiers[0].MinQuantity
}

// ListPrice is the undiscounted per-unit price savings are measured against.
func (t *TierTable) ListPrice() Money {
	return t.listPrice
}

// Tiers returns a copy of the bands in ascending order.
func (t *TierTable) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Resolve returns the band containing qty. Quantities below the minimum order
// do not match any band.
func (t *TierTable) Resolve(qty int) (Tier, bool) {
	if qty < t.MinimumOrder() {
		return Tier{}, false
	}
	idx := sort.Search(len(t.tiers), func(i int) bool { return t.tiers[i].MaxQuantity >= qty })
	if idx == len(t.tiers) {
		return t.tiers[len(t.tiers)-1], true
	}
	return t.tiers[idx], true
}

var decimalOne = NewMoney("1")

// DefaultTiers is the reference volume curve.
func DefaultTiers() []Tier {
	return []Tier{
		{MinQuantity: 5, MaxQuantity: 9, PricePerUnit: NewMoney("18.90"), DiscountFraction: NewMoney("0"), Label: "5-9 edits"},
		{MinQuantity: 10, MaxQuantity: 24, PricePerUnit: NewMoney("17.20"), DiscountFraction: NewMoney("0.09"), Label: "10-24 edits"},
		{MinQuantity: 25, MaxQuantity: 49, PricePerUnit: NewMoney("15.50"), DiscountFraction: NewMoney("0.18"), Label: "25-49 edits"},
		{MinQuantity: 50, MaxQuantity: 99, PricePerUnit: NewMoney("13.90"), DiscountFraction: NewMoney("0.26"), Label: "50-99 edits"},
		{MinQuantity: 100, MaxQuantity: 249, PricePerUnit: NewMoney("12.50"), DiscountFraction: NewMoney("0.34"), Label: "100-249 edits"},
		{MinQuantity: 250, MaxQuantity: Unbounded, PricePerUnit: NewMoney("10.90"), DiscountFraction: NewMoney("0.42"), Label: "250+ edits"},
	}
}

// DefaultListPrice is the per-edit list price of the reference deployment.
var DefaultListPrice = NewMoney("18.90")

// DefaultTierTable returns the validated reference tier table.
func DefaultTierTable() *TierTable {
	return MustTierTable(DefaultListPrice, DefaultTiers())
}
