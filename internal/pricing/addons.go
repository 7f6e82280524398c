package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AddOnKind distinguishes per-unit add-ons from percentage surcharges.
type AddOnKind string

const (
	// AddOnPerUnit is charged as selected quantity times unit price.
	AddOnPerUnit AddOnKind = "per_unit"
	// AddOnPercentage is charged as a share of base cost plus all per-unit add-ons.
	AddOnPercentage AddOnKind = "percentage"
)

// Add-on keys of the reference catalog.
const (
	AddOnExtraAssets              = "extraAssets"
	AddOnComplexBackgroundRemoval = "complexBackgroundRemoval"
	AddOnAdditionalMarketplace    = "additionalMarketplace"
	AddOnRush24h                  = "rush24h"
	AddOnRush12h                  = "rush12h"
)

// ErrInvalidCatalog is returned for add-on definitions that cannot be priced.
var ErrInvalidCatalog = errors.New("pricing: invalid add-on catalog")

// AddOnOption is an informational sub-choice of an add-on, e.g. a marketplace.
type AddOnOption struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Requirements string `json:"requirements"`
}

// AddOn defines how a selectable extra is priced. Exactly one of UnitPrice and
// Percentage is set, matching Kind.
type AddOn struct {
	Key         string
	Kind        AddOnKind
	UnitPrice   Money
	Percentage  Money
	Description string
	Options     []AddOnOption
	// Exclusive names a group of add-ons of which at most one may be selected.
	Exclusive string
}

// Catalog holds add-on definitions in pipeline order.
type Catalog struct {
	ordered []AddOn
	byKey   map[string]int
}

// NewCatalog validates the definitions. Per-unit add-ons keep their relative
// order and are always priced before every percentage add-on.
func NewCatalog(addOns ...AddOn) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int, len(addOns))}
	var perUnit, percentage []AddOn
	for _, a := range addOns {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidCatalog)
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidCatalog, key)
		}
		c.byKey[key] = -1
		switch a.Kind {
		case AddOnPerUnit:
			if !a.UnitPrice.IsPositive() || !a.Percentage.IsZero() {
				return nil, fmt.Errorf("%w: %q needs a positive unit price and no percentage", ErrInvalidCatalog, key)
			}
			perUnit = append(perUnit, a)
		case AddOnPercentage:
			if !a.Percentage.IsPositive() || !a.UnitPrice.IsZero() {
				return nil, fmt.Errorf("%w: %q needs a positive percentage and no unit price", ErrInvalidCatalog, key)
			}
			percentage = append(percentage, a)
		default:
			return nil, fmt.Errorf("%w: %q has unknown kind %q", ErrInvalidCatalog, key, a.Kind)
		}
	}
	c.ordered = append(perUnit, percentage...)
	for i, a := range c.ordered {
		c.byKey[a.Key] = i
	}
	return c, nil
}

// MustCatalog is NewCatalog for static tables; it panics on error.
func MustCatalog(addOns ...AddOn) *Catalog {
	c, err := NewCatalog(addOns...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the definition for key.
func (c *Catalog) Lookup(key string) (AddOn, bool) {
	idx, ok := c.byKey[key]
	if !ok {
		return AddOn{}, false
	}
	return c.ordered[idx], true
}

// AddOns returns the definitions in pipeline order.
func (c *Catalog) AddOns() []AddOn {
	out := make([]AddOn, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Option finds an option of the add-on identified by key.
func (c *Catalog) Option(key, option string) (AddOnOption, bool) {
	a, ok := c.Lookup(key)
	if !ok {
		return AddOnOption{}, false
	}
	for _, o := range a.Options {
		if strings.EqualFold(o.Key, strings.TrimSpace(option)) {
			return o, true
		}
	}
	return AddOnOption{}, false
}

// DefaultCatalog returns the reference add-on catalog.
func DefaultCatalog() *Catalog {
	return MustCatalog(
		AddOn{Key: AddOnExtraAssets, Kind: AddOnPerUnit, UnitPrice: NewMoney("4.90"), Description: "Extra asset variant"},
		AddOn{Key: AddOnComplexBackgroundRemoval, Kind: AddOnPerUnit, UnitPrice: NewMoney("24.90"), Description: "Complex background removal"},
		AddOn{
			Key:         AddOnAdditionalMarketplace,
			Kind:        AddOnPerUnit,
			UnitPrice:   NewMoney("7.90"),
			Description: "Additional marketplace optimization",
			Options: []AddOnOption{
				{Key: "amazon", Label: "Amazon", Requirements: "Pure white background (RGB 255,255,255), product fills 85% of frame, min. 1000px longest side"},
				{Key: "ebay", Label: "eBay", Requirements: "Min. 500px longest side, no borders or watermarks"},
				{Key: "etsy", Label: "Etsy", Requirements: "Min. 2000px wide, 4:3 landscape recommended"},
				{Key: "shopify", Label: "Shopify", Requirements: "2048x2048px square, consistent padding"},
				{Key: "otto", Label: "OTTO", Requirements: "White or light-grey background, min. 1500px, JPEG sRGB"},
			},
		},
		AddOn{Key: AddOnRush24h, Kind: AddOnPercentage, Percentage: NewMoney("0.25"), Description: "Rush delivery (24h)", Exclusive: "rush"},
		AddOn{Key: AddOnRush12h, Kind: AddOnPercentage, Percentage: NewMoney("0.50"), Description: "Rush delivery (12h)", Exclusive: "rush"},
	)
}

type valueKind uint8

const (
	valueQty valueKind = iota
	valueFlag
	valueMalformed
)

// SelectionValue is a selected add-on value: a quantity for per-unit add-ons
// or a flag for percentage add-ons. Decoding never fails; values of any other
// shape are kept as malformed so validation can report them per field.
type SelectionValue struct {
	kind valueKind
	qty  int
	on   bool
	raw  string
}

// Qty selects n units of a per-unit add-on.
func Qty(n int) SelectionValue { return SelectionValue{kind: valueQty, qty: n} }

// Flag toggles a percentage add-on.
func Flag(on bool) SelectionValue { return SelectionValue{kind: valueFlag, on: on} }

// IsQty reports whether the value is a quantity.
func (v SelectionValue) IsQty() bool { return v.kind == valueQty }

// IsFlag reports whether the value is a boolean.
func (v SelectionValue) IsFlag() bool { return v.kind == valueFlag }

// Malformed reports whether the value was neither a whole number nor a boolean.
func (v SelectionValue) Malformed() bool { return v.kind == valueMalformed }

// Quantity returns the selected quantity, 0 for non-quantities.
func (v SelectionValue) Quantity() int {
	if v.kind != valueQty {
		return 0
	}
	return v.qty
}

// On returns the flag value, false for non-flags.
func (v SelectionValue) On() bool { return v.kind == valueFlag && v.on }

// Raw returns the original JSON text of a malformed value.
func (v SelectionValue) Raw() string { return v.raw }

// UnmarshalJSON implements json.Unmarshaler.
func (v *SelectionValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "true":
		*v = Flag(true)
		return nil
	case "false":
		*v = Flag(false)
		return nil
	}
	if len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err == nil {
			if i, err := n.Int64(); err == nil && int64(int(i)) == i {
				*v = Qty(int(i))
				return nil
			}
		}
	}
	*v = SelectionValue{kind: valueMalformed, raw: string(trimmed)}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v SelectionValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valueFlag:
		return json.Marshal(v.on)
	case valueQty:
		return json.Marshal(v.qty)
	default:
		if v.raw == "" {
			return []byte("null"), nil
		}
		return []byte(v.raw), nil
	}
}

// Selection maps add-on keys to selected values. Unknown keys are ignored by
// the calculator.
type Selection map[string]SelectionValue
