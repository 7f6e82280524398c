package pricing

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateSelection reports malformed add-on values keyed by "addOns.<key>".
// Unknown keys are accepted and ignored. At most one add-on per exclusive group
// may be active.
func (c *Catalog) ValidateSelection(sel Selection, marketplace string) map[string]string {
	errs := map[string]string{}
	keys := make([]string, 0, len(sel))
	for k := range sel {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	active := map[string]string{}
	for _, key := range keys {
		v := sel[key]
		a, ok := c.Lookup(key)
		if !ok {
			continue
		}
		field := "addOns." + key
		switch a.Kind {
		case AddOnPerUnit:
			if !v.IsQty() || v.Quantity() < 0 {
				errs[field] = "must be a non-negative whole number"
				continue
			}
			if v.Quantity() == 0 {
				continue
			}
		case AddOnPercentage:
			if !v.IsFlag() {
				errs[field] = "must be true or false"
				continue
			}
			if !v.On() {
				continue
			}
		}
		if a.Exclusive == "" {
			continue
		}
		if other, taken := active[a.Exclusive]; taken {
			errs[field] = fmt.Sprintf("cannot be combined with %s", other)
			continue
		}
		active[a.Exclusive] = key
	}

	if m := strings.TrimSpace(marketplace); m != "" {
		if _, ok := c.Option(AddOnAdditionalMarketplace, m); !ok {
			errs["selectedMarketplace"] = fmt.Sprintf("unknown marketplace %q", m)
		}
	}
	return errs
}
