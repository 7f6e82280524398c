package order

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// DefaultMaxQuantity is the hard quantity ceiling above which orders go to sales.
const DefaultMaxQuantity = 5000

// Request is the customer's order input.
type Request struct {
	Quantity            int               `json:"quantity"`
	PackageID           string            `json:"packageId"`
	AddOns              pricing.Selection `json:"addOns"`
	SelectedMarketplace string            `json:"selectedMarketplace"`
	ServiceClass        string            `json:"serviceClass" validate:"omitempty,max=16"`
	DiscountCode        string            `json:"discountCode" validate:"omitempty,max=64"`
}

// FieldErrors maps request fields to messages.
type FieldErrors map[string]string

// Err returns nil when there are no field errors.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return &ValidationError{Fields: fe}
}

// ValidationError carries field-level errors for the checkout form.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("order: invalid %s", strings.Join(keys, ", "))
}

// Rules holds the tables a request is validated against.
type Rules struct {
	Catalog     *pricing.Catalog
	Packages    *pricing.PackageCatalog
	MaxQuantity int
}

var rushAddOns = map[string]capacity.Class{
	pricing.AddOnRush24h: capacity.ClassRush24h,
	pricing.AddOnRush12h: capacity.ClassRush12h,
}

// Validate checks quantity bounds, add-on shapes, the package id and the
// service class. It never stops at the first problem.
func Validate(req Request, rules Rules) FieldErrors {
	errs := FieldErrors{}
	if rules.Catalog != nil {
		for k, v := range rules.Catalog.ValidateSelection(req.AddOns, req.SelectedMarketplace) {
			errs[k] = v
		}
	}

	if id := strings.TrimSpace(req.PackageID); id != "" {
		if _, ok := rules.Packages.Lookup(id); !ok {
			errs["packageId"] = "unknown package"
		}
	} else {
		limit := rules.MaxQuantity
		if limit <= 0 {
			limit = DefaultMaxQuantity
		}
		switch {
		case req.Quantity <= 0:
			errs["quantity"] = "must be a positive number"
		case req.Quantity > limit:
			errs["quantity"] = fmt.Sprintf("orders above %d edits need a custom quote, please contact sales", limit)
		}
	}

	if _, ok := errs["addOns."+pricing.AddOnRush24h]; ok {
		return errs
	}
	if _, ok := errs["addOns."+pricing.AddOnRush12h]; ok {
		return errs
	}
	if _, err := ResolveClass(req); err != nil {
		errs["serviceClass"] = err.Error()
	}
	return errs
}

// ResolveClass returns the service class of req. An omitted class is derived
// from the selected rush add-on; an explicit class must agree with it.
func ResolveClass(req Request) (capacity.Class, error) {
	selected := capacity.ClassRegular
	for key, class := range rushAddOns {
		if req.AddOns[key].On() {
			selected = class
		}
	}
	if strings.TrimSpace(req.ServiceClass) == "" {
		return selected, nil
	}
	class, err := capacity.ParseClass(req.ServiceClass)
	if err != nil {
		return "", errors.New("must be one of standard, rush24h, rush12h")
	}
	if class != selected {
		if class.IsRush() {
			return "", fmt.Errorf("%s requires the %s add-on", class, class)
		}
		return "", fmt.Errorf("does not match the selected %s add-on", selected)
	}
	return class, nil
}
