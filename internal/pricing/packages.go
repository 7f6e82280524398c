package pricing

import (
	"fmt"
	"sort"
	"strings"
)

// PackageKind separates the two flat-rate offerings.
type PackageKind string

const (
	// PackageLegacy is an older fixed price for a fixed number of edits.
	PackageLegacy PackageKind = "legacy"
	// PackageSubscription is an enterprise plan billed per period.
	PackageSubscription PackageKind = "subscription"
)

// Package is a flat-rate offering: a fixed price for a fixed number of assets.
type Package struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Kind         PackageKind `json:"kind"`
	Price        Money       `json:"price"`
	Assets       int         `json:"assets"`
	PerEdit      *Money      `json:"perEdit,omitempty"`
	PriceDisplay string      `json:"priceDisplay"`
	Period       string      `json:"period,omitempty"`
}

// PackageCatalog indexes packages by id.
type PackageCatalog struct {
	byID map[string]Package
}

// NewPackageCatalog validates and indexes packages.
func NewPackageCatalog(pkgs ...Package) (*PackageCatalog, error) {
	c := &PackageCatalog{byID: make(map[string]Package, len(pkgs))}
	for _, p := range pkgs {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: package without id", ErrInvalidCatalog)
		}
		if p.Assets <= 0 || !p.Price.IsPositive() {
			return nil, fmt.Errorf("%w: package %q needs positive price and assets", ErrInvalidCatalog, id)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate package %q", ErrInvalidCatalog, id)
		}
		c.byID[id] = p
	}
	return c, nil
}

// Lookup returns the package with the given id.
func (c *PackageCatalog) Lookup(id string) (Package, bool) {
	if c == nil {
		return Package{}, false
	}
	p, ok := c.byID[strings.TrimSpace(id)]
	return p, ok
}

// Packages returns all packages ordered by kind then price.
func (c *PackageCatalog) Packages() []Package {
	out := make([]Package, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// DefaultPackages returns the legacy packages and subscription plans still sold.
func DefaultPackages() *PackageCatalog {
	c, err := NewPackageCatalog(
		Package{ID: "starter", Name: "Starter", Kind: PackageLegacy, Price: NewMoney("99.00"), Assets: 5, PriceDisplay: "$99"},
		Package{ID: "professional", Name: "Professional", Kind: PackageLegacy, Price: NewMoney("249.00"), Assets: 15, PriceDisplay: "$249"},
		Package{ID: "business", Name: "Business", Kind: PackageLegacy, Price: NewMoney("449.00"), Assets: 30, PriceDisplay: "$449"},
		Package{ID: "studio-monthly", Name: "Studio Plan", Kind: PackageSubscription, Price: NewMoney("1490.00"), Assets: 100, PriceDisplay: "$1,490/mo", Period: "month"},
		Package{ID: "enterprise-monthly", Name: "Enterprise Plan", Kind: PackageSubscription, Price: NewMoney("3990.00"), Assets: 300, PriceDisplay: "$3,990/mo", Period: "month"},
	)
	if err != nil {
		panic(err)
	}
	return c
}
