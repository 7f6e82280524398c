package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Source records which pricing model produced a quote.
type Source string

const (
	// SourceVolume is per-unit pricing resolved from the tier table.
	SourceVolume Source = "volume"
	// SourcePackage is a flat-rate package or plan priced as a single tier.
	SourcePackage Source = "package"
)

// Options carries informational, non-pricing choices.
type Options struct {
	SelectedMarketplace string
}

// LineItem is one priced add-on. Percentage add-ons report Quantity 1 and
// UnitCost equal to TotalCost.
type LineItem struct {
	Key         string
	Kind        AddOnKind
	Quantity    int
	UnitCost    Money
	Percentage  Money
	TotalCost   Money
	Description string
}

// Quote is the itemised result of a pricing calculation. Amounts keep full
// precision; round them with Round when rendering.
type Quote struct {
	Source            Source
	PackageID         string
	RequestedQuantity int
	Quantity          int
	Clamped           bool
	Tier              Tier
	ListPrice         Money
	PricePerUnit      Money
	BaseCost          Money
	VolumeSavings     Money
	AddOns            []LineItem
	FixedAddOnTotal   Money
	SurchargeTotal    Money
	Subtotal          Money
	Marketplace       *AddOnOption
	Breakdown         []string
}

// VolumeDiscountFraction is the resolved tier's discount fraction.
func (q Quote) VolumeDiscountFraction() Money {
	return q.Tier.DiscountFraction
}

// Calculator prices orders. It holds only immutable tables and is safe for
// concurrent use.
type Calculator struct {
	tiers  *TierTable
	addOns *Catalog
}

// NewCalculator builds a calculator over validated tables.
func NewCalculator(tiers *TierTable, addOns *Catalog) *Calculator {
	return &Calculator{tiers: tiers, addOns: addOns}
}

// Tiers exposes the tier table.
func (c *Calculator) Tiers() *TierTable { return c.tiers }

// AddOns exposes the add-on catalog.
func (c *Calculator) AddOns() *Catalog { return c.addOns }

// Calculate prices qty edits with the selected add-ons. A quantity below the
// minimum order is raised to the minimum and reported through Clamped.
func (c *Calculator) Calculate(qty int, sel Selection, opts Options) Quote {
	billable := qty
	minimum := c.tiers.MinimumOrder()
	if billable < minimum {
		billable = minimum
	}
	tier, ok := c.tiers.Resolve(billable)
	if !ok {
		panic(fmt.Sprintf("pricing: tier table does not cover quantity %d", billable))
	}
	units := decimal.NewFromInt(int64(billable))
	base := units.Mul(tier.PricePerUnit)
	savings := MaxMoney(Zero, units.Mul(c.tiers.ListPrice().Sub(tier.PricePerUnit)))

	q := Quote{
		Source:            SourceVolume,
		RequestedQuantity: qty,
		Quantity:          billable,
		Clamped:           billable != qty,
		Tier:              tier,
		ListPrice:         c.tiers.ListPrice(),
		PricePerUnit:      tier.PricePerUnit,
		BaseCost:          base,
		VolumeSavings:     savings,
	}
	c.applyAddOns(&q, sel, opts)
	return q
}

// CalculatePackage prices a flat-rate package as a single degenerate tier:
// quantity fixed to the package assets, base cost equal to the package price.
func (c *Calculator) CalculatePackage(pkg Package, sel Selection, opts Options) Quote {
	units := decimal.NewFromInt(int64(pkg.Assets))
	perUnit := pkg.Price.Div(units)
	tier := Tier{
		MinQuantity:      pkg.Assets,
		MaxQuantity:      pkg.Assets,
		PricePerUnit:     perUnit,
		DiscountFraction: Zero,
		Label:            pkg.Name,
	}
	q := Quote{
		Source:            SourcePackage,
		PackageID:         pkg.ID,
		RequestedQuantity: pkg.Assets,
		Quantity:          pkg.Assets,
		Tier:              tier,
		ListPrice:         perUnit,
		PricePerUnit:      perUnit,
		BaseCost:          pkg.Price,
		VolumeSavings:     Zero,
	}
	c.applyAddOns(&q, sel, opts)
	return q
}

// applyAddOns runs the add-on pipeline: every per-unit add-on in catalog order,
// then every percentage add-on on top of base plus per-unit total.
func (c *Calculator) applyAddOns(q *Quote, sel Selection, opts Options) {
	fixed := Zero
	var pending []AddOn
	for _, a := range c.addOns.ordered {
		v, ok := sel[a.Key]
		if !ok {
			continue
		}
		switch a.Kind {
		case AddOnPerUnit:
			n := v.Quantity()
			if n <= 0 {
				continue
			}
			cost := decimal.NewFromInt(int64(n)).Mul(a.UnitPrice)
			fixed = fixed.Add(cost)
			q.AddOns = append(q.AddOns, LineItem{
				Key:         a.Key,
				Kind:        a.Kind,
				Quantity:    n,
				UnitCost:    a.UnitPrice,
				TotalCost:   cost,
				Description: a.Description,
			})
		case AddOnPercentage:
			if v.On() {
				pending = append(pending, a)
			}
		}
	}

	surchargeBase := q.BaseCost.Add(fixed)
	surcharge := Zero
	for _, a := range pending {
		cost := surchargeBase.Mul(a.Percentage)
		surcharge = surcharge.Add(cost)
		q.AddOns = append(q.AddOns, LineItem{
			Key:         a.Key,
			Kind:        a.Kind,
			Quantity:    1,
			UnitCost:    cost,
			Percentage:  a.Percentage,
			TotalCost:   cost,
			Description: a.Description,
		})
	}

	q.FixedAddOnTotal = fixed
	q.SurchargeTotal = surcharge
	q.Subtotal = surchargeBase.Add(surcharge)
	if opts.SelectedMarketplace != "" {
		if o, ok := c.addOns.Option(AddOnAdditionalMarketplace, opts.SelectedMarketplace); ok {
			q.Marketplace = &o
		}
	}
	q.Breakdown = Breakdown(*q)
}
