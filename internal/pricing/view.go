package pricing

// TierView is the JSON shape of a tier. MaxQuantity is omitted for the
// open-ended band.
type TierView struct {
	Label            string `json:"label"`
	MinQuantity      int    `json:"minQuantity"`
	MaxQuantity      *int   `json:"maxQuantity"`
	PricePerUnit     Money  `json:"pricePerUnit"`
	DiscountFraction Money  `json:"discountFraction"`
}

// NewTierView converts a tier for rendering.
func NewTierView(t Tier) TierView {
	v := TierView{
		Label:            t.Label,
		MinQuantity:      t.MinQuantity,
		PricePerUnit:     Round(t.PricePerUnit),
		DiscountFraction: t.DiscountFraction,
	}
	if !t.OpenEnded() {
		max := t.MaxQuantity
		v.MaxQuantity = &max
	}
	return v
}

// AddOnView is the JSON shape of an add-on definition.
type AddOnView struct {
	Key         string        `json:"key"`
	Kind        AddOnKind     `json:"kind"`
	UnitPrice   *Money        `json:"unitPrice,omitempty"`
	Percentage  *Money        `json:"percentage,omitempty"`
	Description string        `json:"description"`
	Options     []AddOnOption `json:"options,omitempty"`
}

// NewAddOnView converts an add-on definition for rendering.
func NewAddOnView(a AddOn) AddOnView {
	v := AddOnView{Key: a.Key, Kind: a.Kind, Description: a.Description, Options: a.Options}
	switch a.Kind {
	case AddOnPercentage:
		pct := a.Percentage
		v.Percentage = &pct
	default:
		price := a.UnitPrice
		v.UnitPrice = &price
	}
	return v
}

// LineItemView is a rendered add-on line.
type LineItemView struct {
	Key         string `json:"key"`
	Quantity    int    `json:"quantity"`
	UnitCost    Money  `json:"unitCost"`
	TotalCost   Money  `json:"totalCost"`
	Description string `json:"description"`
}

// QuoteView is the rendered quote; every amount is rounded to cents.
type QuoteView struct {
	Source                 Source         `json:"source"`
	PackageID              string         `json:"packageId,omitempty"`
	RequestedQuantity      int            `json:"requestedQuantity"`
	Quantity               int            `json:"quantity"`
	Clamped                bool           `json:"clamped"`
	Tier                   TierView       `json:"tier"`
	PricePerUnit           Money          `json:"pricePerUnit"`
	BaseCost               Money          `json:"baseCost"`
	VolumeDiscountFraction Money          `json:"volumeDiscountFraction"`
	VolumeSavings          Money          `json:"volumeSavings"`
	AddOns                 []LineItemView `json:"addOns"`
	Subtotal               Money          `json:"subtotal"`
	Marketplace            *AddOnOption   `json:"marketplace,omitempty"`
	Breakdown              []string       `json:"breakdown"`
}

// View renders the quote, rounding each amount once.
func (q Quote) View() QuoteView {
	items := make([]LineItemView, 0, len(q.AddOns))
	for _, it := range q.AddOns {
		items = append(items, LineItemView{
			Key:         it.Key,
			Quantity:    it.Quantity,
			UnitCost:    Round(it.UnitCost),
			TotalCost:   Round(it.TotalCost),
			Description: it.Description,
		})
	}
	return QuoteView{
		Source:                 q.Source,
		PackageID:              q.PackageID,
		RequestedQuantity:      q.RequestedQuantity,
		Quantity:               q.Quantity,
		Clamped:                q.Clamped,
		Tier:                   NewTierView(q.Tier),
		PricePerUnit:           Round(q.PricePerUnit),
		BaseCost:               Round(q.BaseCost),
		VolumeDiscountFraction: q.VolumeDiscountFraction(),
		VolumeSavings:          Round(q.VolumeSavings),
		AddOns:                 items,
		Subtotal:               Round(q.Subtotal),
		Marketplace:            q.Marketplace,
		Breakdown:              q.Breakdown,
	}
}
