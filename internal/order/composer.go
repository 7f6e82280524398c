package order

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/discount"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// ErrIncompleteInput is returned when a quote is missing from the input.
var ErrIncompleteInput = errors.New("order: incomplete composition input")

// Input bundles the calculator, discount and estimator outputs.
type Input struct {
	Quote    pricing.Quote
	Discount *discount.Evaluation
	Delivery capacity.Estimate
	// ID is used as-is when set; otherwise the composer generates one.
	ID string
}

// Composer merges pricing, discount and delivery into an Order.
type Composer struct {
	IDs      *IDGenerator
	Currency string
	Now      func() time.Time
}

// NewComposer returns a composer with a default id generator.
func NewComposer(currency string) *Composer {
	return &Composer{IDs: NewIDGenerator(), Currency: currency}
}

// Compose builds the order atomically: on error no partial order is returned.
// The grand total is max(0, subtotal - discount) rounded once.
func (c *Composer) Compose(in Input) (Order, error) {
	q := in.Quote
	if q.Quantity <= 0 || len(q.Breakdown) == 0 {
		return Order{}, ErrIncompleteInput
	}
	exact := pricing.Zero
	var line *DiscountLine
	if in.Discount != nil {
		exact = in.Discount.Exact
		line = &DiscountLine{
			Code:        in.Discount.Code,
			Kind:        in.Discount.Kind,
			Amount:      in.Discount.Amount,
			Capped:      in.Discount.Capped,
			Description: in.Discount.Description,
			Source:      in.Discount.Source,
		}
	}
	grand := pricing.Round(pricing.MaxMoney(pricing.Zero, q.Subtotal.Sub(exact)))

	view := q.View()
	breakdown := append([]string(nil), q.Breakdown...)
	if line != nil {
		// Printed as rounded subtotal minus total so the receipt adds up.
		shown := pricing.Round(q.Subtotal).Sub(grand)
		last := breakdown[len(breakdown)-1]
		breakdown = append(breakdown[:len(breakdown)-1],
			strings.Replace(last, "Total:", "Subtotal:", 1),
			"Discount "+line.Code+": -"+pricing.Format(shown),
			"Total: "+pricing.Format(grand),
		)
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		gen := c.IDs
		if gen == nil {
			gen = NewIDGenerator()
		}
		id = gen.Next()
	}
	currency := c.Currency
	if currency == "" {
		currency = "USD"
	}
	class := in.Delivery.Class
	if class == "" {
		class = capacity.ClassRegular
	}
	discountAmount := pricing.Zero
	if line != nil {
		discountAmount = line.Amount
	}

	return Order{
		ID:                     id,
		CreatedAt:              c.now().UTC(),
		Currency:               currency,
		Source:                 view.Source,
		PackageID:              view.PackageID,
		RequestedQuantity:      view.RequestedQuantity,
		Quantity:               view.Quantity,
		Clamped:                view.Clamped,
		Tier:                   view.Tier,
		PricePerUnit:           view.PricePerUnit,
		BaseCost:               view.BaseCost,
		VolumeDiscountFraction: view.VolumeDiscountFraction,
		VolumeSavings:          view.VolumeSavings,
		AddOns:                 view.AddOns,
		Subtotal:               view.Subtotal,
		Discount:               line,
		DiscountAmount:         discountAmount,
		GrandTotal:             grand,
		ServiceClass:           class,
		Delivery: Delivery{
			Date:      in.Delivery.Date,
			Available: in.Delivery.Available,
			Message:   in.Delivery.Message,
			Surcharge: in.Delivery.Surcharge,
			SlotDay:   in.Delivery.SlotDay,
		},
		Marketplace: view.Marketplace,
		Breakdown:   breakdown,
	}, nil
}

func (c *Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
