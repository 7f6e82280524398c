package order

import (
	"time"

	"github.com/noah-isme/snapstudio-api/internal/capacity"
	"github.com/noah-isme/snapstudio-api/internal/discount"
	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// Order is the final itemised record handed to payment. Every amount is
// rounded to cents.
type Order struct {
	ID                     string                 `json:"id"`
	CreatedAt              time.Time              `json:"createdAt"`
	Currency               string                 `json:"currency"`
	Source                 pricing.Source         `json:"source"`
	PackageID              string                 `json:"packageId,omitempty"`
	RequestedQuantity      int                    `json:"requestedQuantity"`
	Quantity               int                    `json:"quantity"`
	Clamped                bool                   `json:"clamped"`
	Tier                   pricing.TierView       `json:"tier"`
	PricePerUnit           pricing.Money          `json:"pricePerUnit"`
	BaseCost               pricing.Money          `json:"baseCost"`
	VolumeDiscountFraction pricing.Money          `json:"volumeDiscountFraction"`
	VolumeSavings          pricing.Money          `json:"volumeSavings"`
	AddOns                 []pricing.LineItemView `json:"addOns"`
	Subtotal               pricing.Money          `json:"subtotal"`
	Discount               *DiscountLine          `json:"discount,omitempty"`
	DiscountAmount         pricing.Money          `json:"discountAmount"`
	GrandTotal             pricing.Money          `json:"grandTotal"`
	ServiceClass           capacity.Class         `json:"serviceClass"`
	Delivery               Delivery               `json:"delivery"`
	Marketplace            *pricing.AddOnOption   `json:"marketplace,omitempty"`
	Breakdown              []string               `json:"breakdown"`
}

// DiscountLine is an applied discount code.
type DiscountLine struct {
	Code        string          `json:"code"`
	Kind        discount.Kind   `json:"type"`
	Amount      pricing.Money   `json:"amount"`
	Capped      bool            `json:"capped,omitempty"`
	Description string          `json:"description,omitempty"`
	Source      discount.Source `json:"source,omitempty"`
}

// Delivery is the delivery estimate captured at composition time.
type Delivery struct {
	Date      time.Time     `json:"date"`
	Available bool          `json:"available"`
	Message   string        `json:"message"`
	Surcharge pricing.Money `json:"surcharge"`
	SlotDay   string        `json:"slotDay"`
}
