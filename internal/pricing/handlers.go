package pricing

import (
	"net/http"
	"strings"

	"github.com/noah-isme/snapstudio-api/internal/common"
)

// Handler exposes the calculator and static pricing tables.
type Handler struct {
	Calc     *Calculator
	Packages *PackageCatalog
}

type quoteRequest struct {
	Quantity            int       `json:"quantity" validate:"min=0"`
	AddOns              Selection `json:"addOns"`
	SelectedMarketplace string    `json:"selectedMarketplace" validate:"max=64"`
	PackageID           string    `json:"packageId" validate:"max=64"`
}

// Quote prices a quantity (or package) with add-ons without composing an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Calc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing calculator not configured", nil)
		return
	}
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	fields := h.Calc.AddOns().ValidateSelection(req.AddOns, req.SelectedMarketplace)
	pkgID := strings.TrimSpace(req.PackageID)
	var pkg Package
	if pkgID != "" {
		p, ok := h.Packages.Lookup(pkgID)
		if !ok {
			fields["packageId"] = "unknown package"
		}
		pkg = p
	} else if req.Quantity < 1 {
		fields["quantity"] = "must be a positive number"
	}
	if len(fields) > 0 {
		common.WriteError(w, common.ValidationFailed(fields))
		return
	}
	opts := Options{SelectedMarketplace: req.SelectedMarketplace}
	var q Quote
	if pkgID != "" {
		q = h.Calc.CalculatePackage(pkg, req.AddOns, opts)
	} else {
		q = h.Calc.Calculate(req.Quantity, req.AddOns, opts)
	}
	common.Data(w, http.StatusOK, q.View())
}

// Tiers lists the volume tiers.
func (h *Handler) Tiers(w http.ResponseWriter, _ *http.Request) {
	tiers := h.Calc.Tiers().Tiers()
	out := make([]TierView, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, NewTierView(t))
	}
	common.Data(w, http.StatusOK, map[string]any{
		"listPrice":    Round(h.Calc.Tiers().ListPrice()),
		"minimumOrder": h.Calc.Tiers().MinimumOrder(),
		"tiers":        out,
	})
}

// AddOns lists the add-on catalog in pricing order.
func (h *Handler) AddOns(w http.ResponseWriter, _ *http.Request) {
	addOns := h.Calc.AddOns().AddOns()
	out := make([]AddOnView, 0, len(addOns))
	for _, a := range addOns {
		out = append(out, NewAddOnView(a))
	}
	common.Data(w, http.StatusOK, out)
}

// PackagesList lists flat-rate packages and subscription plans.
func (h *Handler) PackagesList(w http.ResponseWriter, _ *http.Request) {
	if h.Packages == nil {
		common.Data(w, http.StatusOK, []Package{})
		return
	}
	pkgs := h.Packages.Packages()
	for i := range pkgs {
		perEdit := Round(pkgs[i].Price.Div(decimalFromInt(pkgs[i].Assets)))
		pkgs[i].PerEdit = &perEdit
	}
	common.Data(w, http.StatusOK, pkgs)
}
