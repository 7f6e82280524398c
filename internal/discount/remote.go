package discount

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/snapstudio-api/internal/resilience"
)

// RemoteStore resolves codes against the authoritative discount service with
// GET {BaseURL}/codes/{code}. Transport failures, 5xx responses and an open
// circuit are reported as ErrValidationUnreachable.
type RemoteStore struct {
	BaseURL string
	Client  resilience.HTTPClient
}

type remoteCode struct {
	Code            string           `json:"code"`
	Type            string           `json:"type"`
	Value           decimal.Decimal  `json:"value"`
	MinimumOrder    decimal.Decimal  `json:"minimumOrder"`
	MaximumDiscount *decimal.Decimal `json:"maximumDiscount"`
	ExpiresAt       *time.Time       `json:"expiresAt"`
	UsageLimit      *int             `json:"usageLimit"`
	UsageCount      int              `json:"usageCount"`
	Description     string           `json:"description"`
}

// Lookup implements Store.
func (s *RemoteStore) Lookup(ctx context.Context, code string) (Code, error) {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		return Code{}, fmt.Errorf("%w: discount service url not configured", ErrValidationUnreachable)
	}
	normalized := Normalize(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/codes/"+url.PathEscape(normalized), nil)
	if err != nil {
		return Code{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return Code{}, fmt.Errorf("%w: %v", ErrValidationUnreachable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Code{}, ErrInvalidCode
	case resp.StatusCode >= 300:
		return Code{}, fmt.Errorf("discount: service returned %s", resp.Status)
	}

	var payload struct {
		Data remoteCode `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return Code{}, fmt.Errorf("discount: decode service response: %w", err)
	}
	return payload.Data.toCode(normalized)
}

func (rc remoteCode) toCode(requested string) (Code, error) {
	kind, err := ParseKind(rc.Type)
	if err != nil {
		return Code{}, err
	}
	c := Code{
		Code:            Normalize(rc.Code),
		Kind:            kind,
		Value:           rc.Value,
		MinimumOrder:    rc.MinimumOrder,
		MaximumDiscount: rc.MaximumDiscount,
		ExpiresAt:       rc.ExpiresAt,
		UsageLimit:      rc.UsageLimit,
		UsageCount:      rc.UsageCount,
		Description:     rc.Description,
	}
	if c.Code == "" {
		c.Code = requested
	}
	return c, nil
}
