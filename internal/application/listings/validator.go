package listings

import (
	"strings"

	"cropmarket-backend/internal/pkg/validation"
)

// Bounds of the quantity_tons decimal(14,3) and price_per_kg decimal(12,4)
// columns. Quantities below minQuantityTons would round to zero.
const (
	minQuantityTons = 0.0005
	maxQuantityTons = 99_999_999_999
	maxPricePerKg   = 99_999_999
)

// RawListing holds the submitted text fields exactly as received.
type RawListing struct {
	CropType     string
	Region       string
	QuantityTons string
	PricePerKg   string
	PriceNote    string
	HarvestStart string
	HarvestEnd   string
	SellerName   string
	SellerPhone  string
	SellerEmail  string
	Description  string
}

// NewListing is a validated submission. Optional fields are nil when the
// submitted value was empty after trimming.
type NewListing struct {
	CropType     string
	Region       string
	QuantityTons float64
	PricePerKg   *float64
	PriceNote    *string
	HarvestStart *string
	HarvestEnd   *string
	SellerName   string
	SellerPhone  *string
	SellerEmail  *string
	Description  *string
}

// Validate normalises raw and reports the first failing field. Checks run in a
// fixed order: required text, quantity, price, then the harvest window.
// The harvest bounds are not compared to each other and the email is not
// checked beyond being non-empty.
func Validate(raw RawListing) (*NewListing, error) {
	in := &NewListing{
		CropType:     strings.TrimSpace(raw.CropType),
		Region:       strings.TrimSpace(raw.Region),
		SellerName:   strings.TrimSpace(raw.SellerName),
		PriceNote:    optional(raw.PriceNote),
		HarvestStart: optional(raw.HarvestStart),
		HarvestEnd:   optional(raw.HarvestEnd),
		SellerPhone:  optional(raw.SellerPhone),
		SellerEmail:  optional(raw.SellerEmail),
		Description:  optional(raw.Description),
	}

	switch {
	case in.CropType == "":
		return nil, invalid("cropType", "cropType is required")
	case in.Region == "":
		return nil, invalid("region", "region is required")
	case in.SellerName == "":
		return nil, invalid("sellerName", "sellerName is required")
	}

	qty, ok := validation.ParseNumber(raw.QuantityTons)
	if !ok || qty < minQuantityTons {
		return nil, invalid("quantityTons", "quantityTons must be a positive number")
	}
	if qty > maxQuantityTons {
		return nil, invalid("quantityTons", "quantityTons is too large")
	}
	in.QuantityTons = qty

	if strings.TrimSpace(raw.PricePerKg) != "" {
		price, ok := validation.ParseNumber(raw.PricePerKg)
		if !ok || price < 0 {
			return nil, invalid("pricePerKg", "pricePerKg must be a number >= 0")
		}
		if price > maxPricePerKg {
			return nil, invalid("pricePerKg", "pricePerKg is too large")
		}
		in.PricePerKg = &price
	}

	if in.HarvestStart != nil && !validation.IsYearMonth(*in.HarvestStart) {
		return nil, invalid("harvestStart", "harvestStart must be YYYY-MM")
	}
	if in.HarvestEnd != nil && !validation.IsYearMonth(*in.HarvestEnd) {
		return nil, invalid("harvestEnd", "harvestEnd must be YYYY-MM")
	}
	return in, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
