package types

import (
	ierr "github.com/rebillhq/rebill/internal/errors"
)

// OfferType is the billing offer configuration of a subscription
type OfferType string

const (
	// OfferTypeStandard bills the same product every cycle
	OfferTypeStandard OfferType = "standard"

	// OfferTypePrepaid charges N future recurrences up front; the last prepaid
	// cycle triggers a multiplied charge, other cycles bill zero
	OfferTypePrepaid OfferType = "prepaid"

	// OfferTypeSeasonal bills on configured seasonal cycle dates
	OfferTypeSeasonal OfferType = "seasonal"

	// OfferTypeSeries bills the next product in a configured sequence
	OfferTypeSeries OfferType = "series"
)

func (t OfferType) Validate() error {
	switch t {
	case OfferTypeStandard, OfferTypePrepaid, OfferTypeSeasonal, OfferTypeSeries:
		return nil
	}
	return ierr.NewErrorf("unknown offer type: %s", t).
		WithHint("Offer type must be standard, prepaid, seasonal or series").
		Mark(ierr.ErrValidation)
}

// TaxStrategy selects how order tax is computed
type TaxStrategy string

const (
	// TaxStrategyProvider delegates to an external tax provider with itemized
	// product, tax code and shipping data
	TaxStrategyProvider TaxStrategy = "provider"

	// TaxStrategyManual applies a manually configured regional sales tax and
	// VAT profile
	TaxStrategyManual TaxStrategy = "manual"
)

func (t TaxStrategy) Validate() error {
	switch t {
	case TaxStrategyProvider, TaxStrategyManual:
		return nil
	}
	return ierr.NewErrorf("unknown tax strategy: %s", t).
		WithHint("Tax strategy must be provider or manual").
		Mark(ierr.ErrValidation)
}
