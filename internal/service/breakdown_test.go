package service

import (
	"testing"

	"github.com/rebillhq/rebill/internal/domain/order"
	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/rebillhq/rebill/internal/testutil"
	"github.com/rebillhq/rebill/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BreakdownServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BreakdownService
	params  ServiceParams
}

func TestBreakdownService(t *testing.T) {
	suite.Run(t, new(BreakdownServiceSuite))
}

func (s *BreakdownServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.params = ServiceParams{
		Logger:             s.GetLogger(),
		Config:             s.GetConfig(),
		OrderRepo:          s.GetStores().OrderStore,
		ProductRepo:        s.GetStores().ProductStore,
		ShippingRepo:       s.GetStores().ShippingStore,
		VolumeDiscountRepo: s.GetStores().VolumeDiscountStore,
		TaxProfileRepo:     s.GetStores().TaxProfileStore,
	}
	s.service = NewBreakdownService(s.params)
}

func (s *BreakdownServiceSuite) d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *BreakdownServiceSuite) TestOrderNotFound() {
	_, err := s.service.Reconstruct(s.GetContext(), "ord_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *BreakdownServiceSuite) TestPerLineUnwind() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypeStandard,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("50.00"),
				StoredTotal:     s.d("40.00"),
				Discounts: types.DiscountMap{
					types.DiscountBillingModel: s.d("10.00"),
				}},
		},
		StoredTotal: s.d("40.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	s.Require().Len(result.LineItems, 1)
	li := result.LineItems[0]
	s.True(li.BaseUnitPrice.Equal(s.d("50.00")),
		"adding the discount back recovers the base unit price")
	s.True(li.Subtotal.Equal(s.d("50.00")))
	s.True(li.Total.Equal(s.d("40.00")))
	s.True(li.Discounts.Get(types.DiscountBillingModel).Equal(s.d("10.00")))
	s.True(result.Total.Equal(s.d("40.00")))
	s.Empty(result.ExcludedFromCalculation)
	s.NotEmpty(result.BreakdownID)
}

func (s *BreakdownServiceSuite) TestStackedDiscountsUnwindInReverseOrder() {
	// forward: 100 -> billing model 10 -> 90 -> rebill 4.50 -> 85.50 ->
	// retry 8.55 -> 76.95
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypeStandard,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("100.00"),
				StoredTotal:     s.d("76.95"),
				Discounts: types.DiscountMap{
					types.DiscountBillingModel: s.d("10.00"),
					types.DiscountRebill:       s.d("4.50"),
					types.DiscountRetry:        s.d("8.55"),
				}},
		},
		StoredTotal: s.d("76.95"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)
	s.True(result.LineItems[0].BaseUnitPrice.Equal(s.d("100.00")))
	s.True(result.Subtotal.Equal(s.d("100.00")))
	s.True(result.Total.Equal(s.d("76.95")))
}

func (s *BreakdownServiceSuite) TestPrepaidBaseUnitPrice() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypePrepaid,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 2, PrepaidCycles: 3, IsMain: true,
				StoredUnitPrice: s.d("10.00"),
				StoredTotal:     s.d("60.00")},
		},
		StoredTotal: s.d("60.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)
	s.True(result.LineItems[0].BaseUnitPrice.Equal(s.d("10.00")),
		"base unit price divides by quantity times prepaid cycles")
}

// The stored order level retry amount of 5.00 is explained exactly by the
// unit price candidate: 45.00 * 10 / (100 - 10) = 5.00.
func (s *BreakdownServiceSuite) TestRetryInferredFromUnitPrice() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:                   "ord_1",
		OfferType:            types.OfferTypeStandard,
		RetryDiscountPercent: s.d("10"),
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("45.00"),
				StoredTotal:     s.d("45.00")},
		},
		OrderDiscounts: types.DiscountMap{
			types.DiscountRetry: s.d("5.00"),
		},
		StoredTotal: s.d("45.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	li := result.LineItems[0]
	s.True(li.Discounts.Get(types.DiscountRetry).Equal(s.d("5.00")))
	s.True(li.BaseUnitPrice.Equal(s.d("50.00")),
		"pre retry amount is recovered on the line")
	s.Empty(result.ExcludedFromCalculation)
	s.True(result.Total.Equal(s.d("45.00")))
}

func (s *BreakdownServiceSuite) TestRetryInferredWithShippingDiscount() {
	// unit share 45.00 / 9 = 5.00, shipping share 5.00 / 9 -> 0.56; only the
	// with_shipping variant sums to the stored 5.56
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:                   "ord_1",
		OfferType:            types.OfferTypeStandard,
		RetryDiscountPercent: s.d("10"),
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("45.00"),
				StoredTotal:     s.d("45.00")},
		},
		OrderDiscounts: types.DiscountMap{
			types.DiscountRetry: s.d("5.56"),
		},
		StoredTotal:          s.d("49.44"),
		StoredShippingAmount: s.d("5.00"),
		HistoricalNotes:      []string{"Retry recovered with shipping discount applied"},
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	s.True(result.LineItems[0].Discounts.Get(types.DiscountRetry).Equal(s.d("5.00")))
	s.True(result.Shipping.Discount.Equal(s.d("0.56")))
	s.True(result.Shipping.Total.Equal(s.d("4.44")))
	s.Empty(result.ExcludedFromCalculation)
	s.True(result.Total.Equal(s.d("49.44")))
}

func (s *BreakdownServiceSuite) TestRetryShippingVariantNeedsMarker() {
	// same amounts as above but without the historical marker: no candidate
	// matches, so the retry amount stays order level and excluded
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:                   "ord_1",
		OfferType:            types.OfferTypeStandard,
		RetryDiscountPercent: s.d("10"),
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("45.00"),
				StoredTotal:     s.d("45.00")},
		},
		OrderDiscounts: types.DiscountMap{
			types.DiscountRetry: s.d("5.56"),
		},
		StoredTotal:          s.d("49.44"),
		StoredShippingAmount: s.d("5.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	s.False(result.LineItems[0].Discounts.Has(types.DiscountRetry))
	s.True(result.OrderDiscounts.Get(types.DiscountRetry).Equal(s.d("5.56")))
	s.Contains(result.ExcludedFromCalculation, types.DiscountRetry.String())
	s.True(result.Total.Equal(s.d("49.44")))
}

func (s *BreakdownServiceSuite) TestRetryUnattributableStaysOrderLevel() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:                   "ord_1",
		OfferType:            types.OfferTypeStandard,
		RetryDiscountPercent: s.d("10"),
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("45.00"),
				StoredTotal:     s.d("45.00")},
		},
		OrderDiscounts: types.DiscountMap{
			types.DiscountRetry: s.d("7.77"),
		},
		StoredTotal: s.d("45.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	s.True(result.OrderDiscounts.Get(types.DiscountRetry).Equal(s.d("7.77")))
	s.Contains(result.ExcludedFromCalculation, types.DiscountRetry.String())
	// the excluded amount is not subtracted, so the stored total still
	// reconciles
	s.True(result.Total.Equal(s.d("45.00")))
	s.True(result.LineItems[0].BaseUnitPrice.Equal(s.d("45.00")),
		"excluded discounts do not inflate the reconstructed base price")
}

func (s *BreakdownServiceSuite) TestRetryWithoutPercentConfigured() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypeStandard,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("45.00"),
				StoredTotal:     s.d("45.00")},
		},
		OrderDiscounts: types.DiscountMap{
			types.DiscountRetry: s.d("5.00"),
		},
		StoredTotal: s.d("45.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)
	s.Contains(result.ExcludedFromCalculation, types.DiscountRetry.String(),
		"no retry percentage means no candidate can be built")
}

func (s *BreakdownServiceSuite) TestOrderLevelVolumeFoldsIntoSingleLine() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypeStandard,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("50.00"),
				StoredTotal:     s.d("44.00")},
		},
		OrderDiscounts: types.DiscountMap{
			types.DiscountVolume: s.d("6.00"),
		},
		StoredTotal: s.d("44.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	li := result.LineItems[0]
	s.True(li.Discounts.Get(types.DiscountVolume).Equal(s.d("6.00")))
	s.True(li.BaseUnitPrice.Equal(s.d("50.00")))
	s.Empty(result.ExcludedFromCalculation)
	s.False(result.OrderDiscounts.Has(types.DiscountVolume))
}

func (s *BreakdownServiceSuite) TestOrderLevelVolumeExcludedAcrossMultipleLines() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypeStandard,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("40.00"),
				StoredTotal:     s.d("36.00")},
			{ID: "li_2", ProductID: "prod_2", Quantity: 1, PrepaidCycles: 1, IsAddon: true,
				StoredUnitPrice: s.d("20.00"),
				StoredTotal:     s.d("18.00")},
		},
		OrderDiscounts: types.DiscountMap{
			types.DiscountVolume: s.d("6.00"),
		},
		StoredTotal: s.d("54.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	// the original per line split is unknowable, so the amount stays order
	// level and the reconstructed bases are left untouched
	s.True(result.OrderDiscounts.Get(types.DiscountVolume).Equal(s.d("6.00")))
	s.Contains(result.ExcludedFromCalculation, types.DiscountVolume.String())
	s.True(result.LineItems[0].BaseUnitPrice.Equal(s.d("36.00")))
	s.True(result.LineItems[1].BaseUnitPrice.Equal(s.d("18.00")))
	s.True(result.Total.Equal(s.d("54.00")))
}

func (s *BreakdownServiceSuite) TestStoredTaxAndShippingCarriedThrough() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypeStandard,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("50.00"),
				StoredTotal:     s.d("50.00")},
		},
		StoredTotal:          s.d("62.99"),
		StoredShippingAmount: s.d("5.99"),
		StoredTaxAmount:      s.d("4.00"),
		StoredVatAmount:      s.d("3.00"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)

	s.True(result.Shipping.Amount.Equal(s.d("5.99")))
	s.True(result.Tax.TaxAmount.Equal(s.d("4.00")))
	s.True(result.Tax.VatAmount.Equal(s.d("3.00")))
	s.True(result.Total.Equal(s.d("62.99")))
}

// When the recomputed total disagrees with the stored ledger total, the
// stored value wins.
func (s *BreakdownServiceSuite) TestStoredGroundTruthWinsOnMismatch() {
	s.GetStores().OrderStore.Set("ord_1", &order.Order{
		ID:        "ord_1",
		OfferType: types.OfferTypeStandard,
		LineItems: []*order.LineItem{
			{ID: "li_1", ProductID: "prod_1", Quantity: 1, PrepaidCycles: 1, IsMain: true,
				StoredUnitPrice: s.d("50.00"),
				StoredTotal:     s.d("50.00")},
		},
		// a legacy adjustment not visible in any snapshot field
		StoredTotal: s.d("47.50"),
	})

	result, err := s.service.Reconstruct(s.GetContext(), "ord_1")
	s.NoError(err)
	s.True(result.Total.Equal(s.d("47.50")),
		"stored ground truth total is authoritative")
}
