package service

import (
	"testing"

	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/product"
	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/rebillhq/rebill/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type LineItemPricerSuite struct {
	testutil.BaseServiceTestSuite
	service LineItemPricerService
	params  ServiceParams
}

func TestLineItemPricerService(t *testing.T) {
	suite.Run(t, new(LineItemPricerSuite))
}

func (s *LineItemPricerSuite) SetupTest() {
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
	s.service = NewLineItemPricerService(s.params)

	s.GetStores().ProductStore.AddProduct(&product.Product{
		ID:        "prod_1",
		Name:      "Monthly Box",
		Price:     decimal.RequireFromString("49.99"),
		Shippable: true,
		Taxable:   true,
	})
}

func (s *LineItemPricerSuite) dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func (s *LineItemPricerSuite) TestVolumeSnapshotWins() {
	li := &order.LineItem{
		ID:                    "li_1",
		ProductID:             "prod_1",
		Quantity:              2,
		PrepaidCycles:         1,
		VolumeDiscountedPrice: s.dec("44.50"),
		TrialDelayPrice:       s.dec("9.99"),
		CycleDepth:            -1,
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("44.50")))
	s.False(resolved.ApplyBillingModelDiscount,
		"snapshot price already includes the billing model discount")
}

func (s *LineItemPricerSuite) TestVolumeSnapshotIgnoredWhenFeatureDisabled() {
	s.params.Config.Pricing.VolumeDiscountEnabled = false

	li := &order.LineItem{
		ID:                    "li_1",
		ProductID:             "prod_1",
		Quantity:              1,
		PrepaidCycles:         1,
		VolumeDiscountedPrice: s.dec("44.50"),
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("49.99")),
		"falls through to the product price")
}

func (s *LineItemPricerSuite) TestTrialDelayPrice() {
	li := &order.LineItem{
		ID:              "li_1",
		ProductID:       "prod_1",
		Quantity:        1,
		PrepaidCycles:   1,
		CycleDepth:      -1,
		TrialDelayPrice: s.dec("4.99"),
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("4.99")))
	s.False(resolved.ApplyBillingModelDiscount)
}

func (s *LineItemPricerSuite) TestBundleFixedPrice() {
	s.GetStores().ProductStore.AddProduct(&product.Product{
		ID:               "bundle_1",
		Price:            decimal.RequireFromString("99.00"),
		IsBundle:         true,
		BundleFixedPrice: true,
		Shippable:        true,
	})

	li := &order.LineItem{
		ID:            "li_1",
		ProductID:     "bundle_1",
		Quantity:      1,
		PrepaidCycles: 1,
		Children: []order.BundleChild{
			{ProductID: "child_1", Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("99.00")),
		"fixed price bundles ignore child prices")
	s.True(resolved.ApplyBillingModelDiscount)
	s.Empty(resolved.BundleChildren)
}

func (s *LineItemPricerSuite) TestBundlePerItemSum() {
	s.GetStores().ProductStore.AddProduct(&product.Product{
		ID:        "bundle_2",
		Price:     decimal.RequireFromString("0"),
		IsBundle:  true,
		Shippable: true,
	})

	li := &order.LineItem{
		ID:            "li_1",
		ProductID:     "bundle_2",
		Quantity:      1,
		PrepaidCycles: 1,
		Children: []order.BundleChild{
			{ProductID: "child_1", Quantity: 2, Price: decimal.RequireFromString("10.50")},
			{ProductID: "child_2", Quantity: 1, Price: decimal.RequireFromString("5.25")},
		},
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("26.25")))
	s.Len(resolved.BundleChildren, 2)
}

func (s *LineItemPricerSuite) TestPrepaidFinalCycleMultiplier() {
	li := &order.LineItem{
		ID:                "li_1",
		ProductID:         "prod_1",
		Quantity:          1,
		BasePrice:         decimal.RequireFromString("30.00"),
		PrepaidCycles:     3,
		PrepaidCycleIndex: 3,
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("90.00")))
	s.False(resolved.PrepaidZeroCycle)
	s.False(resolved.ApplyBillingModelDiscount)
}

func (s *LineItemPricerSuite) TestPrepaidMidCycleBillsZero() {
	li := &order.LineItem{
		ID:                "li_1",
		ProductID:         "prod_1",
		Quantity:          1,
		BasePrice:         decimal.RequireFromString("30.00"),
		PrepaidCycles:     3,
		PrepaidCycleIndex: 2,
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.IsZero())
	s.True(resolved.PrepaidZeroCycle)
}

func (s *LineItemPricerSuite) TestExplicitOverride() {
	li := &order.LineItem{
		ID:                 "li_1",
		ProductID:          "prod_1",
		Quantity:           1,
		PrepaidCycles:      1,
		NextRecurringPrice: s.dec("39.99"),
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("39.99")))
	s.False(resolved.ApplyBillingModelDiscount,
		"stored override already includes the billing model discount by default")

	li.NextPriceExcludesBillingModel = true
	resolved, err = s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.ApplyBillingModelDiscount)
}

func (s *LineItemPricerSuite) TestNextProductSwap() {
	s.GetStores().ProductStore.AddProduct(&product.Product{
		ID:    "prod_2",
		Price: decimal.RequireFromString("59.99"),
	})

	li := &order.LineItem{
		ID:            "li_1",
		ProductID:     "prod_1",
		NextProductID: "prod_2",
		Quantity:      1,
		NextQuantity:  3,
		PrepaidCycles: 1,
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.Equal("prod_2", resolved.ProductID)
	s.Equal(3, resolved.Quantity)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("59.99")))
}

func (s *LineItemPricerSuite) TestVariantPriceFallback() {
	variantID := "var_1"
	s.GetStores().ProductStore.AddVariant(&product.Variant{
		ID:        variantID,
		ProductID: "prod_1",
		Price:     s.dec("54.99"),
	})

	li := &order.LineItem{
		ID:            "li_1",
		ProductID:     "prod_1",
		VariantID:     &variantID,
		Quantity:      1,
		PrepaidCycles: 1,
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("54.99")))
	s.True(resolved.ApplyBillingModelDiscount)
}

func (s *LineItemPricerSuite) TestVariantOfDifferentProductRejected() {
	variantID := "var_other"
	s.GetStores().ProductStore.AddVariant(&product.Variant{
		ID:        variantID,
		ProductID: "prod_other",
	})

	li := &order.LineItem{
		ID:            "li_1",
		ProductID:     "prod_1",
		VariantID:     &variantID,
		Quantity:      1,
		PrepaidCycles: 1,
	}

	_, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *LineItemPricerSuite) TestProductPriceFallback() {
	li := &order.LineItem{
		ID:            "li_1",
		ProductID:     "prod_1",
		Quantity:      2,
		PrepaidCycles: 1,
	}

	resolved, err := s.service.ResolveNextBill(s.GetContext(), &order.Order{}, li)
	s.NoError(err)
	s.True(resolved.UnitPrice.Equal(decimal.RequireFromString("49.99")))
	s.Equal(2, resolved.Quantity)
	s.True(resolved.ApplyBillingModelDiscount)
}
