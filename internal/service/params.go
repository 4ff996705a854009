package service

import (
	"github.com/rebillhq/rebill/internal/config"
	"github.com/rebillhq/rebill/internal/domain/coupon"
	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/product"
	"github.com/rebillhq/rebill/internal/domain/shipping"
	"github.com/rebillhq/rebill/internal/domain/tax"
	"github.com/rebillhq/rebill/internal/domain/volumediscount"
	"github.com/rebillhq/rebill/internal/logger"
	"github.com/rebillhq/rebill/internal/sentry"
)

// ServiceParams is the common dependency bag embedded by all services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Sentry *sentry.Service

	OrderRepo          order.Repository
	ProductRepo        product.Repository
	ShippingRepo       shipping.Repository
	VolumeDiscountRepo volumediscount.Repository
	TaxProfileRepo     tax.ProfileRepository
	TaxProvider        tax.Provider
	CouponService      coupon.Service
}
