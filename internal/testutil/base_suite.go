package testutil

import (
	"context"

	"github.com/rebillhq/rebill/internal/config"
	"github.com/rebillhq/rebill/internal/logger"
	"github.com/rebillhq/rebill/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores bundles the in-memory repositories for a test run
type Stores struct {
	OrderStore          *InMemoryOrderStore
	ProductStore        *InMemoryProductStore
	ShippingStore       *InMemoryShippingStore
	TaxProfileStore     *InMemoryTaxProfileStore
	VolumeDiscountStore *InMemoryVolumeDiscountStore
}

// BaseServiceTestSuite provides common setup for service layer tests
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	cfg    *config.Configuration
	logger *logger.Logger
}

// SetupTest initializes fresh stores and context before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = types.SetRequestID(context.Background(), types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST))
	s.cfg = config.GetDefaultConfig()
	s.logger = logger.GetLogger()
	s.stores = Stores{
		OrderStore:          NewInMemoryOrderStore(),
		ProductStore:        NewInMemoryProductStore(),
		ShippingStore:       NewInMemoryShippingStore(),
		TaxProfileStore:     NewInMemoryTaxProfileStore(),
		VolumeDiscountStore: NewInMemoryVolumeDiscountStore(),
	}
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.cfg
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}
