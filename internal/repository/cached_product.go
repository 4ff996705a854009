package repository

import (
	"context"
	"fmt"

	"github.com/rebillhq/rebill/internal/cache"
	"github.com/rebillhq/rebill/internal/domain/product"
	"github.com/rebillhq/rebill/internal/logger"
)

// cachedProductRepository fronts a product repository with a cache. Batch
// forecasts resolve the same catalog entries over and over, so catalog reads
// are the one hot path worth caching.
type cachedProductRepository struct {
	inner  product.Repository
	cache  cache.Cache
	logger *logger.Logger
}

func NewCachedProductRepository(inner product.Repository, c cache.Cache, log *logger.Logger) product.Repository {
	return &cachedProductRepository{
		inner:  inner,
		cache:  c,
		logger: log,
	}
}

func (r *cachedProductRepository) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	key := fmt.Sprintf("product:%s", id)
	if cached, ok := cache.GetTyped[product.Product](r.cache, key); ok {
		return cached, nil
	}

	p, err := r.inner.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, p)
	return p, nil
}

func (r *cachedProductRepository) GetVariant(ctx context.Context, id string) (*product.Variant, error) {
	key := fmt.Sprintf("variant:%s", id)
	if cached, ok := cache.GetTyped[product.Variant](r.cache, key); ok {
		return cached, nil
	}

	v, err := r.inner.GetVariant(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, v)
	return v, nil
}
