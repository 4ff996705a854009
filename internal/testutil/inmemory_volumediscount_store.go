package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/rebillhq/rebill/internal/domain/volumediscount"
)

// InMemoryVolumeDiscountStore implements volumediscount.Repository
type InMemoryVolumeDiscountStore struct {
	mu        sync.RWMutex
	tiers     []*volumediscount.Tier
	whitelist []string
}

func NewInMemoryVolumeDiscountStore() *InMemoryVolumeDiscountStore {
	return &InMemoryVolumeDiscountStore{}
}

func (s *InMemoryVolumeDiscountStore) AddTier(t *volumediscount.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = append(s.tiers, t)
	sort.Slice(s.tiers, func(i, j int) bool {
		return s.tiers[i].MinUnits < s.tiers[j].MinUnits
	})
}

func (s *InMemoryVolumeDiscountStore) SetProductWhitelist(productIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist = productIDs
}

// GetTierForUnitCount returns the highest tier whose MinUnits does not exceed
// the unit count
func (s *InMemoryVolumeDiscountStore) GetTierForUnitCount(ctx context.Context, units int) (*volumediscount.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *volumediscount.Tier
	for _, t := range s.tiers {
		if units >= t.MinUnits {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (s *InMemoryVolumeDiscountStore) GetProductWhitelist(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.whitelist...), nil
}

func (s *InMemoryVolumeDiscountStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = nil
	s.whitelist = nil
}
