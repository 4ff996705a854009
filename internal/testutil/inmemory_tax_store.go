package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/tax"
)

// InMemoryTaxProfileStore implements tax.ProfileRepository with most specific
// match wins semantics over country/state/county/city
type InMemoryTaxProfileStore struct {
	mu       sync.RWMutex
	profiles []*tax.RegionalProfile
}

func NewInMemoryTaxProfileStore() *InMemoryTaxProfileStore {
	return &InMemoryTaxProfileStore{}
}

func (s *InMemoryTaxProfileStore) AddProfile(p *tax.RegionalProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, p)
}

func (s *InMemoryTaxProfileStore) GetProfile(ctx context.Context, addr order.Address) (*tax.RegionalProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *tax.RegionalProfile
	bestScore := -1
	for _, p := range s.profiles {
		score := matchScore(p, addr)
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	if bestScore < 0 {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

// matchScore returns -1 when the profile does not apply, otherwise the number
// of matched address components
func matchScore(p *tax.RegionalProfile, addr order.Address) int {
	if !strings.EqualFold(p.Country, addr.Country) {
		return -1
	}
	score := 1
	for _, pair := range [][2]string{
		{p.State, addr.State},
		{p.County, addr.County},
		{p.City, addr.City},
	} {
		if pair[0] == "" {
			continue
		}
		if !strings.EqualFold(pair[0], pair[1]) {
			return -1
		}
		score++
	}
	return score
}

func (s *InMemoryTaxProfileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = nil
}
