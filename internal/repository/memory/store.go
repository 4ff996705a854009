// Package memory provides seed-file backed, read-only repository
// implementations. The pricing engine is defined over snapshots; durable
// storage of orders and catalogs belongs to the surrounding system.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rebillhq/rebill/internal/domain/order"
	"github.com/rebillhq/rebill/internal/domain/product"
	"github.com/rebillhq/rebill/internal/domain/shipping"
	"github.com/rebillhq/rebill/internal/domain/tax"
	"github.com/rebillhq/rebill/internal/domain/volumediscount"
	ierr "github.com/rebillhq/rebill/internal/errors"
)

// Seed is the JSON shape of a seed file
type Seed struct {
	Orders           []*order.Order         `json:"orders"`
	Products         []*product.Product     `json:"products"`
	Variants         []*product.Variant     `json:"variants"`
	ShippingMethods  []*shipping.Method     `json:"shipping_methods"`
	LastUsedShipping map[string]string      `json:"last_used_shipping,omitempty"`
	TaxProfiles      []*tax.RegionalProfile `json:"tax_profiles"`
	VolumeTiers      []*volumediscount.Tier `json:"volume_tiers"`
	VolumeWhitelist  []string               `json:"volume_whitelist,omitempty"`
}

// Store implements all read model repositories over an in-memory seed
type Store struct {
	mu   sync.RWMutex
	seed Seed

	ordersByID   map[string]*order.Order
	productsByID map[string]*product.Product
	variantsByID map[string]*product.Variant
	shippingByID map[string]*shipping.Method
}

func NewStore() *Store {
	s := &Store{}
	s.index()
	return s
}

// LoadSeedFile replaces the store contents with the given seed file
func (s *Store) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to read seed file %s", path).
			Mark(ierr.ErrSystem)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to parse seed file %s", path).
			Mark(ierr.ErrSystem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	s.index()
	return nil
}

func (s *Store) index() {
	s.ordersByID = make(map[string]*order.Order)
	s.productsByID = make(map[string]*product.Product)
	s.variantsByID = make(map[string]*product.Variant)
	s.shippingByID = make(map[string]*shipping.Method)
	for _, o := range s.seed.Orders {
		s.ordersByID[o.ID] = o
	}
	for _, p := range s.seed.Products {
		s.productsByID[p.ID] = p
	}
	for _, v := range s.seed.Variants {
		s.variantsByID[v.ID] = v
	}
	for _, m := range s.seed.ShippingMethods {
		s.shippingByID[m.ID] = m
	}
}

func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.ordersByID[id]
	if !ok {
		return nil, ierr.NewErrorf("order %s not found", id).
			WithHint("Order not found").
			Mark(ierr.ErrNotFound)
	}
	return o, nil
}

func (s *Store) ListActiveOrderIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for id, o := range s.ordersByID {
		for _, li := range o.LineItems {
			if li.Recurring && li.NextRecurringDate != nil {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.productsByID[id]
	if !ok {
		return nil, ierr.NewErrorf("product %s not found", id).
			WithHint("Product not found").
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetVariant(ctx context.Context, id string) (*product.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variantsByID[id]
	if !ok {
		return nil, ierr.NewErrorf("variant %s not found", id).
			WithHint("Variant not found").
			Mark(ierr.ErrNotFound)
	}
	return v, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*shipping.Method, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.shippingByID[id]
	if !ok {
		return nil, ierr.NewErrorf("shipping method %s not found", id).
			WithHint("Shipping method not found").
			Mark(ierr.ErrNotFound)
	}
	return m, nil
}

func (s *Store) GetLastUsed(ctx context.Context, orderID string) (*shipping.Method, error) {
	s.mu.RLock()
	methodID, ok := s.seed.LastUsedShipping[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetByID(ctx, methodID)
}

func (s *Store) GetProfile(ctx context.Context, addr order.Address) (*tax.RegionalProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *tax.RegionalProfile
	bestScore := -1
	for _, p := range s.seed.TaxProfiles {
		score := profileScore(p, addr)
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	if bestScore < 0 {
		return nil, nil
	}
	return best, nil
}

func profileScore(p *tax.RegionalProfile, addr order.Address) int {
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

func (s *Store) GetTierForUnitCount(ctx context.Context, units int) (*volumediscount.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *volumediscount.Tier
	for _, t := range s.seed.VolumeTiers {
		if units >= t.MinUnits && (best == nil || t.MinUnits > best.MinUnits) {
			best = t
		}
	}
	return best, nil
}

func (s *Store) GetProductWhitelist(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.seed.VolumeWhitelist...), nil
}
