package catalog

import "pack-store/internal/model"

// mapProductSet implements ProductSet with an index for O(1) lookups.
type mapProductSet struct {
	products []model.Product
	index    map[string]int
}

// NewMapProductSet creates a new map-backed product set.
func NewMapProductSet(capacity int) ProductSet {
	return &mapProductSet{
		products: make([]model.Product, 0, capacity),
		index:    make(map[string]int, capacity),
	}
}

// Get returns a copy of the product with the given ID.
func (s *mapProductSet) Get(id string) (*model.Product, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	p := s.products[i]
	return &p, true
}

// Products returns the products in insertion order.
func (s *mapProductSet) Products() []model.Product {
	out := make([]model.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Size returns the number of products in the set.
func (s *mapProductSet) Size() int {
	return len(s.products)
}

// Add inserts p, replacing any earlier product with the same ID in place.
func (s *mapProductSet) Add(p model.Product) {
	if i, ok := s.index[p.ID]; ok {
		s.products[i] = p
		return
	}
	s.index[p.ID] = len(s.products)
	s.products = append(s.products, p)
}
