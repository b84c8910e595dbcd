package service

import (
	"context"
	"sync"
	"testing"

	"pack-store/internal/catalog"
	"pack-store/internal/model"
	"pack-store/internal/payment"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockSnapshotRepository is a mock implementation of SnapshotRepository.
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Create(ctx context.Context, snapshot *model.CheckoutSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockSnapshotRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.CheckoutSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutSnapshot), args.Error(1)
}

// MockQuoteRepository is a mock implementation of QuoteRepository.
type MockQuoteRepository struct {
	mock.Mock
}

func (m *MockQuoteRepository) Create(ctx context.Context, quote *model.QuoteRequest) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

// MockProcessor is a mock implementation of payment.Processor.
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockProcessor) RetrieveSession(ctx context.Context, id string) (*payment.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

// memoryOrderRepository enforces one order per session like the orders table does.
type memoryOrderRepository struct {
	mu        sync.Mutex
	bySession map[string]*model.Order
	creates   int
}

func newMemoryOrderRepository() *memoryOrderRepository {
	return &memoryOrderRepository{bySession: make(map[string]*model.Order)}
}

func (r *memoryOrderRepository) Create(ctx context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if _, ok := r.bySession[order.StripeSessionID]; ok {
		return model.ErrOrderAlreadyExists
	}
	r.bySession[order.StripeSessionID] = order
	return nil
}

func (r *memoryOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.bySession {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (r *memoryOrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bySession[sessionID], nil
}

func (r *memoryOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) (*model.Order, error) {
	return nil, nil
}

func (r *memoryOrderRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySession)
}

func intPtr(i int) *int {
	return &i
}

// testCatalog returns a small catalogue with tiered and variant products.
func testCatalog() catalog.Catalog {
	return catalog.NewStatic([]model.Product{
		{
			ID:        "box-dw",
			Name:      "Double Wall Box",
			BasePrice: decimal.RequireFromString("10.00"),
			Image:     "https://cdn.example.com/box-dw.jpg",
			PricingTiers: []model.PricingTier{
				{MinQuantity: 1, MaxQuantity: intPtr(99), Discount: decimal.Zero},
				{MinQuantity: 100, MaxQuantity: intPtr(499), Discount: decimal.RequireFromString("5")},
				{MinQuantity: 500, Discount: decimal.RequireFromString("10")},
			},
		},
		{
			ID:        "tape",
			Name:      "Packing Tape",
			BasePrice: decimal.RequireFromString("1.20"),
			Variants: []model.Variant{
				{ID: "printed", Name: "Printed", PriceAdjustment: decimal.RequireFromString("0.35")},
			},
		},
		{
			ID:        "label",
			Name:      "Shipping Label",
			BasePrice: decimal.RequireFromString("0.123"),
		},
	})
}

// counterValue reads a counter from reg, matching the given labels.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
