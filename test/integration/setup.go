package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"pack-store/internal/catalog"
	"pack-store/internal/database"
	"pack-store/internal/handler"
	"pack-store/internal/metrics"
	"pack-store/internal/model"
	"pack-store/internal/payment"
	"pack-store/internal/ratelimit"
	"pack-store/internal/repository"
	"pack-store/internal/router"
	"pack-store/internal/service"
	"pack-store/internal/shipping"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAPIKey        = "test-api-key"
	testWebhookSecret = "whsec_integration"
)

// TestDB represents a migrated test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, applies migrations and opens a pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := database.Migrate(connStr, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.Open(ctx, connStr, database.DefaultPoolOptions())
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	tables := []string{"orders", "checkout_snapshots", "quote_requests"}
	for _, table := range tables {
		if _, err := pool.Exec(context.Background(), fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// fakeProcessor is an in-memory hosted checkout. Sessions it creates are
// reported as paid unless marked otherwise.
type fakeProcessor struct {
	mu       sync.Mutex
	next     int
	requests map[string]payment.SessionRequest
	unpaid   map[string]bool
	retrieve int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		requests: make(map[string]payment.SessionRequest),
		unpaid:   make(map[string]bool),
	}
}

func (p *fakeProcessor) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	id := fmt.Sprintf("cs_test_%d", p.next)
	p.requests[id] = req
	return &payment.Session{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (p *fakeProcessor) RetrieveSession(_ context.Context, id string) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.retrieve++
	req, ok := p.requests[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}

	s := &payment.Session{
		ID:              id,
		PaymentStatus:   payment.PaymentStatusPaid,
		PaymentIntentID: "pi_" + id,
		CustomerEmail:   req.CustomerEmail,
		Currency:        "gbp",
		Metadata:        req.Metadata,
	}
	if p.unpaid[id] {
		s.PaymentStatus = "unpaid"
	}
	for _, li := range req.LineItems {
		amount := li.UnitAmount * li.Quantity
		s.AmountTotal += amount
		s.LineItems = append(s.LineItems, payment.SessionLineItem{
			Name:        li.Name,
			UnitAmount:  li.UnitAmount,
			Quantity:    li.Quantity,
			AmountTotal: amount,
			Metadata:    li.Metadata,
		})
	}
	return s, nil
}

func (p *fakeProcessor) request(id string) payment.SessionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[id]
}

func (p *fakeProcessor) markUnpaid(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unpaid[id] = true
}

func intPtr(v int) *int { return &v }

// testProducts mirrors a small slice of the storefront catalogue.
func testProducts() []model.Product {
	return []model.Product{
		{
			ID:        "box-dw",
			Name:      "Double Wall Box",
			BasePrice: decimal.RequireFromString("10.00"),
			PricingTiers: []model.PricingTier{
				{MinQuantity: 1, MaxQuantity: intPtr(99), Discount: decimal.Zero},
				{MinQuantity: 100, MaxQuantity: intPtr(499), Discount: decimal.NewFromInt(5)},
				{MinQuantity: 500, Discount: decimal.NewFromInt(10)},
			},
		},
		{ID: "label", Name: "Shipping Label", BasePrice: decimal.RequireFromString("0.123")},
	}
}

// testServer wires the full HTTP stack against testDB and a fake processor.
type testServer struct {
	handler   http.Handler
	processor *fakeProcessor
	orders    repository.OrderRepository
	snapshots repository.SnapshotRepository
}

func setupTestServer(t *testing.T, testDB *TestDB) *testServer {
	t.Helper()

	logger := zerolog.Nop()
	m := metrics.New(prometheus.NewRegistry())
	cat := catalog.NewStatic(testProducts())
	ship := shipping.DefaultCatalog()
	processor := newFakeProcessor()

	orderRepo := repository.NewOrderRepository(testDB.Pool, logger)
	snapshotRepo := repository.NewSnapshotRepository(testDB.Pool, logger)
	quoteRepo := repository.NewQuoteRepository(testDB.Pool, logger)

	orderService := service.NewOrderService(orderRepo, snapshotRepo, processor, m, logger)

	h := router.New(router.Handlers{
		Products: handler.NewProductHandler(service.NewProductService(cat, logger), logger),
		Checkout: handler.NewCheckoutHandler(service.NewCheckoutService(cat, ship, processor, snapshotRepo, m, time.Second, logger), ship, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Webhooks: handler.NewWebhookHandler(payment.NewStripeWebhookVerifier(testWebhookSecret), orderService, logger),
		Quotes:   handler.NewQuoteHandler(service.NewQuoteService(quoteRepo, cat, logger), logger),
	}, router.Options{
		APIKey:       testAPIKey,
		QuoteLimiter: ratelimit.NewMemoryStore(),
		QuoteLimit:   100,
		QuoteWindow:  time.Minute,
		Metrics:      m,
	}, logger)

	return &testServer{
		handler:   h,
		processor: processor,
		orders:    orderRepo,
		snapshots: snapshotRepo,
	}
}
