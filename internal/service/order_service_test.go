package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pack-store/internal/metrics"
	"pack-store/internal/model"
	"pack-store/internal/payment"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSessionID = "sess_123"

// paidSession is the processor's view of a paid 750-box checkout.
func paidSession() *payment.Session {
	return &payment.Session{
		ID:              testSessionID,
		PaymentStatus:   payment.PaymentStatusPaid,
		PaymentIntentID: "pi_123",
		CustomerEmail:   "ada@example.com",
		AmountTotal:     810000,
		Currency:        "gbp",
		Metadata: map[string]string{
			metaSubtotal:        "6750",
			metaDiscount:        "750",
			metaShipping:        "0",
			metaVAT:             "1350",
			metaTotal:           "8100",
			metaUserID:          "user_1",
			metaEmail:           "ada@example.com",
			metaShippingMethod:  "standard",
			metaShippingAddress: `{"name":"Ada Lovelace","line1":"12 Wharf Road","city":"London","postcode":"N1 7GR","country":"GB"}`,
			metaBillingAddress:  `{"name":"Ada Lovelace","line1":"1 Bank Street","city":"London","postcode":"E14 5JP","country":"GB"}`,
		},
		LineItems: []payment.SessionLineItem{
			{
				Name:        "Double Wall Box × 750",
				Image:       "https://cdn.example.com/box-dw.jpg",
				UnitAmount:  675000,
				Quantity:    1,
				AmountTotal: 675000,
				Metadata: map[string]string{
					metaType:       lineTypeProduct,
					metaProductID:  "box-dw",
					metaName:       "Double Wall Box",
					metaUnitPrice:  "9",
					metaQuantity:   "750",
					metaExactTotal: "6750",
					metaMinorTotal: "675000",
				},
			},
			{
				Name:        "VAT (20%)",
				UnitAmount:  135000,
				Quantity:    1,
				AmountTotal: 135000,
				Metadata: map[string]string{
					metaType:       lineTypeVAT,
					metaExactTotal: "1350",
				},
			},
		},
	}
}

type orderFixture struct {
	service   OrderService
	orders    *MockOrderRepository
	snapshots *MockSnapshotRepository
	processor *MockProcessor
	registry  *prometheus.Registry
}

func newOrderFixture() *orderFixture {
	reg := prometheus.NewRegistry()
	orders := new(MockOrderRepository)
	snapshots := new(MockSnapshotRepository)
	processor := new(MockProcessor)
	return &orderFixture{
		service:   NewOrderService(orders, snapshots, processor, metrics.New(reg), zerolog.Nop()),
		orders:    orders,
		snapshots: snapshots,
		processor: processor,
		registry:  reg,
	}
}

func TestOrderService_ConfirmSession_CreatesFrozenOrder(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(nil, nil).Once()
	f.processor.On("RetrieveSession", mock.Anything, testSessionID).Return(paidSession(), nil)
	f.orders.On("Create", mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)

	order, err := f.service.ConfirmSession(ctx, testSessionID)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, testSessionID, order.StripeSessionID)
	require.NotNil(t, order.StripePaymentIntentID)
	assert.Equal(t, "pi_123", *order.StripePaymentIntentID)
	require.NotNil(t, order.UserID)
	assert.Equal(t, "user_1", *order.UserID)
	assert.Equal(t, "ada@example.com", order.Email)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, payment.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, model.Currency, order.Currency)
	assert.Equal(t, "standard", order.ShippingMethodID)

	assert.True(t, order.Subtotal.Equal(dec("6750")))
	assert.True(t, order.Discount.Equal(dec("750")))
	assert.True(t, order.ShippingCost.IsZero())
	assert.True(t, order.VATAmount.Equal(dec("1350")))
	assert.True(t, order.Total.Equal(dec("8100")))

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "box-dw", item.ProductID)
	assert.Equal(t, "Double Wall Box", item.Name)
	assert.Equal(t, "https://cdn.example.com/box-dw.jpg", item.Image)
	assert.Equal(t, 750, item.Quantity)
	assert.True(t, item.PricePerUnit.Equal(dec("9")))
	assert.True(t, item.TotalPrice.Equal(dec("6750")))
	assert.Equal(t, int64(675000), item.ChargedMinor)

	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "N1 7GR", order.ShippingAddress.Postcode)
	require.NotNil(t, order.BillingAddress)
	assert.Equal(t, "E14 5JP", order.BillingAddress.Postcode)

	f.snapshots.AssertNotCalled(t, "GetBySessionID", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, counterValue(t, f.registry, "packstore_order_reconciliations_total", map[string]string{"result": metrics.ReconcileCreated}))
}

func TestOrderService_ConfirmSession_KeepsEveryLineOfALargeCart(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	session := paidSession()
	session.AmountTotal = 144000
	session.Metadata[metaSubtotal] = "1200"
	session.Metadata[metaDiscount] = "0"
	session.Metadata[metaVAT] = "240"
	session.Metadata[metaTotal] = "1440"
	session.LineItems = nil
	for i := 1; i <= 12; i++ {
		session.LineItems = append(session.LineItems, payment.SessionLineItem{
			Name:        fmt.Sprintf("Mailer %d × 100", i),
			UnitAmount:  10000,
			Quantity:    1,
			AmountTotal: 10000,
			Metadata: map[string]string{
				metaType:       lineTypeProduct,
				metaProductID:  fmt.Sprintf("mailer-%d", i),
				metaName:       fmt.Sprintf("Mailer %d", i),
				metaUnitPrice:  "1",
				metaQuantity:   "100",
				metaExactTotal: "100",
				metaMinorTotal: "10000",
			},
		})
	}
	session.LineItems = append(session.LineItems, payment.SessionLineItem{
		Name:        "VAT (20%)",
		UnitAmount:  24000,
		Quantity:    1,
		AmountTotal: 24000,
		Metadata:    map[string]string{metaType: lineTypeVAT, metaExactTotal: "240"},
	})

	f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(nil, nil).Once()
	f.processor.On("RetrieveSession", mock.Anything, testSessionID).Return(session, nil)
	f.orders.On("Create", mock.Anything, mock.AnythingOfType("*model.Order")).Return(nil)

	order, err := f.service.ConfirmSession(ctx, testSessionID)

	require.NoError(t, err)
	require.Len(t, order.Items, 12)
	assert.Equal(t, "mailer-1", order.Items[0].ProductID)
	assert.Equal(t, "mailer-12", order.Items[11].ProductID)

	itemsTotal := dec("0")
	for _, item := range order.Items {
		itemsTotal = itemsTotal.Add(item.TotalPrice)
	}
	assert.True(t, itemsTotal.Equal(order.Subtotal), "items sum %s, subtotal %s", itemsTotal, order.Subtotal)
	assert.True(t, order.VATAmount.Equal(dec("240")))
	assert.True(t, order.Total.Equal(dec("1440")))
	f.orders.AssertExpectations(t)
}

func TestOrderService_ConfirmSession_ExistingOrderSkipsProcessor(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	existing := &model.Order{ID: uuid.New(), StripeSessionID: testSessionID, Status: model.OrderStatusShipped}
	f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(existing, nil)

	order, err := f.service.ConfirmSession(ctx, testSessionID)

	require.NoError(t, err)
	assert.Same(t, existing, order)
	f.processor.AssertNotCalled(t, "RetrieveSession", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderService_ConfirmSession_Failures(t *testing.T) {
	ctx := context.Background()

	unpaid := paidSession()
	unpaid.PaymentStatus = "unpaid"

	tests := []struct {
		name        string
		sessionID   string
		session     *payment.Session
		retrieveErr error
		expectedErr error
		result      string
	}{
		{
			name:        "Empty session ID",
			sessionID:   "",
			expectedErr: model.ErrOrderNotFound,
		},
		{
			name:        "Unknown session",
			sessionID:   "sess_missing",
			retrieveErr: payment.ErrSessionNotFound,
			expectedErr: model.ErrOrderNotFound,
			result:      metrics.ReconcileNotFound,
		},
		{
			name:        "Unpaid session",
			sessionID:   testSessionID,
			session:     unpaid,
			expectedErr: model.ErrPaymentIncomplete,
			result:      metrics.ReconcileUnpaid,
		},
		{
			name:        "Processor timeout",
			sessionID:   testSessionID,
			retrieveErr: context.DeadlineExceeded,
			expectedErr: model.ErrProcessorTimeout,
			result:      metrics.ReconcileFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()

			if tt.sessionID != "" {
				f.orders.On("GetBySessionID", mock.Anything, tt.sessionID).Return(nil, nil)
				if tt.session != nil {
					f.processor.On("RetrieveSession", mock.Anything, tt.sessionID).Return(tt.session, nil)
				} else {
					f.processor.On("RetrieveSession", mock.Anything, tt.sessionID).Return(nil, tt.retrieveErr)
				}
			}

			order, err := f.service.ConfirmSession(ctx, tt.sessionID)

			assert.Nil(t, order)
			assert.ErrorIs(t, err, tt.expectedErr)
			f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			if tt.result != "" {
				assert.Equal(t, 1.0, counterValue(t, f.registry, "packstore_order_reconciliations_total", map[string]string{"result": tt.result}))
			}
		})
	}
}

func TestOrderService_ConfirmSession_UniqueConflictReturnsWinner(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	winner := &model.Order{ID: uuid.New(), StripeSessionID: testSessionID, Status: model.OrderStatusPending}
	f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(nil, nil).Once()
	f.processor.On("RetrieveSession", mock.Anything, testSessionID).Return(paidSession(), nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(model.ErrOrderAlreadyExists)
	f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(winner, nil).Once()

	order, err := f.service.ConfirmSession(ctx, testSessionID)

	require.NoError(t, err)
	assert.Equal(t, winner.ID, order.ID)
	assert.Equal(t, 0.0, counterValue(t, f.registry, "packstore_reconciliation_inconsistencies_total", nil))
	f.orders.AssertExpectations(t)
}

func TestOrderService_ConfirmSession_PersistenceFailureIsInconsistency(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(nil, nil)
	f.processor.On("RetrieveSession", mock.Anything, testSessionID).Return(paidSession(), nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	order, err := f.service.ConfirmSession(ctx, testSessionID)

	assert.Nil(t, order)
	assert.Equal(t, model.ErrOrderPersistence, err)
	assert.Equal(t, 1.0, counterValue(t, f.registry, "packstore_reconciliation_inconsistencies_total", nil))
}

func TestOrderService_ConfirmSession_AddressFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("Snapshot", func(t *testing.T) {
		f := newOrderFixture()

		session := paidSession()
		delete(session.Metadata, metaShippingAddress)
		delete(session.Metadata, metaBillingAddress)

		snapshot := &model.CheckoutSnapshot{
			SessionID:       testSessionID,
			ShippingAddress: validAddress(),
		}

		f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(nil, nil)
		f.processor.On("RetrieveSession", mock.Anything, testSessionID).Return(session, nil)
		f.snapshots.On("GetBySessionID", mock.Anything, testSessionID).Return(snapshot, nil)
		f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)

		order, err := f.service.ConfirmSession(ctx, testSessionID)

		require.NoError(t, err)
		require.NotNil(t, order.ShippingAddress)
		assert.Equal(t, "N1 7GR", order.ShippingAddress.Postcode)
		assert.Nil(t, order.BillingAddress)
	})

	t.Run("Processor collected address", func(t *testing.T) {
		f := newOrderFixture()

		session := paidSession()
		delete(session.Metadata, metaShippingAddress)
		delete(session.Metadata, metaBillingAddress)
		session.CustomerAddress = &payment.SessionAddress{
			Name:       "Grace Hopper",
			Line1:      "3 Quay Street",
			City:       "Bristol",
			State:      "Avon",
			PostalCode: "BS1 4DB",
			Country:    "GB",
		}

		f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(nil, nil)
		f.processor.On("RetrieveSession", mock.Anything, testSessionID).Return(session, nil)
		f.snapshots.On("GetBySessionID", mock.Anything, testSessionID).Return(nil, errors.New("timeout"))
		f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)

		order, err := f.service.ConfirmSession(ctx, testSessionID)

		require.NoError(t, err)
		require.NotNil(t, order.ShippingAddress)
		assert.Equal(t, "BS1 4DB", order.ShippingAddress.Postcode)
		assert.Equal(t, "Avon", order.ShippingAddress.County)
		assert.Equal(t, order.ShippingAddress, order.BillingAddress)
	})
}

func TestOrderService_ConfirmSession_ConcurrentConfirmationsCreateOneOrder(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryOrderRepository()

	processor := new(MockProcessor)
	processor.On("RetrieveSession", mock.Anything, testSessionID).
		Run(func(mock.Arguments) { time.Sleep(20 * time.Millisecond) }).
		Return(paidSession(), nil)

	// Two services model two server processes sharing one database.
	services := []OrderService{
		NewOrderService(repo, nil, processor, nil, zerolog.Nop()),
		NewOrderService(repo, nil, processor, nil, zerolog.Nop()),
	}

	const callers = 16
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := services[i%len(services)].ConfirmSession(ctx, testSessionID)
			errs[i] = err
			if order != nil {
				ids[i] = order.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, repo.count())
}

func TestOrderService_ConfirmSession_Repeated(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryOrderRepository()

	processor := new(MockProcessor)
	processor.On("RetrieveSession", mock.Anything, testSessionID).Return(paidSession(), nil)

	svc := NewOrderService(repo, nil, processor, nil, zerolog.Nop())

	first, err := svc.ConfirmSession(ctx, testSessionID)
	require.NoError(t, err)
	second, err := svc.ConfirmSession(ctx, testSessionID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.count())
	processor.AssertNumberOfCalls(t, "RetrieveSession", 1)
}

func TestOrderService_GetBySessionID(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	existing := &model.Order{ID: uuid.New(), StripeSessionID: testSessionID}
	f.orders.On("GetBySessionID", mock.Anything, testSessionID).Return(existing, nil)
	f.orders.On("GetBySessionID", mock.Anything, "sess_none").Return(nil, nil)

	order, err := f.service.GetBySessionID(ctx, testSessionID)
	require.NoError(t, err)
	assert.Equal(t, existing, order)

	order, err = f.service.GetBySessionID(ctx, "sess_none")
	assert.Nil(t, order)
	assert.Equal(t, model.ErrOrderNotFound, err)

	f.processor.AssertNotCalled(t, "RetrieveSession", mock.Anything, mock.Anything)
}

func TestOrderService_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	tests := []struct {
		name        string
		mockReturn  *model.Order
		mockError   error
		expectedErr error
	}{
		{
			name:       "Success",
			mockReturn: &model.Order{ID: id},
		},
		{
			name:        "Not found",
			expectedErr: model.ErrOrderNotFound,
		},
		{
			name:      "Repository error",
			mockError: errors.New("database error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			f.orders.On("GetByID", mock.Anything, id).Return(tt.mockReturn, tt.mockError)

			order, err := f.service.GetByID(ctx, id)

			switch {
			case tt.mockError != nil:
				require.Error(t, err)
				assert.Nil(t, order)
			case tt.expectedErr != nil:
				assert.Equal(t, tt.expectedErr, err)
				assert.Nil(t, order)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.mockReturn, order)
			}
		})
	}
}

func TestOrderService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	tests := []struct {
		name        string
		current     model.OrderStatus
		next        model.OrderStatus
		raced       bool
		expectedErr error
	}{
		{name: "Pending to processing", current: model.OrderStatusPending, next: model.OrderStatusProcessing},
		{name: "Processing to shipped", current: model.OrderStatusProcessing, next: model.OrderStatusShipped},
		{name: "Shipped to delivered", current: model.OrderStatusShipped, next: model.OrderStatusDelivered},
		{name: "Pending to cancelled", current: model.OrderStatusPending, next: model.OrderStatusCancelled},
		{name: "Processing to cancelled", current: model.OrderStatusProcessing, next: model.OrderStatusCancelled},
		{name: "Shipped to cancelled", current: model.OrderStatusShipped, next: model.OrderStatusCancelled, expectedErr: model.ErrInvalidTransition},
		{name: "Delivered to pending", current: model.OrderStatusDelivered, next: model.OrderStatusPending, expectedErr: model.ErrInvalidTransition},
		{name: "Pending to delivered", current: model.OrderStatusPending, next: model.OrderStatusDelivered, expectedErr: model.ErrInvalidTransition},
		{name: "Unknown status", current: model.OrderStatusPending, next: "lost", expectedErr: model.ErrInvalidStatus},
		{name: "Concurrent change", current: model.OrderStatusPending, next: model.OrderStatusProcessing, raced: true, expectedErr: model.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			f.orders.On("GetByID", mock.Anything, id).Return(&model.Order{ID: id, Status: tt.current}, nil)

			if tt.raced {
				f.orders.On("UpdateStatus", mock.Anything, id, tt.current, tt.next).Return(nil, nil)
			} else if tt.expectedErr == nil {
				f.orders.On("UpdateStatus", mock.Anything, id, tt.current, tt.next).Return(&model.Order{ID: id, Status: tt.next}, nil)
			}

			order, err := f.service.UpdateStatus(ctx, id, tt.next)

			if tt.expectedErr != nil {
				assert.Equal(t, tt.expectedErr, err)
				assert.Nil(t, order)
				if !tt.raced {
					f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, order.Status)
		})
	}
}
