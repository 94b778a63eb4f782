package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/dido-commerce/api/internal/domain"
)

var paymentTestClock = func() time.Time {
	return time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
}

func newTestPaymentService(t *testing.T, deps PaymentServiceDeps) PaymentService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = paymentTestClock
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "evt_test" }
	}
	svc, err := NewPaymentService(deps)
	if err != nil {
		t.Fatalf("NewPaymentService: %v", err)
	}
	return svc
}

func TestSubmitPaymentPositiveTotal(t *testing.T) {
	var gotStatus domain.OrderStatus
	var gotAt time.Time
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{
				ID:            orderID,
				Number:        "1001",
				PaymentMethod: domain.PaymentOptionWhatsApp,
				TotalMinor:    1998,
				ViewURL:       "https://shop.example.com/view-order/1001",
				Items: []domain.OrderLineItem{
					{Product: &domain.ProductInfo{Name: "Mug", RequiresShipping: true}, Quantity: 2},
				},
			}, nil
		},
		updateStatus: func(_ context.Context, _ string, status domain.OrderStatus, at time.Time) error {
			gotStatus = status
			gotAt = at
			return nil
		},
	}

	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders})

	result, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if result.Status != domain.OrderStatusPending || result.Completed {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.RedirectURL != "https://shop.example.com/view-order/1001" {
		t.Fatalf("expected view url redirect, got %q", result.RedirectURL)
	}
	if gotStatus != domain.OrderStatusPending {
		t.Fatalf("expected pending status write, got %s", gotStatus)
	}
	if !gotAt.Equal(paymentTestClock()) {
		t.Fatalf("expected clock timestamp, got %s", gotAt)
	}
}

func TestSubmitPaymentDownloadableGoesOnHold(t *testing.T) {
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{
				ID:         orderID,
				TotalMinor: 999,
				Items: []domain.OrderLineItem{
					{Product: &domain.ProductInfo{Name: "eBook", Downloadable: true}, Quantity: 1},
				},
			}, nil
		},
		updateStatus: func(_ context.Context, _ string, status domain.OrderStatus, _ time.Time) error {
			if status != domain.OrderStatusOnHold {
				t.Fatalf("expected on-hold, got %s", status)
			}
			return nil
		},
	}

	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders})

	result, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if result.Status != domain.OrderStatusOnHold || result.Completed {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubmitPaymentZeroTotalCompletes(t *testing.T) {
	marked := false
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{
				ID:            orderID,
				PaymentMethod: domain.PaymentOptionWhatsApp,
				TotalMinor:    0,
			}, nil
		},
		markPaymentComplete: func(_ context.Context, _ string, status domain.OrderStatus, _ time.Time) error {
			marked = true
			if status != domain.OrderStatusCompleted {
				t.Fatalf("expected completed status for this payment option, got %s", status)
			}
			return nil
		},
	}

	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders})

	result, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if !marked {
		t.Fatal("expected MarkPaymentComplete to be called")
	}
	if !result.Completed || result.Status != domain.OrderStatusCompleted {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubmitPaymentClearsCart(t *testing.T) {
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{ID: orderID, TotalMinor: 100}, nil
		},
		updateStatus: func(context.Context, string, domain.OrderStatus, time.Time) error { return nil },
	}

	var clearedCart string
	carts := &stubCartRepository{
		clear: func(_ context.Context, cartID string) error {
			clearedCart = cartID
			return nil
		},
	}

	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Carts: carts})

	if _, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{OrderID: "order-1", CartID: "cart-9"}); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if clearedCart != "cart-9" {
		t.Fatalf("expected cart-9 cleared, got %q", clearedCart)
	}
}

func TestSubmitPaymentCartClearFailureDoesNotFail(t *testing.T) {
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{ID: orderID, TotalMinor: 100}, nil
		},
		updateStatus: func(context.Context, string, domain.OrderStatus, time.Time) error { return nil },
	}
	carts := &stubCartRepository{
		clear: func(context.Context, string) error { return errors.New("boom") },
	}

	var logged string
	svc := newTestPaymentService(t, PaymentServiceDeps{
		Orders: orders,
		Carts:  carts,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = event
		},
	})

	if _, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{OrderID: "order-1", CartID: "cart-9"}); err != nil {
		t.Fatalf("SubmitPayment must not fail on cart clear error: %v", err)
	}
	if logged != "payment.cart.clear.failed" {
		t.Fatalf("expected cart clear failure to be logged, got %q", logged)
	}
}

func TestSubmitPaymentPublishesEvent(t *testing.T) {
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{
				ID:            orderID,
				Number:        "1001",
				PaymentMethod: domain.PaymentOptionWhatsApp,
				Currency:      "USD",
				TotalMinor:    1998,
			}, nil
		},
		updateStatus: func(context.Context, string, domain.OrderStatus, time.Time) error { return nil },
	}

	var published OrderEventMessage
	events := &stubEventPublisher{
		publish: func(_ context.Context, message OrderEventMessage) (string, error) {
			published = message
			return "msg-1", nil
		},
	}

	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Events: events})

	if _, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{OrderID: "order-1"}); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if published.Type != paymentEventSubmitted {
		t.Fatalf("unexpected event type %q", published.Type)
	}
	if published.EventID != "evt_test" || published.OrderID != "order-1" || published.OrderNumber != "1001" {
		t.Fatalf("unexpected event %+v", published)
	}
	if !published.OccurredAt.Equal(paymentTestClock()) {
		t.Fatalf("unexpected event timestamp %s", published.OccurredAt)
	}
}

func TestCompletePaymentForcesCompleted(t *testing.T) {
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{
				ID:            orderID,
				PaymentMethod: domain.PaymentOptionWhatsApp,
				Status:        domain.OrderStatusPending,
				TotalMinor:    1998,
			}, nil
		},
		markPaymentComplete: func(_ context.Context, _ string, status domain.OrderStatus, _ time.Time) error {
			if status != domain.OrderStatusCompleted {
				t.Fatalf("expected completed, got %s", status)
			}
			return nil
		},
	}

	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders})

	result, err := svc.CompletePayment(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if !result.Completed || result.Status != domain.OrderStatusCompleted {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCompletePaymentOtherMethodGoesProcessing(t *testing.T) {
	orders := &stubOrderRepository{
		findByID: func(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{ID: orderID, PaymentMethod: "bacs", TotalMinor: 100}, nil
		},
		markPaymentComplete: func(_ context.Context, _ string, status domain.OrderStatus, _ time.Time) error {
			if status != domain.OrderStatusProcessing {
				t.Fatalf("expected processing, got %s", status)
			}
			return nil
		},
	}

	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders})

	if _, err := svc.CompletePayment(context.Background(), "order-1"); err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
}

func TestPaymentServiceErrorTranslation(t *testing.T) {
	orders := &stubOrderRepository{
		findByID: func(context.Context, string) (domain.OrderSnapshot, error) {
			return domain.OrderSnapshot{}, &stubRepoError{notFound: true}
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders})

	if _, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{OrderID: "missing"}); !errors.Is(err, ErrPaymentOrderNotFound) {
		t.Fatalf("expected ErrPaymentOrderNotFound, got %v", err)
	}
	if _, err := svc.SubmitPayment(context.Background(), SubmitPaymentCommand{}); !errors.Is(err, ErrPaymentInvalidInput) {
		t.Fatalf("expected ErrPaymentInvalidInput, got %v", err)
	}
}
