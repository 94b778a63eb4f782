package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/dido-commerce/api/internal/domain"
	"github.com/dido-commerce/api/internal/repositories"
)

const (
	paymentEventSubmitted = "order.payment_submitted"
	paymentEventCompleted = "order.payment_completed"

	paymentEventIDPrefix = "evt_"
)

var (
	// ErrPaymentInvalidInput signals the caller provided invalid data.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentOrderNotFound indicates the order could not be located.
	ErrPaymentOrderNotFound = errors.New("payment: order not found")
	// ErrPaymentConflict indicates a concurrent update clashed with this one.
	ErrPaymentConflict = errors.New("payment: conflict")
	// ErrPaymentUnavailable indicates a transient backend failure.
	ErrPaymentUnavailable = errors.New("payment: backend unavailable")
)

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders repositories.OrderRepository
	carts  repositories.CartRepository
	events OrderEventPublisher
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return paymentEventIDPrefix + ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		orders: deps.Orders,
		carts:  deps.Carts,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// SubmitPaymentStatus decides the order status applied when the customer
// submits checkout with this payment option. Payment is not taken at
// submission time, so a positive total parks the order until the conversation
// settles it.
func SubmitPaymentStatus(order domain.OrderSnapshot) domain.OrderStatus {
	if order.HasDownloadableItem() {
		return domain.OrderStatusOnHold
	}
	return domain.OrderStatusPending
}

// PaymentCompleteStatus decides the final status when payment completes.
// Orders paid over the messaging channel jump straight to completed.
func PaymentCompleteStatus(order domain.OrderSnapshot) domain.OrderStatus {
	if order.PaymentMethod == domain.PaymentOptionWhatsApp {
		return domain.OrderStatusCompleted
	}
	return domain.OrderStatusProcessing
}

func (s *paymentService) SubmitPayment(ctx context.Context, cmd SubmitPaymentCommand) (PaymentResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentResult{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentResult{}, s.translateRepoError(err)
	}

	now := s.clock()
	result := PaymentResult{OrderID: order.ID, RedirectURL: order.ViewURL}

	if order.TotalMinor > 0 {
		status := SubmitPaymentStatus(order)
		if err := s.orders.UpdateStatus(ctx, order.ID, status, now); err != nil {
			return PaymentResult{}, s.translateRepoError(err)
		}
		result.Status = status
	} else {
		status := PaymentCompleteStatus(order)
		if err := s.orders.MarkPaymentComplete(ctx, order.ID, status, now); err != nil {
			return PaymentResult{}, s.translateRepoError(err)
		}
		result.Status = status
		result.Completed = true
	}

	s.clearCart(ctx, cmd.CartID, order.ID)
	s.publishEvent(ctx, paymentEventSubmitted, order, result.Status, now)

	return result, nil
}

func (s *paymentService) CompletePayment(ctx context.Context, orderID string) (PaymentResult, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return PaymentResult{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return PaymentResult{}, s.translateRepoError(err)
	}

	now := s.clock()
	status := PaymentCompleteStatus(order)
	if err := s.orders.MarkPaymentComplete(ctx, order.ID, status, now); err != nil {
		return PaymentResult{}, s.translateRepoError(err)
	}

	s.publishEvent(ctx, paymentEventCompleted, order, status, now)

	return PaymentResult{
		OrderID:   order.ID,
		Status:    status,
		Completed: true,
	}, nil
}

// clearCart empties the checkout cart after submission. A failure here never
// fails the payment; the order has already been accepted.
func (s *paymentService) clearCart(ctx context.Context, cartID, orderID string) {
	id := strings.TrimSpace(cartID)
	if id == "" || s.carts == nil {
		return
	}
	if err := s.carts.Clear(ctx, id); err != nil {
		s.logger(ctx, "payment.cart.clear.failed", map[string]any{
			"cart":  id,
			"order": orderID,
			"error": err.Error(),
		})
	}
}

func (s *paymentService) publishEvent(ctx context.Context, eventType string, order domain.OrderSnapshot, status domain.OrderStatus, at time.Time) {
	if s.events == nil {
		return
	}
	message := OrderEventMessage{
		EventID:       s.newID(),
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		Status:        status,
		PaymentMethod: order.PaymentMethod,
		TotalMinor:    order.TotalMinor,
		Currency:      order.Currency,
		OccurredAt:    at,
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "payment.event.publish.failed", map[string]any{
			"type":  eventType,
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func (s *paymentService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrPaymentOrderNotFound
		case repoErr.IsConflict():
			return ErrPaymentConflict
		case repoErr.IsUnavailable():
			return ErrPaymentUnavailable
		}
		return ErrPaymentUnavailable
	}
	return ErrPaymentUnavailable
}
