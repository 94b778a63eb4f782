package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/dido-commerce/api/internal/domain"
)

type stubOrderRepository struct {
	findByID            func(ctx context.Context, orderID string) (domain.OrderSnapshot, error)
	updateStatus        func(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error
	markPaymentComplete func(ctx context.Context, orderID string, status domain.OrderStatus, paidAt time.Time) error
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	if s.findByID == nil {
		return domain.OrderSnapshot{}, errors.New("unexpected FindByID call")
	}
	return s.findByID(ctx, orderID)
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	if s.updateStatus == nil {
		return errors.New("unexpected UpdateStatus call")
	}
	return s.updateStatus(ctx, orderID, status, at)
}

func (s *stubOrderRepository) MarkPaymentComplete(ctx context.Context, orderID string, status domain.OrderStatus, paidAt time.Time) error {
	if s.markPaymentComplete == nil {
		return errors.New("unexpected MarkPaymentComplete call")
	}
	return s.markPaymentComplete(ctx, orderID, status, paidAt)
}

type stubCartRepository struct {
	clear func(ctx context.Context, cartID string) error
}

func (s *stubCartRepository) Clear(ctx context.Context, cartID string) error {
	if s.clear == nil {
		return errors.New("unexpected Clear call")
	}
	return s.clear(ctx, cartID)
}

type stubEventPublisher struct {
	publish func(ctx context.Context, message OrderEventMessage) (string, error)
}

func (s *stubEventPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	if s.publish == nil {
		return "", errors.New("unexpected PublishOrderEvent call")
	}
	return s.publish(ctx, message)
}

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }
