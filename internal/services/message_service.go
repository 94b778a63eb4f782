package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dido-commerce/api/internal/repositories"
)

var (
	// ErrMessageOrderNotFound indicates the order behind the message could not be located.
	ErrMessageOrderNotFound = errors.New("message: order not found")
	// ErrMessageUnavailable indicates a transient backend failure.
	ErrMessageUnavailable = errors.New("message: backend unavailable")
	// ErrMessageGatewayNotConfigured indicates the gateway lacks a usable destination number.
	ErrMessageGatewayNotConfigured = errors.New("message: gateway number not configured")
)

// HandoffRules holds the settings governing the post-checkout WhatsApp handoff.
type HandoffRules struct {
	WhatsAppNumber string
	Endpoints      DeepLinkEndpoints
	ThankYouMode   string
	Instructions   string
	Ready          bool
}

// MessageServiceDeps bundles collaborators for the message service.
type MessageServiceDeps struct {
	Orders   repositories.OrderRepository
	Composer MessageComposer
	Rules    HandoffRules
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type messageService struct {
	orders   repositories.OrderRepository
	composer MessageComposer
	rules    HandoffRules
	logger   func(context.Context, string, map[string]any)
}

// NewMessageService wires dependencies into a concrete MessageService.
func NewMessageService(deps MessageServiceDeps) (MessageService, error) {
	if deps.Orders == nil {
		return nil, errors.New("message service: order repository is required")
	}
	if deps.Composer == nil {
		return nil, errors.New("message service: composer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &messageService{
		orders:   deps.Orders,
		composer: deps.Composer,
		rules:    deps.Rules,
		logger:   logger,
	}, nil
}

func (s *messageService) OrderMessage(ctx context.Context, orderID string) (OrderMessage, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return OrderMessage{}, fmt.Errorf("%w: order id is required", ErrMessageInvalidInput)
	}
	if !s.rules.Ready {
		return OrderMessage{}, ErrMessageGatewayNotConfigured
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return OrderMessage{}, s.translateRepoError(err)
	}

	composed, err := s.composer.Compose(ctx, order)
	if err != nil {
		return OrderMessage{}, err
	}

	s.logger(ctx, "gateway.message.composed", map[string]any{
		"order": order.ID,
		"bytes": len(composed.Text),
	})

	return OrderMessage{
		OrderID:      order.ID,
		Message:      composed,
		WebLink:      BuildDeepLink(s.rules.Endpoints.Web, s.rules.WhatsAppNumber, composed.Encoded),
		MobileLink:   BuildDeepLink(s.rules.Endpoints.Mobile, s.rules.WhatsAppNumber, composed.Encoded),
		ThankYouMode: s.rules.ThankYouMode,
		Instructions: s.rules.Instructions,
	}, nil
}

func (s *messageService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrMessageOrderNotFound
		case repoErr.IsUnavailable():
			return ErrMessageUnavailable
		}
	}
	return ErrMessageUnavailable
}
