package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/dido-commerce/api/internal/domain"
	"github.com/dido-commerce/api/internal/repositories"
)

var (
	// ErrAvailabilityInvalidInput signals the caller provided invalid data.
	ErrAvailabilityInvalidInput = errors.New("availability: invalid input")
	// ErrAvailabilityOrderNotFound indicates the referenced order could not be located.
	ErrAvailabilityOrderNotFound = errors.New("availability: order not found")
	// ErrAvailabilityUnavailable indicates a transient backend failure.
	ErrAvailabilityUnavailable = errors.New("availability: backend unavailable")
)

// OptionPresentation holds the configured storefront copy for the WhatsApp
// entry. The gateway owns its title and description; client-supplied values
// for that entry are overridden.
type OptionPresentation struct {
	Title        string
	Description  string
	Instructions string
}

// AvailabilityServiceDeps bundles collaborators for the availability service.
type AvailabilityServiceDeps struct {
	Orders       repositories.OrderRepository
	Eligibility  EligibilityService
	Rules        GatewayRules
	Presentation OptionPresentation
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type availabilityService struct {
	orders       repositories.OrderRepository
	eligibility  EligibilityService
	rules        GatewayRules
	presentation OptionPresentation
	logger       func(context.Context, string, map[string]any)
}

// NewAvailabilityService wires dependencies into a concrete AvailabilityService.
func NewAvailabilityService(deps AvailabilityServiceDeps) (AvailabilityService, error) {
	if deps.Eligibility == nil {
		return nil, errors.New("availability service: eligibility service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &availabilityService{
		orders:       deps.Orders,
		eligibility:  deps.Eligibility,
		rules:        deps.Rules,
		presentation: deps.Presentation,
		logger:       logger,
	}, nil
}

func (s *availabilityService) ListOptions(ctx context.Context, cmd ListOptionsCommand) ([]CheckoutOption, error) {
	switch cmd.Page {
	case domain.PageCheckout:
		return s.decorate(s.checkoutOptions(ctx, cmd)), nil
	case domain.PagePayOrder:
		options, err := s.payOrderOptions(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return s.decorate(options), nil
	default:
		return nil, fmt.Errorf("%w: unknown page %q", ErrAvailabilityInvalidInput, cmd.Page)
	}
}

// decorate replaces the storefront copy on the WhatsApp entry with the
// configured presentation. Other entries pass through untouched.
func (s *availabilityService) decorate(options []CheckoutOption) []CheckoutOption {
	for i := range options {
		if options[i].ID != domain.PaymentOptionWhatsApp {
			continue
		}
		if s.presentation.Title != "" {
			options[i].Title = s.presentation.Title
		}
		if s.presentation.Description != "" {
			options[i].Description = s.presentation.Description
		}
		if s.presentation.Instructions != "" {
			options[i].Instructions = s.presentation.Instructions
		}
	}
	return options
}

func (s *availabilityService) checkoutOptions(ctx context.Context, cmd ListOptionsCommand) []CheckoutOption {
	if !s.eligibility.EligibleForCart(ctx, cmd.Cart) {
		return removeOption(cmd.Options, domain.PaymentOptionWhatsApp)
	}
	if s.rules.ExclusiveCheckout {
		return keepOption(cmd.Options, domain.PaymentOptionWhatsApp)
	}
	return cloneOptions(cmd.Options)
}

func (s *availabilityService) payOrderOptions(ctx context.Context, cmd ListOptionsCommand) ([]CheckoutOption, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required on the pay-order page", ErrAvailabilityInvalidInput)
	}
	if s.orders == nil {
		return nil, ErrAvailabilityUnavailable
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	if !s.eligibility.EligibleForOrder(ctx, order) {
		return removeOption(cmd.Options, domain.PaymentOptionWhatsApp), nil
	}
	// A pending order already went out over the messaging channel; offering the
	// option again would produce a duplicate conversation.
	if order.Status == domain.OrderStatusPending {
		s.logger(ctx, "gateway.availability.pending_hidden", map[string]any{
			"order": order.ID,
		})
		return removeOption(cmd.Options, domain.PaymentOptionWhatsApp), nil
	}
	return cloneOptions(cmd.Options), nil
}

func (s *availabilityService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrAvailabilityOrderNotFound
		case repoErr.IsUnavailable():
			return ErrAvailabilityUnavailable
		}
	}
	return ErrAvailabilityUnavailable
}

func removeOption(options []CheckoutOption, id string) []CheckoutOption {
	out := make([]CheckoutOption, 0, len(options))
	for _, option := range options {
		if option.ID == id {
			continue
		}
		out = append(out, option)
	}
	return out
}

func keepOption(options []CheckoutOption, id string) []CheckoutOption {
	out := make([]CheckoutOption, 0, 1)
	for _, option := range options {
		if option.ID == id {
			out = append(out, option)
		}
	}
	return out
}

func cloneOptions(options []CheckoutOption) []CheckoutOption {
	out := make([]CheckoutOption, len(options))
	copy(out, options)
	return out
}
