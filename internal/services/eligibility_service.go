package services

import (
	"context"

	domain "github.com/dido-commerce/api/internal/domain"
)

// GatewayRules holds the gateway settings the eligibility and availability
// checks operate on. Values are mapped from configuration at wiring time.
type GatewayRules struct {
	Enabled           bool
	Ready             bool
	EnableForVirtual  bool
	EnableForMethods  []domain.RateID
	ExclusiveCheckout bool
}

// EligibilityServiceDeps bundles collaborators for the eligibility service.
type EligibilityServiceDeps struct {
	Rules  GatewayRules
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type eligibilityService struct {
	rules  GatewayRules
	logger func(context.Context, string, map[string]any)
}

// NewEligibilityService wires dependencies into a concrete EligibilityService.
func NewEligibilityService(deps EligibilityServiceDeps) (EligibilityService, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &eligibilityService{
		rules:  deps.Rules,
		logger: logger,
	}, nil
}

func (s *eligibilityService) EligibleForCart(ctx context.Context, cart CartContext) bool {
	return s.eligible(ctx, cart.NeedsShipping, cart.ChosenRates)
}

func (s *eligibilityService) EligibleForOrder(ctx context.Context, order domain.OrderSnapshot) bool {
	return s.eligible(ctx, order.NeedsShipping(), order.ShippingRates)
}

func (s *eligibilityService) eligible(ctx context.Context, needsShipping bool, rates []domain.RateID) bool {
	if !s.rules.Enabled || !s.rules.Ready {
		return false
	}

	if !needsShipping {
		if !s.rules.EnableForVirtual {
			s.logger(ctx, "gateway.eligibility.virtual_blocked", nil)
			return false
		}
		return true
	}

	if len(s.rules.EnableForMethods) == 0 {
		return true
	}
	if RatesAllowed(s.rules.EnableForMethods, rates) {
		return true
	}
	s.logger(ctx, "gateway.eligibility.method_blocked", map[string]any{
		"chosen": rates,
	})
	return false
}
