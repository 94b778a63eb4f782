package services

import (
	"strings"

	domain "github.com/dido-commerce/api/internal/domain"
)

// MatchRates returns the chosen rates matched by the allowed list. An allowed
// entry matches a rate when it equals the full method:instance identifier or
// when it equals the rate's method family.
func MatchRates(allowed []domain.RateID, chosen []domain.RateID) []domain.RateID {
	if len(allowed) == 0 || len(chosen) == 0 {
		return nil
	}

	exact := make(map[domain.RateID]struct{}, len(allowed))
	families := make(map[string]struct{}, len(allowed))
	for _, entry := range allowed {
		trimmed := domain.RateID(strings.TrimSpace(string(entry)))
		if trimmed == "" {
			continue
		}
		exact[trimmed] = struct{}{}
		if !strings.Contains(string(trimmed), ":") {
			families[string(trimmed)] = struct{}{}
		}
	}

	var matched []domain.RateID
	for _, rate := range chosen {
		trimmed := domain.RateID(strings.TrimSpace(string(rate)))
		if trimmed == "" {
			continue
		}
		if _, ok := exact[trimmed]; ok {
			matched = append(matched, trimmed)
			continue
		}
		if _, ok := families[trimmed.Family()]; ok {
			matched = append(matched, trimmed)
		}
	}
	return matched
}

// RatesAllowed reports whether any chosen rate is matched by the allowed list.
func RatesAllowed(allowed []domain.RateID, chosen []domain.RateID) bool {
	return len(MatchRates(allowed, chosen)) > 0
}
