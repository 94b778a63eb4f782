package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/dido-commerce/api/internal/domain"
	"github.com/dido-commerce/api/internal/platform/httpx"
	"github.com/dido-commerce/api/internal/services"
)

const maxCheckoutRequestBody = 32 * 1024

// CheckoutHandlers exposes the payment option listing used by the storefront
// checkout and pay-order pages.
type CheckoutHandlers struct {
	availability services.AvailabilityService
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(availability services.AvailabilityService) *CheckoutHandlers {
	return &CheckoutHandlers{
		availability: availability,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/options", h.listOptions)
}

type checkoutOptionPayload struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type checkoutCartPayload struct {
	NeedsShipping bool     `json:"needsShipping"`
	ChosenRates   []string `json:"chosenRates"`
}

type listOptionsRequest struct {
	Page    string                  `json:"page"`
	OrderID string                  `json:"orderId"`
	Cart    checkoutCartPayload     `json:"cart"`
	Options []checkoutOptionPayload `json:"options"`
}

type listOptionsResponse struct {
	Options []checkoutOptionPayload `json:"options"`
}

func (h *CheckoutHandlers) listOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.availability == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req listOptionsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	page := domain.PageKind(strings.TrimSpace(req.Page))
	switch page {
	case domain.PageCheckout, domain.PagePayOrder:
	case "":
		page = domain.PageCheckout
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page must be checkout or pay_order", http.StatusBadRequest))
		return
	}

	rates := make([]domain.RateID, 0, len(req.Cart.ChosenRates))
	for _, rate := range req.Cart.ChosenRates {
		if trimmed := strings.TrimSpace(rate); trimmed != "" {
			rates = append(rates, domain.RateID(trimmed))
		}
	}

	options := make([]services.CheckoutOption, 0, len(req.Options))
	for _, option := range req.Options {
		options = append(options, services.CheckoutOption{
			ID:           strings.TrimSpace(option.ID),
			Title:        option.Title,
			Description:  option.Description,
			Instructions: option.Instructions,
		})
	}

	cmd := services.ListOptionsCommand{
		Page:    page,
		OrderID: strings.TrimSpace(req.OrderID),
		Cart: services.CartContext{
			NeedsShipping: req.Cart.NeedsShipping,
			ChosenRates:   rates,
		},
		Options: options,
	}

	filtered, err := h.availability.ListOptions(ctx, cmd)
	if err != nil {
		h.writeAvailabilityError(ctx, w, err)
		return
	}

	resp := listOptionsResponse{Options: make([]checkoutOptionPayload, 0, len(filtered))}
	for _, option := range filtered {
		resp.Options = append(resp.Options, checkoutOptionPayload{
			ID:           option.ID,
			Title:        option.Title,
			Description:  option.Description,
			Instructions: option.Instructions,
		})
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *CheckoutHandlers) writeAvailabilityError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAvailabilityInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAvailabilityOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAvailabilityUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to list payment options", http.StatusInternalServerError))
	}
}
