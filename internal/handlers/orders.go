package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dido-commerce/api/internal/platform/httpx"
	"github.com/dido-commerce/api/internal/services"
)

const maxOrderRequestBody = 8 * 1024

// OrderHandlers exposes the payment submission and WhatsApp handoff endpoints.
type OrderHandlers struct {
	payments     services.PaymentService
	messages     services.MessageService
	limiter      rateLimiter
	redirectMode string
}

// OrderOption customises order handler construction.
type OrderOption func(*OrderHandlers)

// WithOrderRateLimit throttles the handoff endpoint per client address.
func WithOrderRateLimit(limit int, window time.Duration) OrderOption {
	return func(h *OrderHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// WithOrderRedirectMode reports the configured post-submit redirect behaviour
// back to the storefront alongside the payment result.
func WithOrderRedirectMode(mode string) OrderOption {
	return func(h *OrderHandlers) {
		h.redirectMode = strings.TrimSpace(mode)
	}
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(payments services.PaymentService, messages services.MessageService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		payments: payments,
		messages: messages,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{orderID}/payment", h.submitPayment)
	r.Post("/{orderID}/payment/complete", h.completePayment)
	r.Get("/{orderID}/whatsapp-link", h.whatsappLink)
}

type submitPaymentRequest struct {
	CartID string `json:"cartId"`
}

type paymentResultResponse struct {
	OrderID      string `json:"orderId"`
	Status       string `json:"status"`
	Completed    bool   `json:"completed"`
	Redirect     string `json:"redirect,omitempty"`
	RedirectMode string `json:"redirectMode,omitempty"`
}

type orderMessageResponse struct {
	OrderID      string `json:"orderId"`
	Message      string `json:"message"`
	EncodedText  string `json:"encodedText"`
	WebLink      string `json:"webLink"`
	MobileLink   string `json:"mobileLink"`
	ThankYouMode string `json:"thankYouMode,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

func (h *OrderHandlers) submitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req submitPaymentRequest
	body, err := readLimitedBody(r, maxOrderRequestBody)
	switch {
	case errors.Is(err, errEmptyBody):
		// cart id is optional; an empty body submits without clearing a cart
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusRequestEntityTooLarge))
		return
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	default:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	}

	cmd := services.SubmitPaymentCommand{
		OrderID: orderID,
		CartID:  strings.TrimSpace(req.CartID),
	}

	result, err := h.payments.SubmitPayment(ctx, cmd)
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentResultResponse{
		OrderID:      result.OrderID,
		Status:       string(result.Status),
		Completed:    result.Completed,
		Redirect:     result.RedirectURL,
		RedirectMode: h.redirectMode,
	})
}

func (h *OrderHandlers) completePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	result, err := h.payments.CompletePayment(ctx, orderID)
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentResultResponse{
		OrderID:   result.OrderID,
		Status:    string(result.Status),
		Completed: result.Completed,
	})
}

func (h *OrderHandlers) whatsappLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.messages == nil {
		httpx.WriteError(ctx, w, httpx.NewError("message_unavailable", "message service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	message, err := h.messages.OrderMessage(ctx, orderID)
	if err != nil {
		h.writeMessageError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderMessageResponse{
		OrderID:      message.OrderID,
		Message:      message.Message.Text,
		EncodedText:  message.Message.Encoded,
		WebLink:      message.WebLink,
		MobileLink:   message.MobileLink,
		ThankYouMode: message.ThankYouMode,
		Instructions: message.Instructions,
	})
}

func (h *OrderHandlers) writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentConflict):
		httpx.WriteError(ctx, w, httpx.NewError("payment_conflict", "order was updated concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusInternalServerError))
	}
}

func (h *OrderHandlers) writeMessageError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrMessageInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrMessageOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrMessageGatewayNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_not_configured", "gateway number is not configured", http.StatusConflict))
	case errors.Is(err, services.ErrMessageUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("message_unavailable", "message service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("message_error", "failed to build order message", http.StatusInternalServerError))
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
