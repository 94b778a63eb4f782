package services

import (
	"context"
	"time"

	domain "github.com/dido-commerce/api/internal/domain"
)

// CheckoutOption is one entry of the payment option listing shown at checkout
// or on the pay-order page.
type CheckoutOption struct {
	ID           string
	Title        string
	Description  string
	Instructions string
}

// CartContext captures the state of the current checkout session used to
// decide whether the WhatsApp option may be offered.
type CartContext struct {
	NeedsShipping bool
	ChosenRates   []domain.RateID
}

// ListOptionsCommand asks for the filtered option listing on a given page.
type ListOptionsCommand struct {
	Page    domain.PageKind
	OrderID string
	Cart    CartContext
	Options []CheckoutOption
}

// AvailabilityService filters the storefront's payment option listing.
type AvailabilityService interface {
	ListOptions(ctx context.Context, cmd ListOptionsCommand) ([]CheckoutOption, error)
}

// EligibilityService decides whether the WhatsApp option applies to a checkout
// session or an existing order.
type EligibilityService interface {
	EligibleForCart(ctx context.Context, cart CartContext) bool
	EligibleForOrder(ctx context.Context, order domain.OrderSnapshot) bool
}

// ComposedMessage is the rendered order message in both raw and link-safe form.
type ComposedMessage struct {
	Text    string
	Encoded string
}

// MessageComposer renders the order into the text sent over the messaging channel.
type MessageComposer interface {
	Compose(ctx context.Context, order domain.OrderSnapshot) (ComposedMessage, error)
}

// OrderMessage bundles everything the storefront needs to hand the customer
// over to WhatsApp after checkout.
type OrderMessage struct {
	OrderID      string
	Message      ComposedMessage
	WebLink      string
	MobileLink   string
	ThankYouMode string
	Instructions string
}

// MessageService produces the customer-facing WhatsApp handoff for an order.
type MessageService interface {
	OrderMessage(ctx context.Context, orderID string) (OrderMessage, error)
}

// SubmitPaymentCommand carries the checkout submission for an order.
type SubmitPaymentCommand struct {
	OrderID string
	CartID  string
}

// PaymentResult reports the order state after a payment operation.
type PaymentResult struct {
	OrderID     string
	Status      domain.OrderStatus
	Completed   bool
	RedirectURL string
}

// PaymentService applies the WhatsApp gateway's order status transitions.
type PaymentService interface {
	SubmitPayment(ctx context.Context, cmd SubmitPaymentCommand) (PaymentResult, error)
	CompletePayment(ctx context.Context, orderID string) (PaymentResult, error)
}

// OrderEventMessage is the payload published for downstream order consumers.
type OrderEventMessage struct {
	EventID       string             `json:"eventId"`
	Type          string             `json:"type"`
	OrderID       string             `json:"orderId"`
	OrderNumber   string             `json:"orderNumber"`
	Status        domain.OrderStatus `json:"status"`
	PaymentMethod string             `json:"paymentMethod"`
	TotalMinor    int64              `json:"totalMinor"`
	Currency      string             `json:"currency"`
	OccurredAt    time.Time          `json:"occurredAt"`
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// SystemHealthReport aliases the domain health report for handler convenience.
type SystemHealthReport = domain.SystemHealthReport

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
