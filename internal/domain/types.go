package domain

import (
	"strings"
	"time"
)

// PaymentOptionWhatsApp identifies the WhatsApp ordering option among the
// storefront's checkout options.
const PaymentOptionWhatsApp = "whatsapp_order"

// OrderStatus enumerates order lifecycle states used by the storefront.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment over the messaging channel.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusOnHold indicates the order is held until manual confirmation.
	OrderStatusOnHold OrderStatus = "on-hold"
	// OrderStatusProcessing indicates the order is paid and being fulfilled.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted indicates fulfilment is finished.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusFailed indicates payment failed.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusRefunded indicates the order was refunded.
	OrderStatusRefunded OrderStatus = "refunded"
)

// PageKind distinguishes the page a checkout option listing is rendered on.
type PageKind string

const (
	// PageCheckout is the regular checkout page for a fresh cart.
	PageCheckout PageKind = "checkout"
	// PagePayOrder is the page where a customer pays an already-placed order.
	PagePayOrder PageKind = "pay_order"
)

// RateID identifies a shipping rate as method[:instance].
type RateID string

// Family returns the method part of the rate identifier, stripping the
// instance suffix when present.
func (r RateID) Family() string {
	s := string(r)
	if idx := strings.Index(s, ":"); idx >= 0 {
		return s[:idx]
	}
	return s
}

// ProductInfo is the resolved product behind an order line item. A nil
// ProductInfo on a line item means the product no longer exists.
type ProductInfo struct {
	Name             string
	RequiresShipping bool
	Downloadable     bool
}

// MetaPair is a formatted line-item meta entry.
type MetaPair struct {
	Key   string
	Value string
}

// OrderLineItem is a single purchased line within an order snapshot.
type OrderLineItem struct {
	Product       *ProductInfo
	Quantity      int
	SubtotalMinor int64
	Meta          []MetaPair
}

// TotalRow is one row of the order's totals breakdown, already formatted for
// display. Rows keyed payment_method are never rendered.
type TotalRow struct {
	Key   string
	Label string
	Value string
}

// OrderSnapshot is a read-only view of one order, produced fresh per request
// from persisted storage.
type OrderSnapshot struct {
	ID                   string
	Number               string
	Status               OrderStatus
	PaymentMethod        string
	Currency             string
	CurrencySymbol       string
	TotalMinor           int64
	CreatedAt            time.Time
	BillingEmail         string
	CustomerNote         string
	BillingAddress       []string
	ShippingAddress      []string
	NeedsShippingAddress bool
	ShippingRates        []RateID
	Items                []OrderLineItem
	Totals               []TotalRow
	Metadata             map[string]string
	PaymentURL           string
	ViewURL              string
	UpdatedAt            time.Time
}

// NeedsShipping reports whether any resolvable line item requires shipping.
func (o OrderSnapshot) NeedsShipping() bool {
	for _, item := range o.Items {
		if item.Product != nil && item.Product.RequiresShipping {
			return true
		}
	}
	return false
}

// HasDownloadableItem reports whether any resolvable line item is downloadable.
func (o OrderSnapshot) HasDownloadableItem() bool {
	for _, item := range o.Items {
		if item.Product != nil && item.Product.Downloadable {
			return true
		}
	}
	return false
}
