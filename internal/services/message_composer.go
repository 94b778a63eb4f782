package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	domain "github.com/dido-commerce/api/internal/domain"
	"github.com/dido-commerce/api/internal/platform/textutil"
)

const (
	messageDivider    = "--------------------------------"
	messageDateFormat = "January 2, 2006"
)

// ErrMessageInvalidInput signals the caller provided invalid data.
var ErrMessageInvalidInput = errors.New("message: invalid input")

// MessageRules holds the composition settings mapped from configuration.
type MessageRules struct {
	SiteName          string
	SendOrderMetaData bool
	IgnoredMetaFields []string
	SendPaymentLink   bool
	SendViewOrderLink bool
	ShipToBillingOnly bool
}

// MessageComposerDeps bundles collaborators for the message composer.
type MessageComposerDeps struct {
	Rules MessageRules
	// ExtraContent supplies storefront extension text rendered below the order
	// summary header, such as receipt add-ons. It may return markup; the
	// composer strips it to plain lines.
	ExtraContent func(ctx context.Context, order domain.OrderSnapshot) (string, error)
}

type messageComposer struct {
	rules   MessageRules
	ignored map[string]struct{}
	extra   func(ctx context.Context, order domain.OrderSnapshot) (string, error)
}

// NewMessageComposer wires dependencies into a concrete MessageComposer.
func NewMessageComposer(deps MessageComposerDeps) (MessageComposer, error) {
	ignored := make(map[string]struct{}, len(deps.Rules.IgnoredMetaFields))
	for _, field := range deps.Rules.IgnoredMetaFields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			ignored[trimmed] = struct{}{}
		}
	}
	return &messageComposer{
		rules:   deps.Rules,
		ignored: ignored,
		extra:   deps.ExtraContent,
	}, nil
}

func (c *messageComposer) Compose(ctx context.Context, order domain.OrderSnapshot) (ComposedMessage, error) {
	if strings.TrimSpace(order.ID) == "" {
		return ComposedMessage{}, fmt.Errorf("%w: order id is required", ErrMessageInvalidInput)
	}

	extra, err := c.extraContent(ctx, order)
	if err != nil {
		return ComposedMessage{}, err
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("👉 New Order Received @ " + c.rules.SiteName + "\n\n")
	b.WriteString(messageDivider + "\n\n")
	b.WriteString("#️⃣ Order number    : " + order.ID + "\n")
	b.WriteString("🔆 Order Status    : " + string(order.Status) + "\n")
	b.WriteString("🗓 Date            : " + order.CreatedAt.Format(messageDateFormat) + "\n")
	b.WriteString("📧 Email           : " + order.BillingEmail + "\n")
	b.WriteString("💰 Total Amount    : " + domain.FormatOrderTotal(order.CurrencySymbol, order.TotalMinor, order.Currency) + "\n")
	b.WriteString(extra)
	b.WriteString("\n🔍 Order details: \n\n")
	b.WriteString(c.orderDetails(order))
	b.WriteString("\n")

	text := b.String()
	return ComposedMessage{
		Text:    text,
		Encoded: url.QueryEscape(html.UnescapeString(text)),
	}, nil
}

func (c *messageComposer) extraContent(ctx context.Context, order domain.OrderSnapshot) (string, error) {
	if c.extra == nil {
		return "", nil
	}
	raw, err := c.extra(ctx, order)
	if err != nil {
		return "", fmt.Errorf("message: extra content: %w", err)
	}
	lines := textutil.FlattenLines(textutil.StripMarkup(raw))
	if len(lines) == 0 {
		return "", nil
	}
	return "\n" + strings.Join(lines, "\n") + "\n\n", nil
}

func (c *messageComposer) orderDetails(order domain.OrderSnapshot) string {
	var b strings.Builder

	for _, item := range order.Items {
		if item.Product == nil {
			continue
		}
		subtotal := domain.FormatOrderTotal(order.CurrencySymbol, item.SubtotalMinor, order.Currency)
		b.WriteString(fmt.Sprintf("⭐ %s x %d => %s\n", item.Product.Name, item.Quantity, subtotal))
		for _, meta := range item.Meta {
			b.WriteString(textutil.StripMarkup(meta.Key) + ": " + textutil.StripMarkup(meta.Value) + "\n")
		}
	}

	b.WriteString("\n" + messageDivider + "\n")
	for _, row := range order.Totals {
		if row.Key == "payment_method" {
			continue
		}
		b.WriteString("\n" + row.Label + " " + textutil.StripMarkup(row.Value))
	}
	b.WriteString("\n\n" + messageDivider + "\n\n")

	if note := noteText(order.CustomerNote); note != "" {
		b.WriteString("Note:\n")
		b.WriteString(note + "\n")
		b.WriteString("\n" + messageDivider + "\n\n")
	}

	b.WriteString("🗒 Billing address:\n\n")
	b.WriteString(strings.Join(order.BillingAddress, "\n") + "\n")

	if c.showShipping(order) {
		b.WriteString("\n" + messageDivider + "\n\n")
		b.WriteString("🚚 Shipping address:\n\n")
		b.WriteString(strings.Join(order.ShippingAddress, "\n") + "\n")
	}

	if c.rules.SendOrderMetaData {
		b.WriteString(c.metadataSection(order.Metadata))
	}
	b.WriteString("\n")

	if c.rules.SendPaymentLink && order.PaymentURL != "" {
		b.WriteString("\n" + messageDivider + "\n")
		b.WriteString("💳 Pay Now\n")
		b.WriteString(order.PaymentURL + "\n\n")
	}
	if c.rules.SendViewOrderLink && order.ViewURL != "" {
		b.WriteString("👁 View Order\n")
		b.WriteString(order.ViewURL + "\n\n")
	}

	return b.String()
}

func (c *messageComposer) showShipping(order domain.OrderSnapshot) bool {
	return !c.rules.ShipToBillingOnly && order.NeedsShippingAddress
}

// noteText strips markup from the customer note while keeping its line breaks.
func noteText(note string) string {
	lines := textutil.FlattenLines(textutil.StripMarkup(note))
	return strings.Join(lines, "\n")
}

// metadataSection renders custom order metadata sorted by key so the message
// is identical across requests for the same order.
func (c *messageComposer) metadataSection(metadata map[string]string) string {
	metadata = textutil.NormalizeStringMap(metadata)
	if len(metadata) == 0 {
		return ""
	}

	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	emitted := false
	for _, key := range keys {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if _, skip := c.ignored[key]; skip {
			continue
		}
		if !emitted {
			b.WriteString("\n" + messageDivider + "\n")
			emitted = true
		}
		b.WriteString(textutil.TitleKey(key) + " : " + metadata[key] + "\n")
	}
	return b.String()
}
