package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/dido-commerce/api/internal/domain"
	pfirestore "github.com/dido-commerce/api/internal/platform/firestore"
	"github.com/dido-commerce/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists order snapshots within Firestore.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByID loads the order document for the given identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	if r == nil || r.base == nil {
		return domain.OrderSnapshot{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.OrderSnapshot{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.OrderSnapshot{}, err
	}
	return doc.Data.toSnapshot(doc.ID, doc.UpdateTime), nil
}

// UpdateStatus writes a new lifecycle status on the order document.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: at.UTC()},
	}
	_, err := r.base.Update(ctx, id, updates)
	return err
}

// MarkPaymentComplete records the payment completion inside a transaction so a
// concurrent submission cannot complete the same order twice.
func (r *OrderRepository) MarkPaymentComplete(ctx context.Context, orderID string, status domain.OrderStatus, paidAt time.Time) error {
	if r == nil || r.base == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("orders.get", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.PaymentComplete {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(status)},
			{Path: "paymentComplete", Value: true},
			{Path: "paidAt", Value: paidAt.UTC()},
			{Path: "updatedAt", Value: paidAt.UTC()},
		})
	})
}

type orderDocument struct {
	Number               string               `firestore:"number"`
	Status               string               `firestore:"status"`
	PaymentMethod        string               `firestore:"paymentMethod"`
	Currency             string               `firestore:"currency"`
	CurrencySymbol       string               `firestore:"currencySymbol"`
	TotalMinor           int64                `firestore:"totalMinor"`
	BillingEmail         string               `firestore:"billingEmail,omitempty"`
	CustomerNote         string               `firestore:"customerNote,omitempty"`
	BillingAddress       []string             `firestore:"billingAddress,omitempty"`
	ShippingAddress      []string             `firestore:"shippingAddress,omitempty"`
	NeedsShippingAddress bool                 `firestore:"needsShippingAddress"`
	ShippingRates        []string             `firestore:"shippingRates,omitempty"`
	Items                []orderItemDocument  `firestore:"items,omitempty"`
	Totals               []orderTotalDocument `firestore:"totals,omitempty"`
	Metadata             map[string]string    `firestore:"metadata,omitempty"`
	PaymentURL           string               `firestore:"paymentUrl,omitempty"`
	ViewURL              string               `firestore:"viewUrl,omitempty"`
	PaymentComplete      bool                 `firestore:"paymentComplete"`
	PaidAt               time.Time            `firestore:"paidAt,omitempty"`
	CreatedAt            time.Time            `firestore:"createdAt"`
	UpdatedAt            time.Time            `firestore:"updatedAt"`
}

type orderItemDocument struct {
	Product       *orderProductDocument `firestore:"product,omitempty"`
	Quantity      int                   `firestore:"quantity"`
	SubtotalMinor int64                 `firestore:"subtotalMinor"`
	Meta          []orderMetaDocument   `firestore:"meta,omitempty"`
}

type orderProductDocument struct {
	Name             string `firestore:"name"`
	RequiresShipping bool   `firestore:"requiresShipping"`
	Downloadable     bool   `firestore:"downloadable"`
}

type orderMetaDocument struct {
	Key   string `firestore:"key"`
	Value string `firestore:"value"`
}

type orderTotalDocument struct {
	Key   string `firestore:"key"`
	Label string `firestore:"label"`
	Value string `firestore:"value"`
}

func (d orderDocument) toSnapshot(id string, updateTime time.Time) domain.OrderSnapshot {
	snapshot := domain.OrderSnapshot{
		ID:                   id,
		Number:               strings.TrimSpace(d.Number),
		Status:               domain.OrderStatus(strings.TrimSpace(d.Status)),
		PaymentMethod:        strings.TrimSpace(d.PaymentMethod),
		Currency:             strings.ToUpper(strings.TrimSpace(d.Currency)),
		CurrencySymbol:       d.CurrencySymbol,
		TotalMinor:           d.TotalMinor,
		CreatedAt:            d.CreatedAt,
		BillingEmail:         strings.TrimSpace(d.BillingEmail),
		CustomerNote:         d.CustomerNote,
		BillingAddress:       append([]string(nil), d.BillingAddress...),
		ShippingAddress:      append([]string(nil), d.ShippingAddress...),
		NeedsShippingAddress: d.NeedsShippingAddress,
		PaymentURL:           d.PaymentURL,
		ViewURL:              d.ViewURL,
		UpdatedAt:            d.UpdatedAt,
	}
	if !updateTime.IsZero() {
		snapshot.UpdatedAt = updateTime
	}
	if snapshot.Number == "" {
		snapshot.Number = id
	}

	if len(d.ShippingRates) > 0 {
		snapshot.ShippingRates = make([]domain.RateID, 0, len(d.ShippingRates))
		for _, rate := range d.ShippingRates {
			if trimmed := strings.TrimSpace(rate); trimmed != "" {
				snapshot.ShippingRates = append(snapshot.ShippingRates, domain.RateID(trimmed))
			}
		}
	}

	if len(d.Items) > 0 {
		snapshot.Items = make([]domain.OrderLineItem, 0, len(d.Items))
		for _, item := range d.Items {
			converted := domain.OrderLineItem{
				Quantity:      item.Quantity,
				SubtotalMinor: item.SubtotalMinor,
			}
			if item.Product != nil {
				converted.Product = &domain.ProductInfo{
					Name:             item.Product.Name,
					RequiresShipping: item.Product.RequiresShipping,
					Downloadable:     item.Product.Downloadable,
				}
			}
			for _, meta := range item.Meta {
				converted.Meta = append(converted.Meta, domain.MetaPair{Key: meta.Key, Value: meta.Value})
			}
			snapshot.Items = append(snapshot.Items, converted)
		}
	}

	if len(d.Totals) > 0 {
		snapshot.Totals = make([]domain.TotalRow, 0, len(d.Totals))
		for _, row := range d.Totals {
			snapshot.Totals = append(snapshot.Totals, domain.TotalRow{Key: row.Key, Label: row.Label, Value: row.Value})
		}
	}

	if len(d.Metadata) > 0 {
		snapshot.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			snapshot.Metadata[k] = v
		}
	}

	return snapshot
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
