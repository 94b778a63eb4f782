package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/dido-commerce/api/internal/platform/firestore"
	"github.com/dido-commerce/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists checkout carts within Firestore.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
	now  func() time.Time
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base: base,
		now:  time.Now,
	}, nil
}

// Clear empties the cart after an order has been handed off. A cart that no
// longer exists counts as cleared.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return errors.New("cart repository: cart id is required")
	}

	updates := []firestore.Update{
		{Path: "items", Value: firestore.Delete},
		{Path: "itemsCount", Value: 0},
		{Path: "updatedAt", Value: r.now().UTC()},
	}
	_, err := r.base.Update(ctx, id, updates)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil
		}
		return err
	}
	return nil
}

type cartDocument struct {
	Currency   string         `firestore:"currency,omitempty"`
	Items      []cartItemDoc  `firestore:"items,omitempty"`
	ItemsCount int            `firestore:"itemsCount"`
	Metadata   map[string]any `firestore:"metadata,omitempty"`
	CreatedAt  time.Time      `firestore:"createdAt"`
	UpdatedAt  time.Time      `firestore:"updatedAt"`
}

type cartItemDoc struct {
	ProductID     string `firestore:"productId"`
	Quantity      int    `firestore:"quantity"`
	SubtotalMinor int64  `firestore:"subtotalMinor"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
