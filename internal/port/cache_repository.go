package port

import (
	"context"
	"time"

	"github.com/rl1809/stockflow/internal/core/domain"
)

type StockLine struct {
	ProductID string
	Quantity  int
}

type CacheRepository interface {
	// ReserveStock atomically decreases stock for every line, or for none of
	// them; returns false if any line is short
	ReserveStock(ctx context.Context, lines []StockLine) (bool, error)

	// ReleaseStock restores reserved stock (for rollback on failure)
	ReleaseStock(ctx context.Context, lines []StockLine) error

	SetStock(ctx context.Context, productID string, quantity int) error

	// AdjustStock adds delta to cached stock, keeping outstanding
	// reservations; returns false when the product has no cached stock
	AdjustStock(ctx context.Context, productID string, delta int) (bool, error)

	// GetStock returns false when the product has no cached stock
	GetStock(ctx context.Context, productID string) (int, bool, error)

	DeleteStock(ctx context.Context, productID string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}

type CartStore interface {
	// CartItems returns product ID -> quantity
	CartItems(ctx context.Context, cartKey string) (map[string]int, error)
	SetCartQuantity(ctx context.Context, cartKey, productID string, quantity int) error
	RemoveCartItem(ctx context.Context, cartKey, productID string) error
	ClearCart(ctx context.Context, cartKey string) error
}

type SessionStore interface {
	SaveSession(ctx context.Context, session domain.Session, ttl time.Duration) error
	// GetSession returns nil, nil for unknown or expired tokens
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
}
