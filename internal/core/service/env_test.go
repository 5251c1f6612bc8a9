package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/stockflow/internal/adapter/storage"
	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	key     string
	payload any
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{key: routingKey, payload: payload})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.key)
	}
	return keys
}

type testCache interface {
	port.CacheRepository
	port.CartStore
	port.SessionStore
}

type testEnv struct {
	store   *storage.SQLAdapter
	cache   testCache
	events  *recordingPublisher
	catalog *CatalogService
	cart    *CartService
	sales   *SaleService
	auth    *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := storage.OpenSQL(ctx, storage.DialectSQLite, filepath.Join(t.TempDir(), "stockflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := storage.NewSQLAdapter(db, storage.DialectSQLite)
	require.NoError(t, store.Migrate(ctx))
	return buildTestEnv(store, storage.NewMemoryCache())
}

func buildTestEnv(store *storage.SQLAdapter, cache testCache) *testEnv {
	log := zerolog.Nop()
	events := &recordingPublisher{}

	env := &testEnv{
		store:  store,
		cache:  cache,
		events: events,
	}
	env.catalog = NewCatalogService(store, cache, log)
	env.cart = NewCartService(store, cache, cache, log)
	env.sales = NewSaleService(store, store, env.cart, events, log, 100)
	env.auth = NewAuthService(store, cache, log, time.Hour)
	env.auth.hashCost = bcrypt.MinCost
	return env
}

// register creates a business and returns its owner as an actor.
func (e *testEnv) register(t *testing.T, email string) domain.Actor {
	t.Helper()

	_, principal, err := e.auth.Register(context.Background(), RegisterInput{
		BusinessName:    "Mama Put Stores",
		Phone:           "+234 800 000 0000",
		Email:           email,
		OwnerName:       "Ada",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	return principal.Actor()
}

func (e *testEnv) product(t *testing.T, actor domain.Actor, sku, price string, stock int) *domain.Product {
	t.Helper()

	p := decimal.RequireFromString(price)
	product, err := e.catalog.CreateProduct(context.Background(), actor, ProductInput{
		Name:  "Product " + sku,
		SKU:   sku,
		Price: &p,
		Stock: &stock,
	})
	require.NoError(t, err)
	return product
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
