package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rl1809/stockflow/internal/adapter/storage"
	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

func fillCart(t *testing.T, env *testEnv, actor domain.Actor, product *domain.Product, quantity int) {
	t.Helper()
	for i := 0; i < quantity; i++ {
		_, err := env.cart.Add(context.Background(), actor, product.ID)
		require.NoError(t, err)
	}
}

func TestCheckout_Success(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	semovita := env.product(t, actor, "GP-SEM-001", "1250", 80)
	malta := env.product(t, actor, "MG-CAN-033", "350", 200)
	fillCart(t, env, actor, semovita, 2)
	fillCart(t, env, actor, malta, 3)

	env.sales.StartWorkers(2)
	sale, err := env.sales.Checkout(ctx, actor, CheckoutRequest{
		PaymentMethod: "card",
		Discount:      decimal.RequireFromString("50"),
	})
	require.NoError(t, err)
	env.sales.Close()

	assert.Equal(t, domain.SaleStatusPending, sale.Status)
	assert.Equal(t, domain.PaymentCard, sale.PaymentMethod)
	assert.True(t, sale.Subtotal.Equal(decimal.RequireFromString("3550")), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("3500")), "total %s", sale.Total)
	assert.Len(t, sale.Items, 2)

	cart, err := env.cart.Get(ctx, actor)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	stored, err := env.sales.GetSale(ctx, actor, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCompleted, stored.Status)
	assert.Len(t, stored.Items, 2)

	product, err := env.catalog.GetProduct(ctx, actor, semovita.ID)
	require.NoError(t, err)
	assert.Equal(t, 78, product.Stock)

	cached, _, err := env.cache.GetStock(ctx, malta.ID)
	require.NoError(t, err)
	assert.Equal(t, 197, cached)

	assert.Equal(t, []string{port.EventSaleCompleted}, env.events.keys())
}

func TestCheckout_Rejections(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	_, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash"})
	assert.ErrorIs(t, err, ErrEmptyCart)

	product := env.product(t, actor, "ML-ACT-400", "1850", 55)
	fillCart(t, env, actor, product, 1)

	_, err = env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Bitcoin"})
	assert.ErrorIs(t, err, ErrInvalidPayment)

	_, err = env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash", Discount: decimal.RequireFromString("-1")})
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash", Discount: decimal.RequireFromString("1850.01")})
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	stock, _, err := env.cache.GetStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, stock)
}

func TestCheckout_DuplicateRequest(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	product := env.product(t, actor, "DET-ANT-500", "1800", 70)
	fillCart(t, env, actor, product, 1)

	env.sales.StartWorkers(1)
	defer env.sales.Close()

	_, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash", IdempotencyKey: "req-1"})
	require.NoError(t, err)

	fillCart(t, env, actor, product, 1)
	_, err = env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash", IdempotencyKey: "req-1"})
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	// Stock should only be reserved once.
	stock, _, err := env.cache.GetStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 69, stock)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	scarce := env.product(t, actor, "AGB-SET-001", "25000", 8)
	plenty := env.product(t, actor, "DDO-BLK-001", "650", 95)
	fillCart(t, env, actor, scarce, 2)
	fillCart(t, env, actor, plenty, 4)

	// Another till sold most of the stock meanwhile.
	require.NoError(t, env.cache.SetStock(ctx, scarce.ID, 1))

	_, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Transfer"})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	stock, _, err := env.cache.GetStock(ctx, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, stock, "reservation must be all or nothing")

	cart, err := env.cart.Get(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 6, cart.Count(), "cart is kept on failure")
}

type failingSales struct {
	port.SaleRepository
}

func (failingSales) CreateSale(ctx context.Context, sale domain.Sale) error {
	return errors.New("db is down")
}

func TestCheckout_PersistFailureReleasesStock(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	product := env.product(t, actor, "ORM-PB-10K", "8500", 30)
	fillCart(t, env, actor, product, 3)

	svc := NewSaleService(failingSales{env.store}, env.store, env.cart, env.events, zerolog.Nop(), 10)
	svc.StartWorkers(1)
	sale, err := svc.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash"})
	require.NoError(t, err)
	svc.Close()

	stock, _, err := env.cache.GetStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, stock)

	_, err = env.sales.GetSale(ctx, actor, sale.ID)
	assert.ErrorIs(t, err, ErrSaleNotFound)

	assert.Equal(t, []string{port.EventSaleFailed}, env.events.keys())
}

func TestCheckout_PublishesStockLow(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	product := env.product(t, actor, "PLC-CLR-50", "8500", 12)
	fillCart(t, env, actor, product, 3)

	env.sales.StartWorkers(1)
	_, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash"})
	require.NoError(t, err)
	env.sales.Close()

	assert.Equal(t, []string{port.EventSaleCompleted, port.EventStockLow}, env.events.keys())
	ev := env.events.events[1].payload.(StockLowEvent)
	assert.Equal(t, "PLC-CLR-50", ev.SKU)
	assert.Equal(t, 9, ev.Stock)
}

func TestCheckout_AfterClose(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	product := env.product(t, actor, "CC-PET-050", "300", 150)
	fillCart(t, env, actor, product, 2)

	env.sales.Close()
	_, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash"})
	assert.ErrorIs(t, err, ErrServiceClosed)

	stock, _, err := env.cache.GetStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, stock)
}

func TestConcurrentCheckout_NoOversell(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")
	ctx := context.Background()

	product := env.product(t, owner, "MG-RICE-25", "21500", 5)

	const tills = 10
	actors := make([]domain.Actor, tills)
	for i := range actors {
		actors[i] = owner
		actors[i].UserID = strings.Repeat("u", i+1)
		fillCart(t, env, actors[i], product, 1)
	}

	env.sales.StartWorkers(4)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, actor := range actors {
		wg.Add(1)
		go func(actor domain.Actor) {
			defer wg.Done()
			_, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}(actor)
	}
	wg.Wait()
	env.sales.Close()

	assert.Equal(t, 5, succeeded)
	stored, err := env.catalog.GetProduct(ctx, owner, product.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Stock)
}

func TestListSalesAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	garri := env.product(t, actor, "IJ-GAR-015", "850", 120)
	milk := env.product(t, actor, "PK-MLK-900", "4500", 4)

	env.sales.StartWorkers(1)
	fillCart(t, env, actor, garri, 3)
	_, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash"})
	require.NoError(t, err)
	fillCart(t, env, actor, milk, 1)
	fillCart(t, env, actor, garri, 1)
	_, err = env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Card"})
	require.NoError(t, err)
	env.sales.Close()

	sales, err := env.sales.ListSales(ctx, actor, 0, 0)
	require.NoError(t, err)
	assert.Len(t, sales, 2)

	stats, err := env.sales.Dashboard(ctx, actor)
	require.NoError(t, err)
	assert.True(t, stats.TotalRevenue.Equal(decimal.RequireFromString("7900")), "revenue %s", stats.TotalRevenue)
	assert.Equal(t, 2, stats.TotalProducts)
	assert.Equal(t, 2, stats.TodaySales)
	assert.Equal(t, 1, stats.LowStockCount)
	assert.Len(t, stats.RecentSales, 2)
	require.Len(t, stats.LowStock, 1)
	assert.Equal(t, milk.ID, stats.LowStock[0].ID)
	require.NotEmpty(t, stats.TopProducts)
	assert.Equal(t, domain.TopProduct{Name: garri.Name, Sold: 4}, stats.TopProducts[0])
}

func TestDashboard_Empty(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")

	stats, err := env.sales.Dashboard(context.Background(), actor)
	require.NoError(t, err)
	assert.True(t, stats.TotalRevenue.IsZero())
	assert.NotNil(t, stats.RecentSales)
	assert.NotNil(t, stats.TopProducts)
}

func TestReceipt(t *testing.T) {
	env := newTestEnv(t)
	actor := env.register(t, "owner@example.com")
	ctx := context.Background()

	product := env.product(t, actor, "ANK-FAB-006", "4500", 35)
	fillCart(t, env, actor, product, 2)

	env.sales.StartWorkers(1)
	sale, err := env.sales.Checkout(ctx, actor, CheckoutRequest{PaymentMethod: "Cash"})
	require.NoError(t, err)
	env.sales.Close()

	body, filename, err := env.sales.Receipt(ctx, actor, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipt-"+sale.ID+".txt", filename)
	assert.Contains(t, string(body), "Mama Put Stores")
	assert.Contains(t, string(body), "₦9000.00")

	_, _, err = env.sales.Receipt(ctx, actor, "missing")
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

type recordingSales struct {
	port.SaleRepository
	mu    sync.Mutex
	saved []string
}

func (r *recordingSales) CreateSale(ctx context.Context, sale domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, sale.ID)
	return nil
}

type emptyCatalog struct {
	port.CatalogRepository
}

func (emptyCatalog) GetProduct(ctx context.Context, businessID, id string) (*domain.Product, error) {
	return nil, nil
}

func TestWorkers_DrainQueueOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cache := storage.NewMemoryCache()
	cart := NewCartService(emptyCatalog{}, cache, cache, zerolog.Nop())
	repo := &recordingSales{}
	svc := NewSaleService(repo, nil, cart, &recordingPublisher{}, zerolog.Nop(), 100)
	svc.StartWorkers(4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 20; i++ {
		sale := domain.Sale{
			ID:    strings.Repeat("s", i+1),
			Items: []domain.SaleItem{{ProductID: "p", Quantity: 1}},
		}
		require.NoError(t, svc.enqueue(ctx, sale))
	}
	svc.Close()
	svc.Close()

	assert.Len(t, repo.saved, 20)
}
