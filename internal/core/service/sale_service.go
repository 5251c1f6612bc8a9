package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/core/receipt"
	"github.com/rl1809/stockflow/internal/metrics"
	"github.com/rl1809/stockflow/internal/port"
)

const (
	defaultSalesPage = 50
	maxSalesPage     = 200
	dashboardLimit   = 5
	persistTimeout   = 5 * time.Second
)

type CheckoutRequest struct {
	PaymentMethod  string          `json:"payment_method"`
	Discount       decimal.Decimal `json:"discount"`
	IdempotencyKey string          `json:"-"`
}

type SaleFailedEvent struct {
	SaleID     string `json:"sale_id"`
	BusinessID string `json:"business_id"`
	Reason     string `json:"reason"`
}

type StockLowEvent struct {
	BusinessID string `json:"business_id"`
	ProductID  string `json:"product_id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Stock      int    `json:"stock"`
}

// SaleService accepts checkouts and hands the resulting sales to a pool of
// workers that persist them. Stock is reserved in the cache before a sale is
// queued, so the workers only ever release it again on failure.
type SaleService struct {
	sales    port.SaleRepository
	accounts port.AccountRepository
	cart     *CartService
	events   port.EventPublisher
	log      zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	saleQueue chan domain.Sale
	workers   sync.WaitGroup

	now func() time.Time
}

func NewSaleService(sales port.SaleRepository, accounts port.AccountRepository, cart *CartService, events port.EventPublisher, log zerolog.Logger, queueSize int) *SaleService {
	return &SaleService{
		sales:     sales,
		accounts:  accounts,
		cart:      cart,
		events:    events,
		log:       log,
		saleQueue: make(chan domain.Sale, queueSize),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Checkout turns the actor's cart into a pending sale. The returned sale is
// the receipt; it becomes visible in the sales history once a worker has
// persisted it.
func (s *SaleService) Checkout(ctx context.Context, actor domain.Actor, req CheckoutRequest) (*domain.Sale, error) {
	cart, err := s.cart.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, s.reject("empty_cart", ErrEmptyCart)
	}

	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, s.reject("invalid_payment", ErrInvalidPayment)
	}

	subtotal := cart.Total()
	discount := req.Discount
	if discount.IsNegative() || discount.GreaterThan(subtotal) {
		return nil, s.reject("invalid_discount", ErrInvalidDiscount)
	}

	if req.IdempotencyKey != "" {
		key := fmt.Sprintf("checkout:%s:%s", actor.CartKey(), req.IdempotencyKey)
		ok, err := s.cart.cache.SetIdempotency(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, s.reject("duplicate", ErrDuplicateRequest)
		}
	}

	lines := make([]port.StockLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, port.StockLine{ProductID: item.ID, Quantity: item.Quantity})
	}
	ok, err = s.cart.cache.ReserveStock(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("stock reservation failed: %w", err)
	}
	if !ok {
		return nil, s.reject("insufficient_stock", ErrInsufficientStock)
	}

	sale := domain.Sale{
		ID:            uuid.NewString(),
		BusinessID:    actor.BusinessID,
		UserID:        actor.UserID,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         subtotal.Sub(discount),
		PaymentMethod: method,
		Status:        domain.SaleStatusPending,
		CreatedAt:     s.now(),
	}
	for _, item := range cart.Items {
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:          uuid.NewString(),
			SaleID:      sale.ID,
			ProductID:   item.ID,
			ProductName: item.Name,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	if err := s.enqueue(ctx, sale); err != nil {
		if releaseErr := s.cart.cache.ReleaseStock(context.WithoutCancel(ctx), lines); releaseErr != nil {
			s.log.Error().Err(releaseErr).Str("sale_id", sale.ID).Msg("release stock after rejected enqueue")
		}
		return nil, err
	}

	if err := s.cart.Clear(ctx, actor); err != nil {
		s.log.Warn().Err(err).Str("sale_id", sale.ID).Msg("sale queued but cart not cleared")
	}

	s.log.Info().
		Str("sale_id", sale.ID).
		Str("business_id", sale.BusinessID).
		Str("total", sale.Total.StringFixed(2)).
		Int("lines", len(sale.Items)).
		Msg("sale queued")
	return &sale, nil
}

func (s *SaleService) enqueue(ctx context.Context, sale domain.Sale) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrServiceClosed
	}
	select {
	case s.saleQueue <- sale:
		metrics.SaleQueueDepth.Set(float64(len(s.saleQueue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SaleService) reject(reason string, err error) error {
	metrics.CheckoutRejectedTotal.WithLabelValues(reason).Inc()
	return err
}

// StartWorkers launches n workers draining the sale queue. They exit once
// Close has been called and the queue is empty.
func (s *SaleService) StartWorkers(n int) {
	for i := 0; i < n; i++ {
		s.workers.Add(1)
		go func(id int) {
			defer s.workers.Done()
			s.workerLoop(id)
		}(i)
	}
	s.log.Info().Int("workers", n).Msg("started sale workers")
}

// Close stops accepting checkouts and waits for the workers to persist every
// queued sale.
func (s *SaleService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.saleQueue)
	}
	s.mu.Unlock()

	s.workers.Wait()
}

func (s *SaleService) workerLoop(id int) {
	for sale := range s.saleQueue {
		metrics.SaleQueueDepth.Set(float64(len(s.saleQueue)))
		s.persist(id, sale)
	}
}

func (s *SaleService) persist(id int, sale domain.Sale) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	log := s.log.With().Int("worker", id).Str("sale_id", sale.ID).Logger()

	sale.Status = domain.SaleStatusCompleted
	if err := s.sales.CreateSale(ctx, sale); err != nil {
		log.Error().Err(err).Msg("failed to save sale")
		metrics.SalesFailedTotal.Inc()

		if rollbackErr := s.cart.cache.ReleaseStock(ctx, stockLines(sale)); rollbackErr != nil {
			log.Error().Err(rollbackErr).Msg("CRITICAL rollback failed")
		} else {
			log.Info().Msg("rolled back reserved stock")
		}

		s.publish(ctx, port.EventSaleFailed, SaleFailedEvent{
			SaleID:     sale.ID,
			BusinessID: sale.BusinessID,
			Reason:     err.Error(),
		})
		return
	}

	log.Info().Str("total", sale.Total.StringFixed(2)).Msg("saved sale")
	metrics.SalesCompletedTotal.Inc()
	metrics.RevenueTotal.Add(sale.Total.InexactFloat64())
	s.publish(ctx, port.EventSaleCompleted, sale)

	for _, item := range sale.Items {
		product, err := s.cart.catalog.GetProduct(ctx, sale.BusinessID, item.ProductID)
		if err != nil || product == nil {
			continue
		}
		if product.IsLowStock() && product.Stock+item.Quantity > domain.LowStockThreshold {
			s.publish(ctx, port.EventStockLow, StockLowEvent{
				BusinessID: product.BusinessID,
				ProductID:  product.ID,
				SKU:        product.SKU,
				Name:       product.Name,
				Stock:      product.Stock,
			})
		}
	}
}

func (s *SaleService) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		s.log.Warn().Err(err).Str("event", routingKey).Msg("publish event")
	}
}

func stockLines(sale domain.Sale) []port.StockLine {
	lines := make([]port.StockLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, port.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func (s *SaleService) GetSale(ctx context.Context, actor domain.Actor, id string) (*domain.Sale, error) {
	sale, err := s.sales.GetSale(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, ErrSaleNotFound
	}
	return sale, nil
}

// ListSales pages through the sales history, newest first.
func (s *SaleService) ListSales(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = defaultSalesPage
	}
	limit = min(limit, maxSalesPage)
	offset = max(offset, 0)
	return s.sales.ListSales(ctx, actor.BusinessID, limit, offset)
}

// Receipt renders the plain-text receipt of a persisted sale and returns it
// with its download file name.
func (s *SaleService) Receipt(ctx context.Context, actor domain.Actor, id string) ([]byte, string, error) {
	sale, err := s.GetSale(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	business, err := s.accounts.GetBusiness(ctx, actor.BusinessID)
	if err != nil {
		return nil, "", err
	}
	if business == nil {
		return nil, "", fmt.Errorf("business %s: %w", actor.BusinessID, port.ErrNotFound)
	}

	var buf bytes.Buffer
	if err := receipt.Render(&buf, *business, *sale); err != nil {
		return nil, "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), receipt.Filename(*sale), nil
}

func (s *SaleService) Dashboard(ctx context.Context, actor domain.Actor) (*domain.DashboardStats, error) {
	var (
		stats    domain.DashboardStats
		allTime  domain.SalesSummary
		today    domain.SalesSummary
		now      = s.now()
		midnight = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		allTime, err = s.sales.SalesSummary(ctx, actor.BusinessID, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		today, err = s.sales.SalesSummary(ctx, actor.BusinessID, midnight)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalProducts, err = s.cart.catalog.CountProducts(ctx, actor.BusinessID)
		return err
	})
	g.Go(func() (err error) {
		stats.LowStockCount, err = s.cart.catalog.CountLowStock(ctx, actor.BusinessID, domain.LowStockThreshold)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentSales, err = s.sales.ListSales(ctx, actor.BusinessID, dashboardLimit, 0)
		return err
	})
	g.Go(func() (err error) {
		stats.LowStock, err = s.cart.catalog.ListLowStock(ctx, actor.BusinessID, domain.LowStockThreshold, dashboardLimit)
		return err
	})
	g.Go(func() (err error) {
		stats.TopProducts, err = s.sales.TopProducts(ctx, actor.BusinessID, dashboardLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	stats.TotalRevenue = allTime.Revenue.Round(2)
	stats.TodaySales = today.Count
	if stats.RecentSales == nil {
		stats.RecentSales = []domain.Sale{}
	}
	if stats.LowStock == nil {
		stats.LowStock = []domain.Product{}
	}
	if stats.TopProducts == nil {
		stats.TopProducts = []domain.TopProduct{}
	}
	return &stats, nil
}
