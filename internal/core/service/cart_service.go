package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

// CartService keeps one cart per user of a business. A line's quantity never
// exceeds the stock still available for reservation.
type CartService struct {
	catalog port.CatalogRepository
	cache   port.CacheRepository
	carts   port.CartStore
	log     zerolog.Logger
}

func NewCartService(catalog port.CatalogRepository, cache port.CacheRepository, carts port.CartStore, log zerolog.Logger) *CartService {
	return &CartService{
		catalog: catalog,
		cache:   cache,
		carts:   carts,
		log:     log,
	}
}

// Get returns the cart joined with current product data. Each line's Stock
// is the quantity still available for reservation. Lines whose product no
// longer exists are dropped from the stored cart.
func (s *CartService) Get(ctx context.Context, actor domain.Actor) (domain.Cart, error) {
	items, err := s.carts.CartItems(ctx, actor.CartKey())
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}

	cart := domain.Cart{Items: make([]domain.CartItem, 0, len(items))}
	for productID, quantity := range items {
		product, err := s.catalog.GetProduct(ctx, actor.BusinessID, productID)
		if err != nil {
			return domain.Cart{}, err
		}
		if product == nil {
			if err := s.carts.RemoveCartItem(ctx, actor.CartKey(), productID); err != nil {
				return domain.Cart{}, fmt.Errorf("drop deleted product %s: %w", productID, err)
			}
			continue
		}

		available, err := s.available(ctx, *product)
		if err != nil {
			return domain.Cart{}, err
		}
		product.Stock = available
		cart.Items = append(cart.Items, domain.CartItem{Product: *product, Quantity: quantity})
	}

	slices.SortFunc(cart.Items, func(a, b domain.CartItem) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return cart, nil
}

// Add puts one unit of the product in the cart.
func (s *CartService) Add(ctx context.Context, actor domain.Actor, productID string) (domain.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, actor.BusinessID, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if product == nil {
		return domain.Cart{}, ErrProductNotFound
	}
	if err := s.addOne(ctx, actor, *product); err != nil {
		return domain.Cart{}, err
	}
	return s.Get(ctx, actor)
}

// Scan resolves a decoded SKU and adds one unit of that product to the cart.
func (s *CartService) Scan(ctx context.Context, actor domain.Actor, sku string) (*domain.Product, domain.Cart, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, domain.Cart{}, ErrProductNotFound
	}
	product, err := s.catalog.GetProductBySKU(ctx, actor.BusinessID, sku)
	if err != nil {
		return nil, domain.Cart{}, err
	}
	if product == nil {
		return nil, domain.Cart{}, ErrProductNotFound
	}
	if err := s.addOne(ctx, actor, *product); err != nil {
		return nil, domain.Cart{}, err
	}

	cart, err := s.Get(ctx, actor)
	if err != nil {
		return nil, domain.Cart{}, err
	}
	return product, cart, nil
}

// UpdateQuantity moves a line's quantity by delta. A result of zero or less
// leaves the line as it is; removing a line is done with Remove. Only
// increases are checked against available stock.
func (s *CartService) UpdateQuantity(ctx context.Context, actor domain.Actor, productID string, delta int) (domain.Cart, error) {
	items, err := s.carts.CartItems(ctx, actor.CartKey())
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	current, ok := items[productID]
	if !ok {
		return domain.Cart{}, ErrNotInCart
	}

	quantity := current + delta
	if quantity <= 0 || delta == 0 {
		return s.Get(ctx, actor)
	}

	product, err := s.catalog.GetProduct(ctx, actor.BusinessID, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if product == nil {
		if err := s.carts.RemoveCartItem(ctx, actor.CartKey(), productID); err != nil {
			return domain.Cart{}, err
		}
		return domain.Cart{}, ErrProductNotFound
	}

	available, err := s.available(ctx, *product)
	if err != nil {
		return domain.Cart{}, err
	}
	if delta > 0 && quantity > available {
		return domain.Cart{}, ErrNotEnoughStock
	}

	if err := s.carts.SetCartQuantity(ctx, actor.CartKey(), productID, quantity); err != nil {
		return domain.Cart{}, fmt.Errorf("update cart: %w", err)
	}
	return s.Get(ctx, actor)
}

func (s *CartService) Remove(ctx context.Context, actor domain.Actor, productID string) (domain.Cart, error) {
	if err := s.carts.RemoveCartItem(ctx, actor.CartKey(), productID); err != nil {
		return domain.Cart{}, fmt.Errorf("remove from cart: %w", err)
	}
	return s.Get(ctx, actor)
}

func (s *CartService) Clear(ctx context.Context, actor domain.Actor) error {
	if err := s.carts.ClearCart(ctx, actor.CartKey()); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *CartService) addOne(ctx context.Context, actor domain.Actor, product domain.Product) error {
	available, err := s.available(ctx, product)
	if err != nil {
		return err
	}
	if available <= 0 {
		return ErrOutOfStock
	}

	items, err := s.carts.CartItems(ctx, actor.CartKey())
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	current := items[product.ID]
	if current >= available {
		return ErrNotEnoughStock
	}

	if err := s.carts.SetCartQuantity(ctx, actor.CartKey(), product.ID, current+1); err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}

// available prefers the cached stock, which already excludes reservations
// held by sales the workers have not persisted yet.
func (s *CartService) available(ctx context.Context, product domain.Product) (int, error) {
	stock, ok, err := s.cache.GetStock(ctx, product.ID)
	if err != nil {
		return 0, fmt.Errorf("get stock for %s: %w", product.ID, err)
	}
	if !ok {
		return product.Stock, nil
	}
	return stock, nil
}
