package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

type memorySession struct {
	session   domain.Session
	expiresAt time.Time
}

// MemoryCache is the in-process stand-in for RedisAdapter, used when no
// Redis address is configured.
type MemoryCache struct {
	mu          sync.Mutex
	stock       map[string]int
	idempotency map[string]time.Time
	carts       map[string]map[string]int
	sessions    map[string]memorySession
	now         func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		stock:       make(map[string]int),
		idempotency: make(map[string]time.Time),
		carts:       make(map[string]map[string]int),
		sessions:    make(map[string]memorySession),
		now:         time.Now,
	}
}

func (m *MemoryCache) ReserveStock(ctx context.Context, lines []port.StockLine) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, line := range lines {
		current, ok := m.stock[line.ProductID]
		if !ok || current < line.Quantity {
			return false, nil
		}
	}
	for _, line := range lines {
		m.stock[line.ProductID] -= line.Quantity
	}
	return true, nil
}

func (m *MemoryCache) ReleaseStock(ctx context.Context, lines []port.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, line := range lines {
		m.stock[line.ProductID] += line.Quantity
	}
	return nil
}

func (m *MemoryCache) SetStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

func (m *MemoryCache) AdjustStock(ctx context.Context, productID string, delta int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[productID]; !ok {
		return false, nil
	}
	m.stock[productID] += delta
	return true, nil
}

func (m *MemoryCache) GetStock(ctx context.Context, productID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock, ok := m.stock[productID]
	return stock, ok, nil
}

func (m *MemoryCache) DeleteStock(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, productID)
	return nil
}

func (m *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.idempotency[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.idempotency[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

func (m *MemoryCache) CartItems(ctx context.Context, cartKey string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make(map[string]int, len(m.carts[cartKey]))
	for productID, qty := range m.carts[cartKey] {
		items[productID] = qty
	}
	return items, nil
}

func (m *MemoryCache) SetCartQuantity(ctx context.Context, cartKey, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartKey]
	if !ok {
		cart = make(map[string]int)
		m.carts[cartKey] = cart
	}
	cart[productID] = quantity
	return nil
}

func (m *MemoryCache) RemoveCartItem(ctx context.Context, cartKey, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts[cartKey], productID)
	return nil
}

func (m *MemoryCache) ClearCart(ctx context.Context, cartKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, cartKey)
	return nil
}

func (m *MemoryCache) SaveSession(ctx context.Context, session domain.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = memorySession{session: session, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryCache) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.sessions, token)
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (m *MemoryCache) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryCache) Ping(ctx context.Context) error {
	return nil
}
