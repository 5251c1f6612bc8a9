package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProductStockStatus(t *testing.T) {
	tests := []struct {
		stock    int
		status   StockStatus
		critical bool
	}{
		{stock: -1, status: StockStatusOutOfStock, critical: true},
		{stock: 0, status: StockStatusOutOfStock, critical: true},
		{stock: 5, status: StockStatusLowStock, critical: true},
		{stock: 10, status: StockStatusLowStock, critical: false},
		{stock: 11, status: StockStatusActive, critical: false},
	}

	for _, tt := range tests {
		p := Product{Stock: tt.stock}
		assert.Equal(t, tt.status, p.StockStatus(), "stock %d", tt.stock)
		assert.Equal(t, tt.critical, p.IsCritical(), "stock %d", tt.stock)
	}
}

func TestCartTotals(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Product: Product{ID: "a", Price: decimal.RequireFromString("1250")}, Quantity: 2},
		{Product: Product{ID: "b", Price: decimal.RequireFromString("350.50")}, Quantity: 3},
	}}

	assert.True(t, cart.Total().Equal(decimal.RequireFromString("3551.50")), "total %s", cart.Total())
	assert.Equal(t, 5, cart.Count())
	assert.False(t, cart.IsEmpty())

	item, ok := cart.Find("b")
	assert.True(t, ok)
	assert.Equal(t, 3, item.Quantity)

	_, ok = cart.Find("missing")
	assert.False(t, ok)
	assert.True(t, Cart{}.Total().IsZero())
}

func TestParsePaymentMethod(t *testing.T) {
	m, ok := ParsePaymentMethod(" card ")
	assert.True(t, ok)
	assert.Equal(t, PaymentCard, m)

	_, ok = ParsePaymentMethod("bitcoin")
	assert.False(t, ok)
}

func TestRoleCanManage(t *testing.T) {
	assert.True(t, RoleSuperAdmin.CanManage())
	assert.True(t, RoleAdmin.CanManage())
	assert.False(t, RoleUser.CanManage())
	assert.False(t, Role("owner").Valid())
}
