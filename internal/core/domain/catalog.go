package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LowStockThreshold      = 10
	CriticalStockThreshold = 5

	DefaultCategoryColor = "#6366f1"
	DefaultCategoryIcon  = "📁"
	DefaultProductImage  = "📦"
	UncategorizedName    = "Uncategorized"
)

type StockStatus string

const (
	StockStatusActive     StockStatus = "active"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

type Category struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Icon       string    `json:"icon"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Product struct {
	ID           string          `json:"id"`
	BusinessID   string          `json:"business_id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"`
	Stock        int             `json:"stock"`
	Image        string          `json:"image"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (p Product) StockStatus() StockStatus {
	switch {
	case p.Stock <= 0:
		return StockStatusOutOfStock
	case p.Stock <= LowStockThreshold:
		return StockStatusLowStock
	default:
		return StockStatusActive
	}
}

func (p Product) IsLowStock() bool {
	return p.Stock <= LowStockThreshold
}

// IsCritical reports stock at or below the critical threshold, which the
// low-stock alert flags ahead of the ordinary low-stock items.
func (p Product) IsCritical() bool {
	return p.Stock <= CriticalStockThreshold
}

// Margin is the per-unit profit at the current price and cost.
func (p Product) Margin() decimal.Decimal {
	return p.Price.Sub(p.Cost)
}
