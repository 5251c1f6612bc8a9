package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusFailed    SaleStatus = "failed"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "Cash"
	PaymentCard     PaymentMethod = "Card"
	PaymentTransfer PaymentMethod = "Transfer"
)

var paymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentTransfer}

// ParsePaymentMethod matches s case-insensitively against the accepted methods.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.TrimSpace(s)
	for _, m := range paymentMethods {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

type Sale struct {
	ID            string          `json:"id"`
	BusinessID    string          `json:"business_id"`
	UserID        string          `json:"user_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        SaleStatus      `json:"status"`
	Items         []SaleItem      `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleItem struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type SalesSummary struct {
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

type TopProduct struct {
	Name string `json:"name"`
	Sold int    `json:"sold"`
}

type DashboardStats struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalProducts int             `json:"total_products"`
	TodaySales    int             `json:"today_sales"`
	LowStockCount int             `json:"low_stock_count"`
	RecentSales   []Sale          `json:"recent_sales"`
	LowStock      []Product       `json:"low_stock"`
	TopProducts   []TopProduct    `json:"top_products"`
}
