package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/stockflow/internal/core/domain"
)

var (
	// ErrNotFound is returned by deletes that matched no row.
	ErrNotFound = errors.New("record not found")

	// ErrStockConflict is returned by CreateSale and AdjustStock when a change
	// would drive a product's stock below zero.
	ErrStockConflict = errors.New("stock conflict")
)

type ProductFilter struct {
	Query      string
	CategoryID string
}

type CatalogRepository interface {
	ListCategories(ctx context.Context, businessID string) ([]domain.Category, error)
	// GetCategory returns nil, nil when the category does not exist
	GetCategory(ctx context.Context, businessID, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) error
	UpdateCategory(ctx context.Context, category domain.Category) error
	DeleteCategory(ctx context.Context, businessID, id string) error
	CountProductsInCategory(ctx context.Context, businessID, categoryID string) (int, error)

	ListProducts(ctx context.Context, businessID string, filter ProductFilter) ([]domain.Product, error)
	// GetProduct returns nil, nil when the product does not exist
	GetProduct(ctx context.Context, businessID, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, businessID, sku string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) error
	// UpdateProduct writes every product field except stock
	UpdateProduct(ctx context.Context, product domain.Product) error
	// AdjustStock adds delta to the stored stock and returns the result
	AdjustStock(ctx context.Context, businessID, id string, delta int) (int, error)
	DeleteProduct(ctx context.Context, businessID, id string) error
	CountProducts(ctx context.Context, businessID string) (int, error)
	ListLowStock(ctx context.Context, businessID string, threshold, limit int) ([]domain.Product, error)
	CountLowStock(ctx context.Context, businessID string, threshold int) (int, error)

	// StockLevels returns stock for every product of every business, keyed by product ID
	StockLevels(ctx context.Context) (map[string]int, error)
}

type SaleRepository interface {
	// CreateSale persists the sale with its items and decrements product stock
	// in one transaction
	CreateSale(ctx context.Context, sale domain.Sale) error
	GetSale(ctx context.Context, businessID, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, businessID string, limit, offset int) ([]domain.Sale, error)
	SalesSummary(ctx context.Context, businessID string, since time.Time) (domain.SalesSummary, error)
	TopProducts(ctx context.Context, businessID string, limit int) ([]domain.TopProduct, error)
}

type AccountRepository interface {
	// CreateBusiness persists the business and its owner in one transaction
	CreateBusiness(ctx context.Context, business domain.Business, owner domain.User) error
	GetBusiness(ctx context.Context, id string) (*domain.Business, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, businessID string) ([]domain.User, error)
	CreateUser(ctx context.Context, user domain.User) error
	DeleteUser(ctx context.Context, businessID, id string) error
}
