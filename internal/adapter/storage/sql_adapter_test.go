package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

func newSQLiteAdapter(t *testing.T) *SQLAdapter {
	t.Helper()

	ctx := context.Background()
	db, err := OpenSQL(ctx, DialectSQLite, filepath.Join(t.TempDir(), "stockflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adapter := NewSQLAdapter(db, DialectSQLite)
	require.NoError(t, adapter.Migrate(ctx))
	return adapter
}

func seedBusiness(t *testing.T, a *SQLAdapter, email string) (domain.Business, domain.User) {
	t.Helper()

	now := time.Now().UTC()
	business := domain.Business{
		ID:        uuid.NewString(),
		Name:      "Mama Put Stores",
		Phone:     "+234 800 000 0000",
		Email:     email,
		CreatedAt: now,
	}
	owner := domain.User{
		ID:           uuid.NewString(),
		BusinessID:   business.ID,
		Name:         "Ada",
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleSuperAdmin,
		CreatedAt:    now,
	}
	require.NoError(t, a.CreateBusiness(context.Background(), business, owner))
	return business, owner
}

func seedProduct(t *testing.T, a *SQLAdapter, businessID, categoryID, sku string, price string, stock int) domain.Product {
	t.Helper()

	now := time.Now().UTC()
	p := domain.Product{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Name:       "Product " + sku,
		SKU:        sku,
		CategoryID: categoryID,
		Price:      decimal.RequireFromString(price),
		Cost:       decimal.RequireFromString(price).Div(decimal.NewFromInt(2)),
		Stock:      stock,
		Image:      domain.DefaultProductImage,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, a.CreateProduct(context.Background(), p))
	return p
}

func TestMigrate_Idempotent(t *testing.T) {
	a := newSQLiteAdapter(t)
	require.NoError(t, a.Migrate(context.Background()))
}

func TestCategories_CRUD(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	business, _ := seedBusiness(t, a, "owner@example.com")

	now := time.Now().UTC()
	c := domain.Category{
		ID:         uuid.NewString(),
		BusinessID: business.ID,
		Name:       "Electronics",
		Color:      domain.DefaultCategoryColor,
		Icon:       domain.DefaultCategoryIcon,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, a.CreateCategory(ctx, c))

	got, err := a.GetCategory(ctx, business.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Electronics", got.Name)

	c.Name = "Gadgets"
	require.NoError(t, a.UpdateCategory(ctx, c))

	list, err := a.ListCategories(ctx, business.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Gadgets", list[0].Name)

	seedProduct(t, a, business.ID, c.ID, "GAD-1", "100", 3)
	n, err := a.CountProductsInCategory(ctx, business.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, a.DeleteCategory(ctx, business.ID, c.ID))
	assert.ErrorIs(t, a.DeleteCategory(ctx, business.ID, c.ID), port.ErrNotFound)

	missing, err := a.GetCategory(ctx, business.ID, c.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProducts_ListFilterAndLookup(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	business, _ := seedBusiness(t, a, "owner@example.com")
	other, _ := seedBusiness(t, a, "other@example.com")

	now := time.Now().UTC()
	food := domain.Category{ID: uuid.NewString(), BusinessID: business.ID, Name: "Food & Drinks",
		Color: "#10b981", Icon: "x", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, a.CreateCategory(ctx, food))

	garri := seedProduct(t, a, business.ID, food.ID, "IJ-GAR-015", "850", 120)
	seedProduct(t, a, business.ID, "", "ITL-A60", "45000", 4)
	seedProduct(t, a, other.ID, "", "IJ-GAR-999", "850", 1)

	all, err := a.ListProducts(ctx, business.ID, port.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bySKU, err := a.ListProducts(ctx, business.ID, port.ProductFilter{Query: "ij-gar"})
	require.NoError(t, err)
	require.Len(t, bySKU, 1)
	assert.Equal(t, garri.ID, bySKU[0].ID)
	assert.Equal(t, "Food & Drinks", bySKU[0].CategoryName)
	assert.True(t, bySKU[0].Price.Equal(decimal.NewFromInt(850)))

	byCategory, err := a.ListProducts(ctx, business.ID, port.ProductFilter{CategoryID: food.ID})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	wildcard, err := a.ListProducts(ctx, business.ID, port.ProductFilter{Query: "%"})
	require.NoError(t, err)
	assert.Empty(t, wildcard)

	phone, err := a.GetProductBySKU(ctx, business.ID, "ITL-A60")
	require.NoError(t, err)
	require.NotNil(t, phone)
	assert.Equal(t, domain.UncategorizedName, phone.CategoryName)

	foreign, err := a.GetProductBySKU(ctx, business.ID, "IJ-GAR-999")
	require.NoError(t, err)
	assert.Nil(t, foreign)

	low, err := a.ListLowStock(ctx, business.ID, domain.LowStockThreshold, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "ITL-A60", low[0].SKU)

	lowCount, err := a.CountLowStock(ctx, business.ID, domain.LowStockThreshold)
	require.NoError(t, err)
	assert.Equal(t, 1, lowCount)

	levels, err := a.StockLevels(ctx)
	require.NoError(t, err)
	assert.Len(t, levels, 3)
	assert.Equal(t, 120, levels[garri.ID])
}

func TestUpdateProduct_LeavesStock(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	business, _ := seedBusiness(t, a, "owner@example.com")
	rice := seedProduct(t, a, business.ID, "", "MG-RICE-25", "21500", 18)

	stale := rice
	stale.Stock = 99
	stale.Name = "Mama Gold Rice 25kg"
	require.NoError(t, a.UpdateProduct(ctx, stale))

	got, err := a.GetProduct(ctx, business.ID, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mama Gold Rice 25kg", got.Name)
	assert.Equal(t, 18, got.Stock)
}

func TestAdjustStock(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	business, _ := seedBusiness(t, a, "owner@example.com")
	rice := seedProduct(t, a, business.ID, "", "MG-RICE-25", "21500", 18)

	stock, err := a.AdjustStock(ctx, business.ID, rice.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 25, stock)

	stock, err = a.AdjustStock(ctx, business.ID, rice.ID, -25)
	require.NoError(t, err)
	assert.Zero(t, stock)

	stock, err = a.AdjustStock(ctx, business.ID, rice.ID, -1)
	assert.ErrorIs(t, err, port.ErrStockConflict)
	assert.Zero(t, stock)

	_, err = a.AdjustStock(ctx, business.ID, "missing", 1)
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestCreateSale_Success(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	business, owner := seedBusiness(t, a, "owner@example.com")
	rice := seedProduct(t, a, business.ID, "", "MG-RICE-25", "21500", 18)
	malta := seedProduct(t, a, business.ID, "", "MG-CAN-033", "350", 200)

	sale := domain.Sale{
		ID:            uuid.NewString(),
		BusinessID:    business.ID,
		UserID:        owner.ID,
		Subtotal:      decimal.RequireFromString("44050"),
		Discount:      decimal.Zero,
		Total:         decimal.RequireFromString("44050"),
		PaymentMethod: domain.PaymentCash,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     time.Now().UTC(),
		Items: []domain.SaleItem{
			{ID: uuid.NewString(), ProductID: rice.ID, ProductName: rice.Name, Quantity: 2, Price: rice.Price},
			{ID: uuid.NewString(), ProductID: malta.ID, ProductName: malta.Name, Quantity: 3, Price: malta.Price},
		},
	}
	require.NoError(t, a.CreateSale(ctx, sale))

	got, err := a.GetSale(ctx, business.ID, sale.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, domain.PaymentCash, got.PaymentMethod)
	assert.True(t, got.Total.Equal(sale.Total))

	riceAfter, err := a.GetProduct(ctx, business.ID, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, riceAfter.Stock)

	summary, err := a.SalesSummary(ctx, business.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)
	assert.True(t, summary.Revenue.Equal(decimal.RequireFromString("44050")), "revenue %s", summary.Revenue)

	top, err := a.TopProducts(ctx, business.ID, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, malta.Name, top[0].Name)
	assert.Equal(t, 3, top[0].Sold)

	sales, err := a.ListSales(ctx, business.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestCreateSale_InsufficientStockRollsBack(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	business, owner := seedBusiness(t, a, "owner@example.com")
	plenty := seedProduct(t, a, business.ID, "", "PLENTY", "10", 50)
	empty := seedProduct(t, a, business.ID, "", "EMPTY", "10", 0)

	sale := domain.Sale{
		ID:            uuid.NewString(),
		BusinessID:    business.ID,
		UserID:        owner.ID,
		Subtotal:      decimal.NewFromInt(20),
		Total:         decimal.NewFromInt(20),
		PaymentMethod: domain.PaymentCard,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     time.Now().UTC(),
		Items: []domain.SaleItem{
			{ID: uuid.NewString(), ProductID: plenty.ID, ProductName: plenty.Name, Quantity: 1, Price: plenty.Price},
			{ID: uuid.NewString(), ProductID: empty.ID, ProductName: empty.Name, Quantity: 1, Price: empty.Price},
		},
	}

	err := a.CreateSale(ctx, sale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrStockConflict))

	got, err := a.GetSale(ctx, business.ID, sale.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	plentyAfter, err := a.GetProduct(ctx, business.ID, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, plentyAfter.Stock)
}

func TestAccounts(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	business, owner := seedBusiness(t, a, "owner@example.com")

	got, err := a.GetBusiness(ctx, business.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, business.Name, got.Name)

	byEmail, err := a.GetUserByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, owner.ID, byEmail.ID)
	assert.Equal(t, domain.RoleSuperAdmin, byEmail.Role)

	cashier := domain.User{
		ID:           uuid.NewString(),
		BusinessID:   business.ID,
		Name:         "Tunde",
		Email:        "tunde@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, a.CreateUser(ctx, cashier))

	dup := cashier
	dup.ID = uuid.NewString()
	assert.Error(t, a.CreateUser(ctx, dup))

	users, err := a.ListUsers(ctx, business.ID)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, a.DeleteUser(ctx, business.ID, cashier.ID))
	assert.ErrorIs(t, a.DeleteUser(ctx, business.ID, cashier.ID), port.ErrNotFound)

	gone, err := a.GetUser(ctx, cashier.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
