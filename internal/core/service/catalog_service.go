package service

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

//go:embed seed/demo_catalog.yaml
var demoCatalog []byte

type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// ProductInput carries create and update fields. On update, empty strings and
// nil pointers leave the stored value unchanged.
type ProductInput struct {
	Name       string           `json:"name"`
	SKU        string           `json:"sku"`
	CategoryID string           `json:"category_id"`
	Price      *decimal.Decimal `json:"price"`
	Cost       *decimal.Decimal `json:"cost"`
	Stock      *int             `json:"stock"`
	Image      string           `json:"image"`
}

type CatalogService struct {
	catalog port.CatalogRepository
	cache   port.CacheRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewCatalogService(catalog port.CatalogRepository, cache port.CacheRepository, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		cache:   cache,
		log:     log,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *CatalogService) ListCategories(ctx context.Context, actor domain.Actor) ([]domain.Category, error) {
	return s.catalog.ListCategories(ctx, actor.BusinessID)
}

func (s *CatalogService) CreateCategory(ctx context.Context, actor domain.Actor, in CategoryInput) (*domain.Category, error) {
	if !actor.Role.CanManage() {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	now := s.now()
	category := domain.Category{
		ID:         uuid.NewString(),
		BusinessID: actor.BusinessID,
		Name:       name,
		Color:      orDefault(in.Color, domain.DefaultCategoryColor),
		Icon:       orDefault(in.Icon, domain.DefaultCategoryIcon),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.catalog.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, actor domain.Actor, id string, in CategoryInput) (*domain.Category, error) {
	if !actor.Role.CanManage() {
		return nil, ErrForbidden
	}
	category, err := s.catalog.GetCategory(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}

	category.Name = orDefault(in.Name, category.Name)
	category.Color = orDefault(in.Color, category.Color)
	category.Icon = orDefault(in.Icon, category.Icon)
	category.UpdatedAt = s.now()

	if err := s.catalog.UpdateCategory(ctx, *category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.Role.CanManage() {
		return ErrForbidden
	}
	inUse, err := s.catalog.CountProductsInCategory(ctx, actor.BusinessID, id)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return ErrCategoryInUse
	}

	err = s.catalog.DeleteCategory(ctx, actor.BusinessID, id)
	if errors.Is(err, port.ErrNotFound) {
		return ErrCategoryNotFound
	}
	return err
}

func (s *CatalogService) ListProducts(ctx context.Context, actor domain.Actor, filter port.ProductFilter) ([]domain.Product, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	return s.catalog.ListProducts(ctx, actor.BusinessID, filter)
}

func (s *CatalogService) GetProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	product, err := s.catalog.GetProduct(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// LookupSKU resolves a scanned or typed SKU to a product.
func (s *CatalogService) LookupSKU(ctx context.Context, actor domain.Actor, sku string) (*domain.Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, ErrProductNotFound
	}
	product, err := s.catalog.GetProductBySKU(ctx, actor.BusinessID, sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if !actor.Role.CanManage() {
		return nil, ErrForbidden
	}

	now := s.now()
	product := domain.Product{
		ID:         uuid.NewString(),
		BusinessID: actor.BusinessID,
		Name:       strings.TrimSpace(in.Name),
		SKU:        strings.TrimSpace(in.SKU),
		Price:      decimal.Zero,
		Cost:       decimal.Zero,
		Image:      orDefault(in.Image, domain.DefaultProductImage),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if product.SKU == "" {
		product.SKU = fmt.Sprintf("SKU-%d", now.UnixMilli())
	}
	if err := s.applyProductInput(ctx, &product, in); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueSKU(ctx, product); err != nil {
		return nil, err
	}

	if err := s.catalog.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	if err := s.cache.SetStock(ctx, product.ID, product.Stock); err != nil {
		return nil, fmt.Errorf("mirror stock for %s: %w", product.SKU, err)
	}
	s.log.Info().Str("product_id", product.ID).Str("sku", product.SKU).Msg("product created")
	return &product, nil
}

// UpdateProduct edits a product. A new stock figure is applied as the
// difference from the stored stock, so units reserved by sales still waiting
// for a worker are taken off the new figure too.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor domain.Actor, id string, in ProductInput) (*domain.Product, error) {
	if !actor.Role.CanManage() {
		return nil, ErrForbidden
	}
	product, err := s.catalog.GetProduct(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	stored := product.Stock

	if name := strings.TrimSpace(in.Name); name != "" {
		product.Name = name
	}
	if sku := strings.TrimSpace(in.SKU); sku != "" {
		product.SKU = sku
	}
	product.Image = orDefault(in.Image, product.Image)
	product.UpdatedAt = s.now()
	if err := s.applyProductInput(ctx, product, in); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueSKU(ctx, *product); err != nil {
		return nil, err
	}

	if delta := product.Stock - stored; in.Stock != nil && delta != 0 {
		if err := s.adjustStock(ctx, product.BusinessID, product.ID, delta); err != nil {
			return nil, err
		}
	}
	if err := s.catalog.UpdateProduct(ctx, *product); err != nil {
		return nil, err
	}

	updated, err := s.catalog.GetProduct(ctx, actor.BusinessID, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrProductNotFound
	}
	return updated, nil
}

// adjustStock moves stored and cached stock by the same delta.
func (s *CatalogService) adjustStock(ctx context.Context, businessID, id string, delta int) error {
	stock, err := s.catalog.AdjustStock(ctx, businessID, id, delta)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return ErrProductNotFound
	case errors.Is(err, port.ErrStockConflict):
		return fmt.Errorf("%w: stock changed while editing, reload and try again", ErrValidation)
	case err != nil:
		return err
	}

	cached, err := s.cache.AdjustStock(ctx, id, delta)
	if err != nil {
		return fmt.Errorf("mirror stock for %s: %w", id, err)
	}
	if !cached {
		if err := s.cache.SetStock(ctx, id, stock); err != nil {
			return fmt.Errorf("mirror stock for %s: %w", id, err)
		}
	}
	s.log.Info().Str("product_id", id).Int("delta", delta).Int("stock", stock).Msg("stock adjusted")
	return nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.Role.CanManage() {
		return ErrForbidden
	}
	err := s.catalog.DeleteProduct(ctx, actor.BusinessID, id)
	if errors.Is(err, port.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return s.cache.DeleteStock(ctx, id)
}

// LowStock lists products at or below the low-stock threshold, lowest first.
func (s *CatalogService) LowStock(ctx context.Context, actor domain.Actor, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.catalog.ListLowStock(ctx, actor.BusinessID, domain.LowStockThreshold, limit)
}

// SyncStock copies the stored stock of every product into the cache. It runs
// at startup, before any checkout is accepted.
func (s *CatalogService) SyncStock(ctx context.Context) (int, error) {
	levels, err := s.catalog.StockLevels(ctx)
	if err != nil {
		return 0, err
	}
	for productID, stock := range levels {
		if err := s.cache.SetStock(ctx, productID, stock); err != nil {
			return 0, fmt.Errorf("sync stock for %s: %w", productID, err)
		}
	}
	return len(levels), nil
}

type seedCatalog struct {
	Categories []struct {
		Name  string `yaml:"name"`
		Color string `yaml:"color"`
		Icon  string `yaml:"icon"`
	} `yaml:"categories"`
	Products []struct {
		Name     string `yaml:"name"`
		SKU      string `yaml:"sku"`
		Category string `yaml:"category"`
		Price    string `yaml:"price"`
		Cost     string `yaml:"cost"`
		Stock    int    `yaml:"stock"`
	} `yaml:"products"`
}

// SeedDemoCatalog loads the bundled demo categories and products into the
// business. Products whose SKU already exists are skipped.
func (s *CatalogService) SeedDemoCatalog(ctx context.Context, businessID string) (int, error) {
	var seed seedCatalog
	if err := yaml.Unmarshal(demoCatalog, &seed); err != nil {
		return 0, fmt.Errorf("parse demo catalog: %w", err)
	}

	actor := domain.Actor{BusinessID: businessID, Role: domain.RoleSuperAdmin}

	existing, err := s.catalog.ListCategories(ctx, businessID)
	if err != nil {
		return 0, err
	}
	categoryIDs := make(map[string]string, len(seed.Categories))
	for _, c := range existing {
		categoryIDs[c.Name] = c.ID
	}
	for _, c := range seed.Categories {
		if _, ok := categoryIDs[c.Name]; ok {
			continue
		}
		category, err := s.CreateCategory(ctx, actor, CategoryInput{Name: c.Name, Color: c.Color, Icon: c.Icon})
		if err != nil {
			return 0, fmt.Errorf("seed category %s: %w", c.Name, err)
		}
		categoryIDs[c.Name] = category.ID
	}

	created := 0
	for _, p := range seed.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return created, fmt.Errorf("seed product %s price: %w", p.SKU, err)
		}
		cost, err := decimal.NewFromString(p.Cost)
		if err != nil {
			return created, fmt.Errorf("seed product %s cost: %w", p.SKU, err)
		}
		stock := p.Stock

		_, err = s.CreateProduct(ctx, actor, ProductInput{
			Name:       p.Name,
			SKU:        p.SKU,
			CategoryID: categoryIDs[p.Category],
			Price:      &price,
			Cost:       &cost,
			Stock:      &stock,
		})
		if errors.Is(err, ErrDuplicateSKU) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed product %s: %w", p.SKU, err)
		}
		created++
	}

	s.log.Info().Str("business_id", businessID).Int("products", created).Msg("demo catalog seeded")
	return created, nil
}

func (s *CatalogService) applyProductInput(ctx context.Context, p *domain.Product, in ProductInput) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return fmt.Errorf("%w: price must not be negative", ErrValidation)
		}
		p.Price = *in.Price
	}
	if in.Cost != nil {
		if in.Cost.IsNegative() {
			return fmt.Errorf("%w: cost must not be negative", ErrValidation)
		}
		p.Cost = *in.Cost
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return fmt.Errorf("%w: stock must not be negative", ErrValidation)
		}
		p.Stock = *in.Stock
	}

	if categoryID := strings.TrimSpace(in.CategoryID); categoryID != "" {
		category, err := s.catalog.GetCategory(ctx, p.BusinessID, categoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return ErrCategoryNotFound
		}
		p.CategoryID = category.ID
		p.CategoryName = category.Name
	}
	if p.CategoryID == "" {
		p.CategoryName = domain.UncategorizedName
	}
	return nil
}

func (s *CatalogService) ensureUniqueSKU(ctx context.Context, p domain.Product) error {
	other, err := s.catalog.GetProductBySKU(ctx, p.BusinessID, p.SKU)
	if err != nil {
		return err
	}
	if other != nil && other.ID != p.ID {
		return ErrDuplicateSKU
	}
	return nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
