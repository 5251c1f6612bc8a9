package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

const categoryColumns = `id, business_id, name, color, icon, created_at, updated_at`

func scanCategory(row rowScanner) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Color, &c.Icon, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (a *SQLAdapter) ListCategories(ctx context.Context, businessID string) ([]domain.Category, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories WHERE business_id = ?
		ORDER BY name`, businessID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (a *SQLAdapter) GetCategory(ctx context.Context, businessID, id string) (*domain.Category, error) {
	c, err := scanCategory(a.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories WHERE business_id = ? AND id = ?`, businessID, id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return &c, nil
}

func (a *SQLAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO categories (id, business_id, name, color, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BusinessID, c.Name, c.Color, c.Icon, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (a *SQLAdapter) UpdateCategory(ctx context.Context, c domain.Category) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, color = ?, icon = ?, updated_at = ?
		WHERE business_id = ? AND id = ?`,
		c.Name, c.Color, c.Icon, c.UpdatedAt, c.BusinessID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (a *SQLAdapter) DeleteCategory(ctx context.Context, businessID, id string) error {
	result, err := a.db.ExecContext(ctx, `
		DELETE FROM categories WHERE business_id = ? AND id = ?`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectAffected(result)
}

func (a *SQLAdapter) CountProductsInCategory(ctx context.Context, businessID, categoryID string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE business_id = ? AND category_id = ?`,
		businessID, categoryID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products in category: %w", err)
	}
	return n, nil
}

const productSelect = `
	SELECT p.id, p.business_id, p.name, p.sku, p.category_id, COALESCE(c.name, ''),
		p.price, p.cost, p.stock, p.image, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p          domain.Product
		categoryID sql.NullString
	)
	err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.SKU, &categoryID, &p.CategoryName,
		&p.Price, &p.Cost, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.CategoryID = categoryID.String
	if p.CategoryName == "" {
		p.CategoryName = domain.UncategorizedName
	}
	return p, nil
}

func (a *SQLAdapter) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (a *SQLAdapter) ListProducts(ctx context.Context, businessID string, filter port.ProductFilter) ([]domain.Product, error) {
	query := productSelect + ` WHERE p.business_id = ?`
	args := []any{businessID}

	if filter.Query != "" {
		query += ` AND (LOWER(p.name) LIKE ? ESCAPE '!' OR LOWER(p.sku) LIKE ? ESCAPE '!')`
		pattern := likePattern(filter.Query)
		args = append(args, pattern, pattern)
	}
	if filter.CategoryID != "" {
		query += ` AND p.category_id = ?`
		args = append(args, filter.CategoryID)
	}
	query += ` ORDER BY p.created_at, p.name`

	return a.queryProducts(ctx, query, args...)
}

func (a *SQLAdapter) getProduct(ctx context.Context, where string, args ...any) (*domain.Product, error) {
	p, err := scanProduct(a.db.QueryRowContext(ctx, productSelect+` WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (a *SQLAdapter) GetProduct(ctx context.Context, businessID, id string) (*domain.Product, error) {
	return a.getProduct(ctx, `p.business_id = ? AND p.id = ?`, businessID, id)
}

func (a *SQLAdapter) GetProductBySKU(ctx context.Context, businessID, sku string) (*domain.Product, error) {
	return a.getProduct(ctx, `p.business_id = ? AND p.sku = ?`, businessID, sku)
}

func (a *SQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO products (id, business_id, name, sku, category_id, price, cost, stock, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BusinessID, p.Name, p.SKU, nullString(p.CategoryID),
		p.Price, p.Cost, p.Stock, p.Image, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (a *SQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, sku = ?, category_id = ?, price = ?, cost = ?, image = ?, updated_at = ?
		WHERE business_id = ? AND id = ?`,
		p.Name, p.SKU, nullString(p.CategoryID), p.Price, p.Cost, p.Image, p.UpdatedAt,
		p.BusinessID, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (a *SQLAdapter) AdjustStock(ctx context.Context, businessID, id string, delta int) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, updated_at = ?
		WHERE business_id = ? AND id = ? AND stock + ? >= 0`,
		delta, a.now(), businessID, id, delta,
	)
	if err != nil {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE business_id = ? AND id = ?`, businessID, id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, port.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return stock, fmt.Errorf("product %s: %w", id, port.ErrStockConflict)
	}
	return stock, tx.Commit()
}

func (a *SQLAdapter) DeleteProduct(ctx context.Context, businessID, id string) error {
	result, err := a.db.ExecContext(ctx, `
		DELETE FROM products WHERE business_id = ? AND id = ?`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectAffected(result)
}

func (a *SQLAdapter) CountProducts(ctx context.Context, businessID string) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE business_id = ?`, businessID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (a *SQLAdapter) ListLowStock(ctx context.Context, businessID string, threshold, limit int) ([]domain.Product, error) {
	return a.queryProducts(ctx, productSelect+`
		WHERE p.business_id = ? AND p.stock <= ?
		ORDER BY p.stock, p.name
		LIMIT ?`, businessID, threshold, limit)
}

func (a *SQLAdapter) CountLowStock(ctx context.Context, businessID string, threshold int) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE business_id = ? AND stock <= ?`,
		businessID, threshold).Scan(&n); err != nil {
		return 0, fmt.Errorf("count low stock: %w", err)
	}
	return n, nil
}

func (a *SQLAdapter) StockLevels(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, stock FROM products`)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[string]int)
	for rows.Next() {
		var (
			id    string
			stock int
		)
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels[id] = stock
	}
	return levels, rows.Err()
}

func expectAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}
