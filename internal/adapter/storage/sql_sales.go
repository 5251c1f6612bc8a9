package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

func (a *SQLAdapter) CreateSale(ctx context.Context, sale domain.Sale) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, business_id, user_id, subtotal, discount, total, payment_method, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.BusinessID, sale.UserID, sale.Subtotal, sale.Discount, sale.Total,
		string(sale.PaymentMethod), string(sale.Status), sale.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	now := a.now()
	for _, item := range sale.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, sale.ID, item.ProductID, item.ProductName, item.Quantity, item.Price,
		)
		if err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, updated_at = ?
			WHERE business_id = ? AND id = ? AND stock >= ?`,
			item.Quantity, now, sale.BusinessID, item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("product %s: %w", item.ProductID, port.ErrStockConflict)
		}
	}

	return tx.Commit()
}

const saleColumns = `id, business_id, user_id, subtotal, discount, total, payment_method, status, created_at`

func scanSale(row rowScanner) (domain.Sale, error) {
	var (
		s       domain.Sale
		payment string
		status  string
	)
	err := row.Scan(&s.ID, &s.BusinessID, &s.UserID, &s.Subtotal, &s.Discount, &s.Total,
		&payment, &status, &s.CreatedAt)
	s.PaymentMethod = domain.PaymentMethod(payment)
	s.Status = domain.SaleStatus(status)
	return s, err
}

func (a *SQLAdapter) GetSale(ctx context.Context, businessID, id string) (*domain.Sale, error) {
	sale, err := scanSale(a.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales WHERE business_id = ? AND id = ?`, businessID, id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sale: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, price
		FROM sale_items WHERE sale_id = ?
		ORDER BY product_name`, id)
	if err != nil {
		return nil, fmt.Errorf("query sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (a *SQLAdapter) ListSales(ctx context.Context, businessID string, limit, offset int) ([]domain.Sale, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales WHERE business_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, businessID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (a *SQLAdapter) SalesSummary(ctx context.Context, businessID string, since time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0), COUNT(*)
		FROM sales WHERE business_id = ? AND created_at >= ?`,
		businessID, since.UTC(),
	).Scan(&summary.Revenue, &summary.Count)
	if err != nil {
		return summary, fmt.Errorf("query sales summary: %w", err)
	}
	return summary, nil
}

func (a *SQLAdapter) TopProducts(ctx context.Context, businessID string, limit int) ([]domain.TopProduct, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT si.product_name, SUM(si.quantity) AS sold
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.business_id = ?
		GROUP BY si.product_name
		ORDER BY sold DESC, si.product_name
		LIMIT ?`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer rows.Close()

	var top []domain.TopProduct
	for rows.Next() {
		var tp domain.TopProduct
		if err := rows.Scan(&tp.Name, &tp.Sold); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		top = append(top, tp)
	}
	return top, rows.Err()
}
