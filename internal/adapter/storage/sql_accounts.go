package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/stockflow/internal/core/domain"
)

func (a *SQLAdapter) CreateBusiness(ctx context.Context, b domain.Business, owner domain.User) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO businesses (id, name, phone, email, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Phone, b.Email, nullString(b.Address), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert business: %w", err)
	}

	if err := insertUser(ctx, tx, owner); err != nil {
		return err
	}

	return tx.Commit()
}

func (a *SQLAdapter) GetBusiness(ctx context.Context, id string) (*domain.Business, error) {
	var (
		b       domain.Business
		address sql.NullString
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, address, created_at
		FROM businesses WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &b.Phone, &b.Email, &address, &b.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query business: %w", err)
	}
	b.Address = address.String
	return &b, nil
}

const userColumns = `id, business_id, name, email, password_hash, role, created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(&u.ID, &u.BusinessID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	u.Role = domain.Role(role)
	return u, err
}

func (a *SQLAdapter) getUser(ctx context.Context, where string, arg string) (*domain.User, error) {
	u, err := scanUser(a.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (a *SQLAdapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return a.getUser(ctx, `id = ?`, id)
}

func (a *SQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return a.getUser(ctx, `email = ?`, email)
}

func (a *SQLAdapter) ListUsers(ctx context.Context, businessID string) ([]domain.User, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE business_id = ?
		ORDER BY created_at, name`, businessID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (a *SQLAdapter) CreateUser(ctx context.Context, u domain.User) error {
	return insertUser(ctx, a.db, u)
}

func (a *SQLAdapter) DeleteUser(ctx context.Context, businessID, id string) error {
	result, err := a.db.ExecContext(ctx, `
		DELETE FROM users WHERE business_id = ? AND id = ?`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(result)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, u domain.User) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, business_id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.BusinessID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
