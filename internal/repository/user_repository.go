package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trinislearning/hit339/internal/domain"
)

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, full_name, role, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Email, u.PasswordHash, u.FullName, string(u.Role), u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, normalizeEmail(email))
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, full_name, role, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
