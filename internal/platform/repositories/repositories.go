package repositories

import (
	"context"
	"database/sql"

	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
)

type TenantRepository struct {
	db database.DBTX
}

func NewTenantRepository(db database.DBTX) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO tenants (name, created_at) VALUES (?, ?)
		RETURNING tenant_id
	`, tenant.Name, tenant.CreatedAt).Scan(&tenant.TenantID)
}

func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, name, created_at FROM tenants WHERE tenant_id = ?
	`, id).Scan(&tenant.TenantID, &tenant.Name, &tenant.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return tenant, nil
}

type UserRepository struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (tenant_id, email, name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING user_id
	`, user.TenantID, user.Email, user.Name, user.PasswordHash, user.Role, user.CreatedAt).Scan(&user.UserID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns the non-deleted user with the given id, or nil.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, tenant_id, email, name, password_hash, role, created_at, deleted_at
		FROM users WHERE user_id = ? AND deleted_at IS NULL
	`, id)
	return scanUser(row)
}

// GetByEmail returns the non-deleted user with the given email, or nil.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, tenant_id, email, name, password_hash, role, created_at, deleted_at
		FROM users WHERE email = ? AND deleted_at IS NULL
	`, email)
	return scanUser(row)
}

func scanUser(s scanner) (*models.User, error) {
	user := &models.User{}
	var deletedAt sql.NullInt64
	err := s.Scan(&user.UserID, &user.TenantID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	user.DeletedAt = nullableInt64(deletedAt)
	return user, nil
}
