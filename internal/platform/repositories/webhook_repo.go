package repositories

import (
	"context"
	"database/sql"

	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
)

const webhookColumns = `webhook_id, tenant_id, endpoint, auth_header, type, name, "index", created_at`

type WebhookRepository struct {
	db database.DBTX
}

func NewWebhookRepository(db database.DBTX) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// WebhookUpdate lists the columns an update may write. Endpoint, AuthHeader
// and Name are always written (a nil AuthHeader stores NULL); Index is only
// written when set.
type WebhookUpdate struct {
	Endpoint   string
	AuthHeader *string
	Name       string
	Index      *int
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO webhooks (tenant_id, endpoint, auth_header, type, name, name_folded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+webhookColumns,
		webhook.TenantID, webhook.Endpoint, nullString(webhook.AuthHeader), webhook.Type, webhook.Name, foldName(webhook.Name), webhook.CreatedAt)

	created, err := scanWebhook(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	*webhook = *created
	return nil
}

// GetByID resolves a webhook regardless of tenant. Soft-deleted webhooks are
// reported as missing (nil, nil).
func (r *WebhookRepository) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks WHERE webhook_id = ? AND deleted_at IS NULL
	`, id)
	return scanWebhookOrNil(row)
}

func (r *WebhookRepository) Get(ctx context.Context, tenantID, id int64, webhookType string) (*models.Webhook, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE webhook_id = ? AND tenant_id = ? AND type = ? AND deleted_at IS NULL
	`, id, tenantID, webhookType)
	return scanWebhookOrNil(row)
}

func (r *WebhookRepository) ListByType(ctx context.Context, tenantID int64, webhookType string) ([]*models.Webhook, error) {
	return r.list(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE tenant_id = ? AND type = ? AND deleted_at IS NULL
		ORDER BY "index", webhook_id
	`, tenantID, webhookType)
}

func (r *WebhookRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Webhook, error) {
	return r.list(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE tenant_id = ? AND deleted_at IS NULL
		ORDER BY "index", webhook_id
	`, tenantID)
}

// Update writes the changes to a non-deleted webhook and returns the stored
// row, or nil when no such webhook exists.
func (r *WebhookRepository) Update(ctx context.Context, tenantID, id int64, changes WebhookUpdate) (*models.Webhook, error) {
	var index sql.NullInt64
	if changes.Index != nil {
		index = sql.NullInt64{Int64: int64(*changes.Index), Valid: true}
	}
	var authHeader sql.NullString
	if changes.AuthHeader != nil {
		authHeader = sql.NullString{String: *changes.AuthHeader, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE webhooks
		SET endpoint = ?, auth_header = ?, name = ?, name_folded = ?, "index" = COALESCE(?, "index")
		WHERE tenant_id = ? AND webhook_id = ? AND deleted_at IS NULL
		RETURNING `+webhookColumns,
		changes.Endpoint, authHeader, changes.Name, foldName(changes.Name), index, tenantID, id)

	webhook, err := scanWebhookOrNil(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return webhook, err
}

// SoftDelete marks the webhook deleted. It reports false when the webhook
// was missing or already deleted.
func (r *WebhookRepository) SoftDelete(ctx context.Context, tenantID, id int64, deletedAt int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhooks SET deleted_at = ?
		WHERE tenant_id = ? AND webhook_id = ? AND deleted_at IS NULL
	`, deletedAt, tenantID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExistsByName matches names case-insensitively among the tenant's
// non-deleted webhooks of one type. excludeID of 0 excludes nothing.
func (r *WebhookRepository) ExistsByName(ctx context.Context, tenantID int64, name string, excludeID int64, webhookType string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM webhooks
			WHERE name_folded = ?
			  AND deleted_at IS NULL
			  AND tenant_id = ?
			  AND type = ?
			  AND webhook_id != ?
		)
	`, foldName(name), tenantID, webhookType, excludeID).Scan(&exists)
	return exists, err
}

func (r *WebhookRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webhooks := []*models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func scanWebhook(s scanner) (*models.Webhook, error) {
	var w models.Webhook
	var authHeader sql.NullString

	if err := s.Scan(&w.WebhookID, &w.TenantID, &w.Endpoint, &authHeader, &w.Type, &w.Name, &w.Index, &w.CreatedAt); err != nil {
		return nil, err
	}
	if authHeader.Valid {
		w.AuthHeader = authHeader.String
	}
	return &w, nil
}

func scanWebhookOrNil(s scanner) (*models.Webhook, error) {
	w, err := scanWebhook(s)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
