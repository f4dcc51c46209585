package webhooks

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/url"
	"strings"

	"replayhub/internal/pkg/clock"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
	"replayhub/internal/platform/repositories"
)

var (
	ErrDuplicateName   = errors.Invalid("name already exists.")
	ErrWebhookNotFound = errors.NotFound("webhook not found")
	ErrInvalidEndpoint = errors.Invalid("endpoint must be an absolute http or https URL")
	ErrInvalidType     = errors.Invalid("unknown webhook type")
)

// Registration is the input of Register. An empty AuthHeader is stored as
// NULL; an empty Type means TypeWebhook.
type Registration struct {
	Endpoint   string
	AuthHeader string
	Type       string
	Name       string
}

// Changes is a full replace of the mutable columns: a nil AuthHeader clears
// the stored header and an empty Name clears the name. Index is left as is
// when nil.
type Changes struct {
	Endpoint   string
	AuthHeader *string
	Name       string
	Index      *int
}

// AddEditRequest is the upsert payload of the HTTP layer. A WebhookID
// selects an update, otherwise a new webhook of TypeWebhook is registered.
type AddEditRequest struct {
	WebhookID  *int64  `json:"webhookId"`
	Endpoint   string  `json:"endpoint"`
	AuthHeader *string `json:"authHeader"`
	Name       *string `json:"name"`
	Index      *int    `json:"index"`
}

type Registry struct {
	db    database.DB
	repo  *repositories.WebhookRepository
	clock clock.Clock
}

func NewRegistry(db database.DB, c clock.Clock) *Registry {
	return &Registry{
		db:    db,
		repo:  repositories.NewWebhookRepository(db),
		clock: c,
	}
}

// Register stores a new webhook for tenant. A non-empty name must not match
// (case-insensitively) another live webhook of the same type.
func (r *Registry) Register(ctx context.Context, tenantID int64, reg Registration) (*models.Webhook, error) {
	if reg.Type == "" {
		reg.Type = models.TypeWebhook
	}
	if !models.ValidWebhookType(reg.Type) {
		return nil, ErrInvalidType
	}
	if err := validateEndpoint(reg.Endpoint); err != nil {
		return nil, err
	}

	webhook := &models.Webhook{
		TenantID:   tenantID,
		Endpoint:   reg.Endpoint,
		AuthHeader: reg.AuthHeader,
		Type:       reg.Type,
		Name:       strings.TrimSpace(reg.Name),
		CreatedAt:  clock.NowMillis(r.clock),
	}

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		repo := repositories.NewWebhookRepository(tx)
		if err := checkName(ctx, repo, tenantID, webhook.Name, 0, webhook.Type); err != nil {
			return err
		}
		return repo.Create(ctx, webhook)
	})
	if stderrors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, err
	}
	return webhook, nil
}

// Update applies changes to a live webhook of tenant. The uniqueness rule of
// Register applies, excluding the webhook itself.
func (r *Registry) Update(ctx context.Context, tenantID, id int64, changes Changes) (*models.Webhook, error) {
	if err := validateEndpoint(changes.Endpoint); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(changes.Name)

	var updated *models.Webhook
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		repo := repositories.NewWebhookRepository(tx)

		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil || current.TenantID != tenantID {
			return ErrWebhookNotFound
		}
		if err := checkName(ctx, repo, tenantID, name, id, current.Type); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, tenantID, id, repositories.WebhookUpdate{
			Endpoint:   changes.Endpoint,
			AuthHeader: changes.AuthHeader,
			Name:       name,
			Index:      changes.Index,
		})
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrWebhookNotFound
		}
		return nil
	})
	if stderrors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddEdit updates when req names a webhook and registers otherwise. Missing
// fields are written empty, matching the full-replace semantics of Update.
func (r *Registry) AddEdit(ctx context.Context, tenantID int64, req AddEditRequest) (*models.Webhook, error) {
	var name string
	if req.Name != nil {
		name = *req.Name
	}

	if req.WebhookID != nil {
		return r.Update(ctx, tenantID, *req.WebhookID, Changes{
			Endpoint:   req.Endpoint,
			AuthHeader: req.AuthHeader,
			Name:       name,
			Index:      req.Index,
		})
	}

	reg := Registration{Endpoint: req.Endpoint, Type: models.TypeWebhook, Name: name}
	if req.AuthHeader != nil {
		reg.AuthHeader = *req.AuthHeader
	}
	return r.Register(ctx, tenantID, reg)
}

func (r *Registry) Get(ctx context.Context, tenantID, id int64, webhookType string) (*models.Webhook, error) {
	webhook, err := r.repo.Get(ctx, tenantID, id, webhookType)
	if err != nil {
		return nil, err
	}
	if webhook == nil {
		return nil, ErrWebhookNotFound
	}
	return webhook, nil
}

func (r *Registry) ListByType(ctx context.Context, tenantID int64, webhookType string) ([]*models.Webhook, error) {
	if !models.ValidWebhookType(webhookType) {
		return nil, ErrInvalidType
	}
	return r.repo.ListByType(ctx, tenantID, webhookType)
}

func (r *Registry) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Webhook, error) {
	return r.repo.ListByTenant(ctx, tenantID)
}

func (r *Registry) SoftDelete(ctx context.Context, tenantID, id int64) error {
	ok, err := r.repo.SoftDelete(ctx, tenantID, id, clock.NowMillis(r.clock))
	if err != nil {
		return err
	}
	if !ok {
		return ErrWebhookNotFound
	}
	return nil
}

func checkName(ctx context.Context, repo *repositories.WebhookRepository, tenantID int64, name string, excludeID int64, webhookType string) error {
	if name == "" {
		return nil
	}
	exists, err := repo.ExistsByName(ctx, tenantID, name, excludeID, webhookType)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateName
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidEndpoint
	}
	return nil
}
