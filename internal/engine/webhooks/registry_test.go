package webhooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/models"
	"replayhub/internal/platform/repositories"
	"replayhub/internal/testutil"
)

func newRegistry(t *testing.T) *Registry {
	return NewRegistry(testutil.NewDB(t), testutil.FixedClock())
}

func strPtr(s string) *string { return &s }

func TestRegistry_Register(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	w, err := r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://hooks.example.com/a", AuthHeader: "Bearer x", Name: "Alerts"})
	require.NoError(t, err)
	assert.Equal(t, models.TypeWebhook, w.Type)
	assert.Equal(t, "Bearer x", w.AuthHeader)
	assert.Equal(t, testutil.FixedClock().Now().UnixMilli(), w.CreatedAt)

	_, err = r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://hooks.example.com/b", Name: "aLeRtS"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://hooks.example.com/b", Type: models.TypeSlack, Name: "alerts"})
	assert.NoError(t, err, "same name with another type")

	for i := 0; i < 2; i++ {
		_, err = r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://hooks.example.com/c"})
		assert.NoError(t, err, "empty names never collide")
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	tests := []struct {
		name string
		reg  Registration
		want error
	}{
		{"relative endpoint", Registration{Endpoint: "/hook"}, ErrInvalidEndpoint},
		{"ftp endpoint", Registration{Endpoint: "ftp://files.example.com"}, ErrInvalidEndpoint},
		{"empty endpoint", Registration{}, ErrInvalidEndpoint},
		{"unknown type", Registration{Endpoint: "https://x.example.com", Type: "pager"}, ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(ctx, testutil.TenantID, tt.reg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegistry_UpdateIsFullReplace(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	w, err := r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://a.example.com", AuthHeader: "Bearer x", Name: "ops"})
	require.NoError(t, err)

	updated, err := r.Update(ctx, testutil.TenantID, w.WebhookID, Changes{Endpoint: "https://b.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://b.example.com", updated.Endpoint)
	assert.Equal(t, "", updated.AuthHeader)
	assert.Equal(t, "", updated.Name)

	_, err = r.Update(ctx, testutil.OtherTenantID, w.WebhookID, Changes{Endpoint: "https://c.example.com"})
	assert.ErrorIs(t, err, ErrWebhookNotFound)

	_, err = r.Update(ctx, testutil.TenantID, 4242, Changes{Endpoint: "https://c.example.com"})
	assert.ErrorIs(t, err, ErrWebhookNotFound)
}

func TestRegistry_UpdateDuplicateName(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	a, err := r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://a.example.com", Name: "first"})
	require.NoError(t, err)
	b, err := r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://b.example.com", Name: "second"})
	require.NoError(t, err)

	_, err = r.Update(ctx, testutil.TenantID, b.WebhookID, Changes{Endpoint: b.Endpoint, Name: "FIRST"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// keeping its own name is fine
	_, err = r.Update(ctx, testutil.TenantID, a.WebhookID, Changes{Endpoint: a.Endpoint, Name: "First"})
	assert.NoError(t, err)

	_, err = r.Update(ctx, testutil.TenantID, b.WebhookID, Changes{Endpoint: b.Endpoint, Name: "Élan"})
	require.NoError(t, err)
	_, err = r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://c.example.com", Name: "élan"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = r.Update(ctx, testutil.TenantID, a.WebhookID, Changes{Endpoint: a.Endpoint, Name: "ÉLAN"})
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestRegistry_AddEdit(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	created, err := r.AddEdit(ctx, testutil.TenantID, AddEditRequest{Endpoint: "https://a.example.com", Name: strPtr("deploys")})
	require.NoError(t, err)
	assert.Equal(t, "deploys", created.Name)
	assert.Equal(t, models.TypeWebhook, created.Type)

	index := 2
	edited, err := r.AddEdit(ctx, testutil.TenantID, AddEditRequest{
		WebhookID:  &created.WebhookID,
		Endpoint:   "https://b.example.com",
		AuthHeader: strPtr("Basic abc"),
		Index:      &index,
	})
	require.NoError(t, err)
	assert.Equal(t, created.WebhookID, edited.WebhookID)
	assert.Equal(t, "", edited.Name)
	assert.Equal(t, "Basic abc", edited.AuthHeader)
	assert.Equal(t, 2, edited.Index)
}

func TestRegistry_SoftDelete(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	w, err := r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://a.example.com", Name: "temp"})
	require.NoError(t, err)

	require.NoError(t, r.SoftDelete(ctx, testutil.TenantID, w.WebhookID))
	assert.ErrorIs(t, r.SoftDelete(ctx, testutil.TenantID, w.WebhookID), ErrWebhookNotFound)

	_, err = r.Get(ctx, testutil.TenantID, w.WebhookID, models.TypeWebhook)
	assert.ErrorIs(t, err, ErrWebhookNotFound)

	list, err := r.ListByType(ctx, testutil.TenantID, models.TypeWebhook)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://a.example.com", Name: "temp"})
	assert.NoError(t, err, "deleted names are free")
}

func TestRegistry_DispatchThroughRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	r := NewRegistry(db, testutil.FixedClock())

	w, err := r.Register(ctx, testutil.TenantID, Registration{Endpoint: "https://a.example.com"})
	require.NoError(t, err)
	require.NoError(t, r.SoftDelete(ctx, testutil.TenantID, w.WebhookID))

	d := NewDispatcher(repositories.NewWebhookRepository(db), 1, 0)
	d.DeliverBatch(ctx, []models.Notification{{Destination: w.WebhookID}})

	assert.Equal(t, Stats{Dropped: 1}, d.Stats())
}
