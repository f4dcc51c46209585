package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replayhub/internal/testutil"
)

func TestLogger_LogAndList(t *testing.T) {
	db := testutil.NewDB(t)
	clk := testutil.FixedClock()
	l := NewLogger(db, clk)

	l.Log(AuditLog{
		TenantID:     testutil.TenantID,
		UserID:       testutil.AdminID,
		Action:       ActionCreate,
		ResourceType: "project",
		ResourceID:   "12",
		Metadata:     map[string]interface{}{"name": "web"},
		IPAddress:    "10.0.0.1",
		UserAgent:    "curl/8",
	})
	l.Wait()

	clk.Advance(time.Second)
	l.Log(AuditLog{TenantID: testutil.TenantID, UserID: testutil.AdminID, Action: ActionDelete, ResourceType: "project", ResourceID: "12"})
	l.Log(AuditLog{TenantID: testutil.OtherTenantID, UserID: testutil.OutsiderID, Action: ActionCreate, ResourceType: "webhook", ResourceID: "1"})
	l.Wait()

	logs, err := l.List(context.Background(), testutil.TenantID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, ActionDelete, logs[0].Action)
	assert.Equal(t, ActionCreate, logs[1].Action)
	assert.Equal(t, "web", logs[1].Metadata["name"])
	assert.Equal(t, "10.0.0.1", logs[1].IPAddress)
	assert.Equal(t, clk.Now().Add(-time.Second).UnixMilli(), logs[1].CreatedAt)
	assert.True(t, strings.HasPrefix(logs[0].ID, "audit_"))
	assert.Empty(t, logs[0].Metadata)

	logs, err = l.List(context.Background(), testutil.TenantID, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestLogger_Prune(t *testing.T) {
	db := testutil.NewDB(t)
	clk := testutil.FixedClock()
	l := NewLogger(db, clk)

	l.Log(AuditLog{TenantID: testutil.TenantID, UserID: testutil.AdminID, Action: ActionCreate, ResourceType: "project", ResourceID: "1"})
	l.Wait()
	cutoff := clk.Now().Add(time.Hour).UnixMilli()

	clk.Advance(2 * time.Hour)
	l.Log(AuditLog{TenantID: testutil.TenantID, UserID: testutil.AdminID, Action: ActionDelete, ResourceType: "project", ResourceID: "1"})
	l.Wait()

	removed, err := l.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	logs, err := l.List(context.Background(), testutil.TenantID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ActionDelete, logs[0].Action)
}
