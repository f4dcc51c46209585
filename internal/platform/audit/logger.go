package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"replayhub/internal/pkg/clock"
	"replayhub/internal/platform/database"
)

// Actions recorded in the audit trail.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionSave   = "save"
)

type AuditLog struct {
	ID           string                 `json:"id"`
	TenantID     int64                  `json:"tenantId"`
	UserID       int64                  `json:"userId"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	Metadata     map[string]interface{} `json:"metadata"`
	IPAddress    string                 `json:"ipAddress"`
	UserAgent    string                 `json:"userAgent"`
	CreatedAt    int64                  `json:"createdAt"`
}

// Logger writes audit entries in the background. Write failures are logged
// and never reach the request that caused them.
type Logger struct {
	db    database.DBTX
	clock clock.Clock
	wg    sync.WaitGroup
}

func NewLogger(db database.DBTX, c clock.Clock) *Logger {
	return &Logger{db: db, clock: c}
}

// Log stamps entry with an id and the current time and stores it
// asynchronously.
func (l *Logger) Log(entry AuditLog) {
	entry.ID = "audit_" + uuid.New().String()
	entry.CreatedAt = clock.NowMillis(l.clock)
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}

	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		log.Error().Err(err).Str("action", entry.Action).Msg("failed to encode audit metadata")
		metaJSON = []byte("{}")
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		_, err := l.db.ExecContext(context.Background(), `
			INSERT INTO audit_logs (id, tenant_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, entry.TenantID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, string(metaJSON), entry.IPAddress, entry.UserAgent, entry.CreatedAt)
		if err != nil {
			log.Error().Err(err).Str("action", entry.Action).Str("resource_type", entry.ResourceType).Msg("failed to write audit log")
		}
	}()
}

// Wait blocks until every pending entry is written.
func (l *Logger) Wait() {
	l.wg.Wait()
}

// List returns the tenant's most recent entries, newest first.
func (l *Logger) List(ctx context.Context, tenantID int64, limit int) ([]AuditLog, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE tenant_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		var entry AuditLog
		var metaStr string
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.UserID, &entry.Action, &entry.ResourceType, &entry.ResourceID, &metaStr, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaStr), &entry.Metadata); err != nil {
			entry.Metadata = map[string]interface{}{}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// Prune deletes entries created before the cutoff (unix millis) and reports
// how many were removed.
func (l *Logger) Prune(ctx context.Context, before int64) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
