package repositories

import (
	"context"
	"database/sql"
	"strings"

	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
)

const recordColumns = `r.record_id, r.project_id, r.user_id, r.session_id, r.created_at, r.name, r.duration,
	COALESCE(u.name, ''), r.file_key`

const recordFrom = `
	FROM assist_records AS r
	INNER JOIN projects AS p ON p.project_id = r.project_id
	LEFT JOIN users AS u ON u.user_id = r.user_id`

type AssistRecordRepository struct {
	db database.DBTX
}

func NewAssistRecordRepository(db database.DBTX) *AssistRecordRepository {
	return &AssistRecordRepository{db: db}
}

// RecordSearch filters a page of records. From and To bound created_at
// inclusively; an empty Query matches every name.
type RecordSearch struct {
	From   int64
	To     int64
	UserID *int64
	Query  string
	Asc    bool
	Limit  int
	Offset int
}

func (r *AssistRecordRepository) Create(ctx context.Context, record *models.AssistRecord) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO assist_records (project_id, user_id, session_id, name, file_key, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING record_id
	`, record.ProjectID, record.UserID, record.SessionID, record.Name, record.FileKey, record.Duration, record.CreatedAt).
		Scan(&record.RecordID)
}

// Get returns a live record of a live project owned by the tenant, or nil.
func (r *AssistRecordRepository) Get(ctx context.Context, tenantID, projectID, recordID int64) (*models.AssistRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+recordFrom+`
		WHERE p.tenant_id = ? AND p.deleted_at IS NULL
		  AND r.project_id = ? AND r.record_id = ? AND r.deleted_at IS NULL
	`, tenantID, projectID, recordID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *AssistRecordRepository) Search(ctx context.Context, tenantID, projectID int64, filter RecordSearch) ([]*models.AssistRecord, error) {
	conditions := []string{
		"p.tenant_id = ?",
		"p.deleted_at IS NULL",
		"r.project_id = ?",
		"r.deleted_at IS NULL",
		"r.created_at >= ?",
		"r.created_at <= ?",
	}
	args := []interface{}{tenantID, projectID, filter.From, filter.To}

	if filter.UserID != nil {
		conditions = append(conditions, "r.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Query != "" {
		conditions = append(conditions, `(lower(u.name) LIKE ? ESCAPE '\' OR lower(r.name) LIKE ? ESCAPE '\')`)
		pattern := containsPattern(filter.Query)
		args = append(args, pattern, pattern)
	}

	order := "DESC"
	if filter.Asc {
		order = "ASC"
	}
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+recordFrom+`
		WHERE `+strings.Join(conditions, " AND ")+`
		ORDER BY r.created_at `+order+`, r.record_id `+order+`
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*models.AssistRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateName renames a live record. It reports false when nothing matched.
func (r *AssistRecordRepository) UpdateName(ctx context.Context, tenantID, projectID, recordID int64, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE assist_records SET name = ?
		WHERE record_id = ? AND project_id = ? AND deleted_at IS NULL
		  AND project_id IN (SELECT project_id FROM projects WHERE tenant_id = ? AND deleted_at IS NULL)
	`, name, recordID, projectID, tenantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SoftDelete marks a live record deleted and returns its file key. An empty
// key means no live record matched.
func (r *AssistRecordRepository) SoftDelete(ctx context.Context, tenantID, projectID, recordID int64, deletedAt int64) (string, error) {
	var fileKey string
	err := r.db.QueryRowContext(ctx, `
		UPDATE assist_records SET deleted_at = ?
		WHERE record_id = ? AND project_id = ? AND deleted_at IS NULL
		  AND project_id IN (SELECT project_id FROM projects WHERE tenant_id = ? AND deleted_at IS NULL)
		RETURNING file_key
	`, deletedAt, recordID, projectID, tenantID).Scan(&fileKey)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return fileKey, err
}

func scanRecord(s scanner) (*models.AssistRecord, error) {
	var rec models.AssistRecord
	var sessionID sql.NullInt64

	err := s.Scan(&rec.RecordID, &rec.ProjectID, &rec.UserID, &sessionID, &rec.CreatedAt, &rec.Name, &rec.Duration,
		&rec.CreatedBy, &rec.FileKey)
	if err != nil {
		return nil, err
	}
	rec.SessionID = nullableInt64(sessionID)
	return &rec, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lower-cased LIKE pattern matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
