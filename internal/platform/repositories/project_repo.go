package repositories

import (
	"context"
	"database/sql"

	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
)

const projectColumns = `project_id, tenant_id, name, project_key, save_request_payloads, gdpr, sample_rate,
	created_at, first_recorded_session_at, sessions_last_check_at`

type ProjectRepository struct {
	db database.DBTX
}

func NewProjectRepository(db database.DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.GDPR == nil {
		project.GDPR = models.DefaultGDPR()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO projects (tenant_id, name, name_folded, project_key, active, gdpr, created_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		RETURNING `+projectColumns,
		project.TenantID, project.Name, foldName(project.Name), project.ProjectKey, project.GDPR, project.CreatedAt)

	created, err := scanProject(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	*project = *created
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, tenantID, id int64) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE project_id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, id, tenantID)
	return scanProjectOrNil(row)
}

func (r *ProjectRepository) GetByKey(ctx context.Context, tenantID int64, key string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE project_key = ? AND tenant_id = ? AND deleted_at IS NULL
	`, key, tenantID)
	return scanProjectOrNil(row)
}

// List returns the tenant's live projects ordered by id.
func (r *ProjectRepository) List(ctx context.Context, tenantID int64) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE tenant_id = ? AND deleted_at IS NULL
		ORDER BY project_id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) ListIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id FROM projects
		WHERE tenant_id = ? AND deleted_at IS NULL
		ORDER BY project_id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExistsByName matches case-insensitively among the tenant's live
// projects. excludeID of 0 excludes nothing.
func (r *ProjectRepository) ExistsByName(ctx context.Context, tenantID int64, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM projects
			WHERE deleted_at IS NULL
			  AND tenant_id = ?
			  AND name_folded = ?
			  AND project_id != ?
		)
	`, tenantID, foldName(name), excludeID).Scan(&exists)
	return exists, err
}

// UpdateName renames a live project and returns the stored row, or nil when
// the project does not exist.
func (r *ProjectRepository) UpdateName(ctx context.Context, tenantID, id int64, name string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE projects SET name = ?, name_folded = ?
		WHERE project_id = ? AND tenant_id = ? AND deleted_at IS NULL
		RETURNING `+projectColumns,
		name, foldName(name), id, tenantID)

	project, err := scanProjectOrNil(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return project, err
}

func (r *ProjectRepository) SoftDelete(ctx context.Context, tenantID, id int64, deletedAt int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET deleted_at = ?, active = 0
		WHERE project_id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, deletedAt, id, tenantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ProjectRepository) UpdateGDPR(ctx context.Context, tenantID, id int64, gdpr models.GDPR) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET gdpr = ?
		WHERE project_id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, gdpr, id, tenantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ProjectRepository) UpdateSampleRate(ctx context.Context, tenantID, id int64, rate int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET sample_rate = ?
		WHERE project_id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, rate, id, tenantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// LastSessionStart returns the most recent session start of a project, or
// nil when it never recorded anything.
func (r *ProjectRepository) LastSessionStart(ctx context.Context, projectID int64) (*int64, error) {
	var last sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(start_ts) FROM sessions WHERE project_id = ?
	`, projectID).Scan(&last)
	if err != nil {
		return nil, err
	}
	return nullableInt64(last), nil
}

// LatestSessionStarts maps each of the tenant's live projects that has a
// session starting within [from, to] to its latest such start.
func (r *ProjectRepository) LatestSessionStarts(ctx context.Context, tenantID int64, from, to int64) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.project_id, MAX(s.start_ts)
		FROM sessions AS s
		JOIN projects AS p ON p.project_id = s.project_id
		WHERE p.tenant_id = ? AND p.deleted_at IS NULL
		  AND s.start_ts >= ? AND s.start_ts <= ?
		GROUP BY s.project_id
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[int64]int64)
	for rows.Next() {
		var projectID, last int64
		if err := rows.Scan(&projectID, &last); err != nil {
			return nil, err
		}
		latest[projectID] = last
	}
	return latest, rows.Err()
}

// FirstSessionStart returns the earliest session start of a project within
// [from, to], or nil.
func (r *ProjectRepository) FirstSessionStart(ctx context.Context, projectID int64, from, to int64) (*int64, error) {
	var first sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(start_ts) FROM sessions
		WHERE project_id = ? AND start_ts >= ? AND start_ts <= ?
	`, projectID, from, to).Scan(&first)
	if err != nil {
		return nil, err
	}
	return nullableInt64(first), nil
}

// MarkSessionsChecked stores the result of a first-session lookup. first may
// be nil, in which case only the check time moves forward.
func (r *ProjectRepository) MarkSessionsChecked(ctx context.Context, projectID int64, checkedAt int64, first *int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET sessions_last_check_at = ?, first_recorded_session_at = ?
		WHERE project_id = ?
	`, checkedAt, first, projectID)
	return err
}

// InternalID resolves a project key to its id regardless of tenant; 0 means
// not found.
func (r *ProjectRepository) InternalID(ctx context.Context, key string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT project_id FROM projects WHERE project_key = ? AND deleted_at IS NULL
	`, key).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func scanProject(s scanner) (*models.Project, error) {
	var p models.Project
	var firstRecorded, lastCheck sql.NullInt64

	err := s.Scan(&p.ProjectID, &p.TenantID, &p.Name, &p.ProjectKey, &p.SaveRequestPayloads, &p.GDPR, &p.SampleRate,
		&p.CreatedAt, &firstRecorded, &lastCheck)
	if err != nil {
		return nil, err
	}
	p.FirstRecordedSessionAt = nullableInt64(firstRecorded)
	p.SessionsLastCheckAt = nullableInt64(lastCheck)
	return &p, nil
}

func scanProjectOrNil(s scanner) (*models.Project, error) {
	p, err := scanProject(s)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}
