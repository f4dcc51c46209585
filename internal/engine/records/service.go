package records

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"replayhub/internal/pkg/clock"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/config"
	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
	"replayhub/internal/platform/repositories"
	"replayhub/internal/platform/storage"
)

var (
	ErrRecordNotFound  = errors.NotFound("record not found")
	ErrProjectNotFound = errors.NotFound("project not found")
	ErrNameRequired    = errors.Invalid("name is required")
	ErrInvalidKey      = errors.Invalid("key does not belong to this project")
	ErrInvalidOrder    = errors.Invalid("order must be 'asc' or 'desc'")
	ErrInvalidPage     = errors.Invalid("page must be at least 1")
	ErrInvalidLimit    = errors.Invalid("limit must be between 1 and 200")
	ErrInvalidRange    = errors.Invalid("startDate must not be after endDate")
)

const (
	defaultSearchWindow = 7 * 24 * time.Hour
	defaultLimit        = 10
	maxLimit            = 200
)

type PresignedUpload struct {
	URL string `json:"URL"`
	Key string `json:"key"`
}

type SaveRequest struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	Duration  int64  `json:"duration"`
	SessionID *int64 `json:"sessionId"`
}

// SearchRequest selects a page of records. Zero dates default to the last
// seven days; an empty Order means newest first.
type SearchRequest struct {
	StartDate int64  `json:"startDate"`
	EndDate   int64  `json:"endDate"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	Order     string `json:"order"`
	UserID    *int64 `json:"userId"`
	Query     string `json:"query"`
}

type Service struct {
	db       database.DB
	records  *repositories.AssistRecordRepository
	projects *repositories.ProjectRepository
	store    storage.ObjectStore
	cfg      config.AssistConfig
	clock    clock.Clock
}

func NewService(db database.DB, store storage.ObjectStore, cfg config.AssistConfig, c clock.Clock) *Service {
	return &Service{
		db:       db,
		records:  repositories.NewAssistRecordRepository(db),
		projects: repositories.NewProjectRepository(db),
		store:    store,
		cfg:      cfg,
		clock:    c,
	}
}

// GenerateFileKey places the object under the project's prefix, named by the
// md5 of key.
func GenerateFileKey(projectID int64, key string) string {
	sum := md5.Sum([]byte(key))
	return fmt.Sprintf("%d/%s", projectID, hex.EncodeToString(sum[:]))
}

func (s *Service) requireProject(ctx context.Context, tenantID, projectID int64) error {
	project, err := s.projects.GetByID(ctx, tenantID, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return ErrProjectNotFound
	}
	return nil
}

// Presign reserves a fresh object key and returns a URL the client uploads
// the recording to.
func (s *Service) Presign(ctx context.Context, tenantID, projectID int64, name string) (*PresignedUpload, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	if err := s.requireProject(ctx, tenantID, projectID); err != nil {
		return nil, err
	}

	key := GenerateFileKey(projectID, fmt.Sprintf("%d-%s", clock.NowMillis(s.clock), name))
	url, err := s.store.PresignUpload(ctx, s.cfg.Bucket, key, s.cfg.UploadURLExpiration)
	if err != nil {
		return nil, err
	}
	return &PresignedUpload{URL: url, Key: key}, nil
}

// Save moves the uploaded object to long retention and stores its metadata.
func (s *Service) Save(ctx context.Context, actor *models.User, projectID int64, req SaveRequest) (*models.AssistRecord, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if !strings.HasPrefix(req.Key, fmt.Sprintf("%d/", projectID)) {
		return nil, ErrInvalidKey
	}
	if err := s.requireProject(ctx, actor.TenantID, projectID); err != nil {
		return nil, err
	}

	if err := s.store.Tag(ctx, s.cfg.Bucket, req.Key, s.cfg.RetentionKey, s.cfg.RetentionLong); err != nil {
		return nil, err
	}

	record := &models.AssistRecord{
		ProjectID: projectID,
		UserID:    actor.UserID,
		SessionID: req.SessionID,
		Name:      name,
		FileKey:   req.Key,
		Duration:  req.Duration,
		CreatedAt: clock.NowMillis(s.clock),
	}
	if err := s.records.Create(ctx, record); err != nil {
		if tagErr := s.store.Tag(ctx, s.cfg.Bucket, req.Key, s.cfg.RetentionKey, s.cfg.RetentionDefault); tagErr != nil {
			log.Error().Err(tagErr).Str("file_key", req.Key).Msg("failed to restore retention of unsaved record")
		}
		return nil, err
	}

	return s.Get(ctx, actor.TenantID, projectID, record.RecordID)
}

func (s *Service) Search(ctx context.Context, tenantID, projectID int64, req SearchRequest) ([]*models.AssistRecord, error) {
	filter, err := s.searchFilter(req)
	if err != nil {
		return nil, err
	}
	return s.records.Search(ctx, tenantID, projectID, filter)
}

func (s *Service) searchFilter(req SearchRequest) (repositories.RecordSearch, error) {
	filter := repositories.RecordSearch{
		From:   req.StartDate,
		To:     req.EndDate,
		UserID: req.UserID,
		Query:  strings.TrimSpace(req.Query),
	}

	if filter.To == 0 {
		filter.To = clock.NowMillis(s.clock)
	}
	if filter.From == 0 {
		filter.From = filter.To - defaultSearchWindow.Milliseconds()
	}
	if filter.From > filter.To {
		return filter, ErrInvalidRange
	}

	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return filter, ErrInvalidPage
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 || limit > maxLimit {
		return filter, ErrInvalidLimit
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	switch strings.ToLower(req.Order) {
	case "", "desc":
	case "asc":
		filter.Asc = true
	default:
		return filter, ErrInvalidOrder
	}
	return filter, nil
}

// Get returns a record with a time-limited download URL.
func (s *Service) Get(ctx context.Context, tenantID, projectID, recordID int64) (*models.AssistRecord, error) {
	record, err := s.records.Get(ctx, tenantID, projectID, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}

	record.URL, err = s.store.PresignDownload(ctx, s.cfg.Bucket, record.FileKey, s.cfg.PresignedURLExpiration)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Update(ctx context.Context, tenantID, projectID, recordID int64, name string) (*models.AssistRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	ok, err := s.records.UpdateName(ctx, tenantID, projectID, recordID, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	return s.Get(ctx, tenantID, projectID, recordID)
}

// Delete soft-deletes the record and hands the object back to default
// retention so it can expire. The object itself is kept. The row stays live
// when the object cannot be retagged, so the delete can be retried.
func (s *Service) Delete(ctx context.Context, tenantID, projectID, recordID int64) (string, error) {
	var fileKey string
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		key, err := repositories.NewAssistRecordRepository(tx).SoftDelete(ctx, tenantID, projectID, recordID, clock.NowMillis(s.clock))
		if err != nil {
			return err
		}
		if key == "" {
			return ErrRecordNotFound
		}

		if err := s.store.Tag(ctx, s.cfg.Bucket, key, s.cfg.RetentionKey, s.cfg.RetentionDefault); err != nil {
			log.Error().Err(err).Str("file_key", key).Msg("failed to reset retention of deleted record")
			return err
		}
		fileKey = key
		return nil
	})
	if err != nil {
		return "", err
	}
	return fileKey, nil
}
