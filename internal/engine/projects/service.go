package projects

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"
	"replayhub/internal/pkg/clock"
	"replayhub/internal/pkg/errors"
	"replayhub/internal/platform/database"
	"replayhub/internal/platform/models"
	"replayhub/internal/platform/repositories"
)

var (
	ErrDuplicateName   = errors.Invalid("name already exists.")
	ErrNameRequired    = errors.Invalid("name is required")
	ErrProjectNotFound = errors.NotFound("project not found")
	ErrUnauthorized    = errors.Forbidden("unauthorized")
	ErrNoCaptureFields = errors.Invalid("please provide 'rate' and/or 'captureAll' attributes to update.")
	ErrRateOutOfRange  = errors.Invalid("'rate' must be between 0..100.")
)

const projectKeyLength = 20

// KeyGenerator produces project keys.
type KeyGenerator interface {
	New() string
}

// UUIDKeys derives keys from random UUIDs.
type UUIDKeys struct{}

func (UUIDKeys) New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:projectKeyLength]
}

type GetOptions struct {
	IncludeLastSession bool
	IncludeGDPR        bool
}

type ListOptions struct {
	RecordingState bool
	GDPR           bool
	Recorded       bool
}

type CaptureStatus struct {
	Rate       int  `json:"rate"`
	CaptureAll bool `json:"captureAll"`
}

// CaptureUpdate carries the optional fields of a capture rate change.
type CaptureUpdate struct {
	Rate       *int  `json:"rate"`
	CaptureAll *bool `json:"captureAll"`
}

type Service struct {
	db    database.DB
	repo  *repositories.ProjectRepository
	clock clock.Clock
	keys  KeyGenerator
}

func NewService(db database.DB, c clock.Clock, keys KeyGenerator) *Service {
	return &Service{
		db:    db,
		repo:  repositories.NewProjectRepository(db),
		clock: c,
		keys:  keys,
	}
}

func authorize(actor *models.User) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrUnauthorized
	}
	return nil
}

// Create adds a project to the actor's tenant. Only admins and owners may
// create projects.
func (s *Service) Create(ctx context.Context, actor *models.User, name string) (*models.Project, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	project := &models.Project{
		TenantID:   actor.TenantID,
		Name:       name,
		ProjectKey: s.keys.New(),
		GDPR:       models.DefaultGDPR(),
		CreatedAt:  clock.NowMillis(s.clock),
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repositories.NewProjectRepository(tx)
		exists, err := repo.ExistsByName(ctx, actor.TenantID, name, 0)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateName
		}
		return repo.Create(ctx, project)
	})
	if stderrors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Edit renames a project. The name must stay unique among the tenant's
// other live projects.
func (s *Service) Edit(ctx context.Context, actor *models.User, id int64, name string) (*models.Project, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	var project *models.Project
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repositories.NewProjectRepository(tx)
		exists, err := repo.ExistsByName(ctx, actor.TenantID, name, id)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateName
		}
		project, err = repo.UpdateName(ctx, actor.TenantID, id, name)
		if err != nil {
			return err
		}
		if project == nil {
			return ErrProjectNotFound
		}
		return nil
	})
	if stderrors.Is(err, repositories.ErrDuplicate) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Delete soft-deletes the project and turns it inactive.
func (s *Service) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := authorize(actor); err != nil {
		return err
	}
	ok, err := s.repo.SoftDelete(ctx, actor.TenantID, id, clock.NowMillis(s.clock))
	if err != nil {
		return err
	}
	if !ok {
		return ErrProjectNotFound
	}
	return nil
}

func (s *Service) Get(ctx context.Context, tenantID, id int64, opts GetOptions) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.shape(ctx, project, opts)
}

func (s *Service) GetByKey(ctx context.Context, tenantID int64, key string, opts GetOptions) (*models.Project, error) {
	project, err := s.repo.GetByKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	return s.shape(ctx, project, opts)
}

func (s *Service) shape(ctx context.Context, project *models.Project, opts GetOptions) (*models.Project, error) {
	if project == nil {
		return nil, ErrProjectNotFound
	}
	if opts.IncludeLastSession {
		last, err := s.repo.LastSessionStart(ctx, project.ProjectID)
		if err != nil {
			return nil, err
		}
		project.LastRecordedSessionAt = last
	}
	if !opts.IncludeGDPR {
		project.GDPR = nil
	}
	return project, nil
}

// List returns the tenant's live projects. With Recorded, projects that
// never recorded are checked for a first session since their last check
// and the result is stored. With RecordingState, every project gets a
// status.
func (s *Service) List(ctx context.Context, tenantID int64, opts ListOptions) ([]*models.Project, error) {
	now := s.clock.Now()

	projects, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if opts.Recorded {
		if err := s.backfillFirstRecorded(ctx, projects, now.UnixMilli()); err != nil {
			return nil, err
		}
	}

	if opts.RecordingState && len(projects) > 0 {
		from, to := stateWindow(now)
		latest, err := s.repo.LatestSessionStarts(ctx, tenantID, from, to)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			var last *int64
			if ts, ok := latest[p.ProjectID]; ok {
				last = &ts
			}
			p.Status = ClassifyRecording(now, last)
		}
	}

	for _, p := range projects {
		if !opts.GDPR {
			p.GDPR = nil
		}
		if !opts.Recorded {
			p.FirstRecordedSessionAt = nil
		}
	}
	return projects, nil
}

func (s *Service) backfillFirstRecorded(ctx context.Context, projects []*models.Project, now int64) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repositories.NewProjectRepository(tx)
		for _, p := range projects {
			if p.FirstRecordedSessionAt == nil {
				since := p.CreatedAt
				if p.SessionsLastCheckAt != nil {
					since = *p.SessionsLastCheckAt
				}
				first, err := repo.FirstSessionStart(ctx, p.ProjectID, since-day.Milliseconds(), now)
				if err != nil {
					return err
				}
				if err := repo.MarkSessionsChecked(ctx, p.ProjectID, now, first); err != nil {
					return err
				}
				p.FirstRecordedSessionAt = first
			}
			recorded := p.FirstRecordedSessionAt != nil
			p.Recorded = &recorded
		}
		return nil
	})
}

func (s *Service) GetGDPR(ctx context.Context, tenantID, id int64) (models.GDPR, error) {
	project, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project.GDPR, nil
}

// EditGDPR overlays patch on the stored document; keys absent from patch
// are kept.
func (s *Service) EditGDPR(ctx context.Context, tenantID, id int64, patch models.GDPR) (models.GDPR, error) {
	var merged models.GDPR
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repositories.NewProjectRepository(tx)
		project, err := repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if project == nil {
			return ErrProjectNotFound
		}
		merged = project.GDPR.Merge(patch)
		_, err = repo.UpdateGDPR(ctx, tenantID, id, merged)
		return err
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *Service) GetCaptureStatus(ctx context.Context, tenantID, id int64) (*CaptureStatus, error) {
	project, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return &CaptureStatus{Rate: project.SampleRate, CaptureAll: project.SampleRate == 100}, nil
}

// UpdateCaptureStatus sets the sample rate. CaptureAll forces 100 whatever
// rate says; a missing rate without CaptureAll stores 0.
func (s *Service) UpdateCaptureStatus(ctx context.Context, tenantID, id int64, update CaptureUpdate) (*CaptureStatus, error) {
	rate, err := EffectiveRate(update)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.UpdateSampleRate(ctx, tenantID, id, rate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProjectNotFound
	}
	return &CaptureStatus{Rate: rate, CaptureAll: rate == 100}, nil
}

// EffectiveRate validates update and returns the rate to store.
func EffectiveRate(update CaptureUpdate) (int, error) {
	if update.Rate == nil && update.CaptureAll == nil {
		return 0, ErrNoCaptureFields
	}
	if update.Rate != nil && (*update.Rate < 0 || *update.Rate > 100) {
		return 0, ErrRateOutOfRange
	}

	rate := 0
	if update.Rate != nil {
		rate = *update.Rate
	}
	if update.CaptureAll != nil && *update.CaptureAll {
		rate = 100
	}
	return rate, nil
}

// InternalID resolves a project key to its id.
func (s *Service) InternalID(ctx context.Context, key string) (int64, error) {
	id, err := s.repo.InternalID(ctx, key)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrProjectNotFound
	}
	return id, nil
}

func (s *Service) ProjectKey(ctx context.Context, tenantID, id int64) (string, error) {
	project, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	if project == nil {
		return "", ErrProjectNotFound
	}
	return project.ProjectKey, nil
}

func (s *Service) ListIDs(ctx context.Context, tenantID int64) ([]int64, error) {
	return s.repo.ListIDs(ctx, tenantID)
}
