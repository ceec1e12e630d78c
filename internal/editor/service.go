package editor

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/scoring"
)

var (
	errMissingStore      = errors.New("remote store is required")
	errMissingCache      = errors.New("local cache is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "editor.service.new"
)

// ServiceConfig lists the collaborators shared by every session.
type ServiceConfig struct {
	Store            RemoteStore
	Cache            LocalCache
	Profiles         ProfileSource
	Scorer           Scorer
	Importer         Importer
	Dispatcher       *Dispatcher
	Scheduler        Scheduler
	Clock            func() time.Time
	IDProvider       resumes.IDProvider
	QuietPeriod      time.Duration
	StatusResetDelay time.Duration
	SaveMode         SaveMode
	AutoSaveDisabled bool
	Logger           *zap.Logger
}

// Service owns the shared collaborators and hands out sessions.
type Service struct {
	store            RemoteStore
	cache            LocalCache
	profiles         ProfileSource
	scorer           Scorer
	importer         Importer
	dispatcher       *Dispatcher
	scheduler        Scheduler
	clock            func() time.Time
	idProvider       resumes.IDProvider
	quietPeriod      time.Duration
	statusResetDelay time.Duration
	saveMode         SaveMode
	autoSave         bool
	logger           *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Cache == nil {
		return nil, newServiceError(opServiceNew, "missing_cache", errMissingCache)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = NewWallScheduler()
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}
	quietPeriod := cfg.QuietPeriod
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	statusResetDelay := cfg.StatusResetDelay
	if statusResetDelay <= 0 {
		statusResetDelay = DefaultStatusResetDelay
	}
	saveMode := cfg.SaveMode
	if saveMode == "" {
		saveMode = SaveModeUnified
	}
	var scorer Scorer = scoring.NewScorer()
	if cfg.Scorer != nil {
		scorer = cfg.Scorer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:            cfg.Store,
		cache:            cfg.Cache,
		profiles:         cfg.Profiles,
		scorer:           scorer,
		importer:         cfg.Importer,
		dispatcher:       dispatcher,
		scheduler:        scheduler,
		clock:            clock,
		idProvider:       cfg.IDProvider,
		quietPeriod:      quietPeriod,
		statusResetDelay: statusResetDelay,
		saveMode:         saveMode,
		autoSave:         !cfg.AutoSaveDisabled,
		logger:           logger,
	}, nil
}

// Dispatcher returns the event fan-out shared by all sessions.
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// NewSession opens an editing session for owner. An empty owner yields a
// session whose identity-bound operations fail with ErrUnauthorized.
func (s *Service) NewSession(owner string) *Session {
	return &Session{
		service:  s,
		owner:    resumes.OwnerID(strings.TrimSpace(owner)),
		autoSave: s.autoSave,
	}
}

func (s *Service) newCoordinator(document resumes.Document, autoSave bool, onFailure func(*SaveCoordinator, error)) *SaveCoordinator {
	return newSaveCoordinator(coordinatorConfig{
		documentID:       document.ID,
		owner:            document.OwnerID,
		store:            s.store,
		cache:            s.cache,
		scheduler:        s.scheduler,
		clock:            s.clock,
		quietPeriod:      s.quietPeriod,
		statusResetDelay: s.statusResetDelay,
		mode:             s.saveMode,
		autoSave:         autoSave,
		dispatcher:       s.dispatcher,
		logger:           s.logger,
		onFailure:        onFailure,
	})
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}, fields...)
	if err != nil {
		allFields = append(allFields, zap.Error(err))
	}
	s.logger.Error("editor operation failed", allFields...)
}
