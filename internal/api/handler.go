package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/engine"
	"github.com/shaiso/avantix/internal/loader"
	"github.com/shaiso/avantix/internal/repo"
)

// Runs — операции runner. Реализуется runner.Service.
type Runs interface {
	Start(ctx context.Context, flowName string, trigger domain.RunTrigger) (*domain.Run, error)
	Cancel(id uuid.UUID) error
	Current() *domain.Run
	Last() *domain.Run
	Get(id uuid.UUID) (*domain.Run, error)
	Busy() bool
}

// FlowStore — хранилище версионированных flow. Реализуется repo.FlowRepo.
type FlowStore interface {
	Save(ctx context.Context, spec domain.FlowSpec) (*domain.FlowVersion, error)
	GetLatest(ctx context.Context, name string) (*domain.FlowVersion, error)
	GetVersion(ctx context.Context, name string, version int) (*domain.FlowVersion, error)
	List(ctx context.Context) ([]repo.FlowSummary, error)
	Delete(ctx context.Context, name string) error
}

// Schedules — расписания. Реализуется scheduler.Scheduler.
type Schedules interface {
	Schedules() []domain.Schedule
	SetEnabled(name string, enabled bool) bool
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs      Runs
	flows     *loader.Loader
	store     FlowStore
	registry  *engine.Registry
	schedules Schedules
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs     Runs
	Flows    *loader.Loader
	Registry *engine.Registry

	// Store — Postgres хранилище flow. nil — хранилище не настроено.
	Store FlowStore

	// Schedules — nil, если планировщик выключен.
	Schedules Schedules

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runs:      cfg.Runs,
		flows:     cfg.Flows,
		store:     cfg.Store,
		registry:  cfg.Registry,
		schedules: cfg.Schedules,
		logger:    logger,
	}
}
