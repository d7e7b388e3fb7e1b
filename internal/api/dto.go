package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/loader"
	"github.com/shaiso/avantix/internal/repo"
)

// Run DTOs

// StartRunRequest — запрос на запуск flow.
type StartRunRequest struct {
	Flow string `json:"flow"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID              uuid.UUID  `json:"id"`
	Flow            string     `json:"flow"`
	Trigger         string     `json:"trigger,omitempty"`
	Status          string     `json:"status"`
	StepIndex       int        `json:"step_index,omitempty"`
	StepsTotal      int        `json:"steps_total"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	DurationMs      int64      `json:"duration_ms,omitempty"`
	Error           string     `json:"error,omitempty"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r *domain.Run) RunResponse {
	return RunResponse{
		ID:              r.ID,
		Flow:            r.FlowName,
		Trigger:         string(r.Trigger),
		Status:          string(r.Status),
		StepIndex:       r.StepIndex,
		StepsTotal:      r.StepsTotal,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationMs:      r.Duration().Milliseconds(),
		Error:           r.Error,
		CancelRequested: r.CancelRequested,
	}
}

// Flow DTOs

// FlowsResponse — flow из каталога и из хранилища.
type FlowsResponse struct {
	Files  []loader.FlowInfo  `json:"files"`
	Stored []repo.FlowSummary `json:"stored,omitempty"`
}

// FlowVersionResponse — ответ с версией flow из хранилища.
type FlowVersionResponse struct {
	Name      string          `json:"name"`
	Version   int             `json:"version,omitempty"`
	Source    string          `json:"source"`
	Spec      domain.FlowSpec `json:"spec"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// Источники определения flow.
const (
	FlowSourceStore = "store"
	FlowSourceFile  = "file"
)

// FlowVersionFromDomain конвертирует domain.FlowVersion в FlowVersionResponse.
func FlowVersionFromDomain(v *domain.FlowVersion) FlowVersionResponse {
	createdAt := v.CreatedAt
	return FlowVersionResponse{
		Name:      v.Name,
		Version:   v.Version,
		Source:    FlowSourceStore,
		Spec:      v.Spec,
		CreatedAt: &createdAt,
	}
}

// Action DTOs

// ActionsResponse — зарегистрированные action.
type ActionsResponse struct {
	Actions []string `json:"actions"`
}

// Schedule DTOs

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	Name        string     `json:"name"`
	Flow        string     `json:"flow"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
	Enabled     bool       `json:"enabled"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID `json:"last_run_id,omitempty"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		Name:        s.Name,
		Flow:        s.Flow,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
	}
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
}
