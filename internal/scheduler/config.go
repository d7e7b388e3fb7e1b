package scheduler

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/avantix/internal/domain"
)

// ErrInvalidSchedule — некорректное описание расписания.
var ErrInvalidSchedule = errors.New("invalid schedule")

// fileSchedule — расписание в YAML файле.
// enabled по умолчанию true.
type fileSchedule struct {
	Name        string `yaml:"name"`
	Flow        string `yaml:"flow"`
	Cron        string `yaml:"cron"`
	IntervalSec int    `yaml:"interval_sec"`
	Timezone    string `yaml:"timezone"`
	Enabled     *bool  `yaml:"enabled"`
}

type scheduleFile struct {
	Schedules []fileSchedule `yaml:"schedules"`
}

// LoadFile читает расписания из YAML файла:
//
//	schedules:
//	  - name: morning-report
//	    flow: daily_report
//	    cron: "0 9 * * 1-5"
//	    timezone: Europe/Moscow
//	  - name: heartbeat
//	    flow: ping
//	    interval_sec: 300
func LoadFile(path string) ([]domain.Schedule, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is the operator-provided schedules file
	if err != nil {
		return nil, fmt.Errorf("read schedules: %w", err)
	}
	return Parse(data)
}

// Parse разбирает и валидирует содержимое файла расписаний.
func Parse(data []byte) ([]domain.Schedule, error) {
	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	seen := make(map[string]bool, len(f.Schedules))
	out := make([]domain.Schedule, 0, len(f.Schedules))
	for i, fs := range f.Schedules {
		s := domain.Schedule{
			Name:        fs.Name,
			Flow:        fs.Flow,
			CronExpr:    fs.Cron,
			IntervalSec: fs.IntervalSec,
			Timezone:    fs.Timezone,
			Enabled:     fs.Enabled == nil || *fs.Enabled,
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("schedule-%d", i+1)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidSchedule, s.Name)
		}
		seen[s.Name] = true

		if err := Validate(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Validate проверяет расписание.
func Validate(s *domain.Schedule) error {
	if s.Flow == "" {
		return fmt.Errorf("%w: %s: flow is required", ErrInvalidSchedule, s.Name)
	}
	if s.CronExpr == "" && s.IntervalSec <= 0 {
		return fmt.Errorf("%w: %s: cron or positive interval_sec is required", ErrInvalidSchedule, s.Name)
	}
	if s.CronExpr != "" {
		if err := ValidateCronExpr(s.CronExpr); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: %s: unknown timezone %q", ErrInvalidSchedule, s.Name, s.Timezone)
		}
	}
	return nil
}
