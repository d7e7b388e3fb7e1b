package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/avantix/internal/domain"
)

// FlowSchema — DDL хранилища определений flow.
const FlowSchema = `
CREATE TABLE IF NOT EXISTS flows (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_versions (
	flow_name  TEXT NOT NULL REFERENCES flows(name) ON DELETE CASCADE,
	version    INT  NOT NULL,
	spec       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (flow_name, version)
);
`

// FlowRepo — хранилище версионированных определений flow в Postgres.
//
// История запусков здесь не хранится: только сами определения.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// EnsureSchema создаёт таблицы, если их нет.
func (r *FlowRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, FlowSchema); err != nil {
		return fmt.Errorf("ensure flow schema: %w", err)
	}
	return nil
}

// Save сохраняет spec как новую версию flow с именем spec.Name.
// Версия автоматически инкрементируется.
func (r *FlowRepo) Save(ctx context.Context, spec domain.FlowSpec) (*domain.FlowVersion, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: flow name is required", ErrInvalidState)
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal spec: %w", err)
	}

	var version domain.FlowVersion
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Upsert блокирует строку flows до конца транзакции:
		// параллельные Save одного flow получают разные номера версий
		if _, err := tx.Exec(ctx, `
			INSERT INTO flows (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
		`, spec.Name); err != nil {
			return fmt.Errorf("upsert flow: %w", err)
		}

		var next int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(version), 0) + 1
			FROM flow_versions
			WHERE flow_name = $1
		`, spec.Name).Scan(&next); err != nil {
			return fmt.Errorf("get next version: %w", err)
		}

		var createdAt time.Time
		if err := tx.QueryRow(ctx, `
			INSERT INTO flow_versions (flow_name, version, spec)
			VALUES ($1, $2, $3)
			RETURNING created_at
		`, spec.Name, next, specJSON).Scan(&createdAt); err != nil {
			return fmt.Errorf("insert flow version: %w", err)
		}

		version = domain.FlowVersion{
			Name:      spec.Name,
			Version:   next,
			Spec:      spec,
			CreatedAt: createdAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// GetLatest возвращает последнюю версию flow.
func (r *FlowRepo) GetLatest(ctx context.Context, name string) (*domain.FlowVersion, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT flow_name, version, spec, created_at
		FROM flow_versions
		WHERE flow_name = $1
		ORDER BY version DESC
		LIMIT 1
	`, name)
	fv, err := scanVersion(row)
	if err != nil {
		return nil, fmt.Errorf("get latest flow version: %w", err)
	}
	return fv, nil
}

// GetVersion возвращает конкретную версию flow.
func (r *FlowRepo) GetVersion(ctx context.Context, name string, version int) (*domain.FlowVersion, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT flow_name, version, spec, created_at
		FROM flow_versions
		WHERE flow_name = $1 AND version = $2
	`, name, version)
	fv, err := scanVersion(row)
	if err != nil {
		return nil, fmt.Errorf("get flow version: %w", err)
	}
	return fv, nil
}

// Load возвращает определение последней версии flow.
func (r *FlowRepo) Load(ctx context.Context, name string) (*domain.FlowSpec, error) {
	fv, err := r.GetLatest(ctx, name)
	if err != nil {
		return nil, err
	}
	return &fv.Spec, nil
}

// FlowSummary — flow с номером последней версии.
type FlowSummary struct {
	Name          string    `json:"name"`
	LatestVersion int       `json:"latest_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// List возвращает все flow с номером последней версии.
func (r *FlowRepo) List(ctx context.Context) ([]FlowSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.name, COALESCE(MAX(v.version), 0), f.updated_at
		FROM flows f
		LEFT JOIN flow_versions v ON v.flow_name = f.name
		GROUP BY f.name, f.updated_at
		ORDER BY f.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	flows := []FlowSummary{}
	for rows.Next() {
		var s FlowSummary
		if err := rows.Scan(&s.Name, &s.LatestVersion, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		flows = append(flows, s)
	}
	return flows, rows.Err()
}

// Delete удаляет flow со всеми версиями.
func (r *FlowRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanVersion(row pgx.Row) (*domain.FlowVersion, error) {
	var fv domain.FlowVersion
	var specJSON []byte
	err := row.Scan(&fv.Name, &fv.Version, &specJSON, &fv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(specJSON, &fv.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	return &fv, nil
}
