package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/loader"
	"github.com/shaiso/avantix/internal/repo"
)

// ErrFlowNotFound — flow не найден ни в одном источнике.
var ErrFlowNotFound = errors.New("flow not found")

// FlowSource находит определение flow по имени.
type FlowSource interface {
	Load(ctx context.Context, name string) (*domain.FlowSpec, error)
}

// DirSource читает flow из каталога FLOWS_DIR.
//
// Принимаются только имена файлов внутри каталога: пути и ".."
// считаются ненайденным flow.
type DirSource struct {
	Loader *loader.Loader
}

// Load загружает файл flow.
func (s DirSource) Load(_ context.Context, name string) (*domain.FlowSpec, error) {
	if name != filepath.Base(name) || name == ".." || name == "." {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	spec, err := s.Loader.Load(name)
	if errors.Is(err, loader.ErrFlowNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	return spec, err
}

// ChainSource опрашивает источники по порядку до первого найденного flow.
// Ошибки, отличные от "не найдено", прерывают поиск.
type ChainSource []FlowSource

// Load возвращает flow из первого источника, где он есть.
func (c ChainSource) Load(ctx context.Context, name string) (*domain.FlowSpec, error) {
	for _, src := range c {
		spec, err := src.Load(ctx, name)
		if err == nil {
			return spec, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
}

// StoreSource читает последнюю версию flow из Postgres.
type StoreSource struct {
	Repo *repo.FlowRepo
}

// Load загружает flow из хранилища.
func (s StoreSource) Load(ctx context.Context, name string) (*domain.FlowSpec, error) {
	spec, err := s.Repo.Load(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
	}
	return spec, err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, loader.ErrFlowNotFound) ||
		errors.Is(err, repo.ErrNotFound)
}
