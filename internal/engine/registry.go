package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Factory создаёт новый экземпляр Action. Вызывается на каждый шаг.
type Factory func() Action

// Registry — реестр action по идентификатору.
//
// Заполняется один раз при старте процесса и дальше только читается.
// Потокобезопасен: несколько engine могут читать его одновременно.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register регистрирует фабрику action.
// Если action с таким id уже существует, он будет перезаписан.
func (r *Registry) Register(id string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
}

// RegisterFunc регистрирует функцию как stateless action.
func (r *Registry) RegisterFunc(id string, fn ActionFunc) {
	r.Register(id, func() Action { return fn })
}

// Get возвращает новый экземпляр action по id.
// Возвращает ErrUnknownAction, если action не найден.
func (r *Registry) Get(id string) (Action, error) {
	r.mu.RLock()
	factory, exists := r.factories[id]
	r.mu.RUnlock()

	if !exists || factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}

	return factory(), nil
}

// Has проверяет, зарегистрирован ли action.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[id]
	return exists
}

// IDs возвращает отсортированный список зарегистрированных action.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count возвращает количество зарегистрированных action.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
