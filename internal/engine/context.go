package engine

import "sort"

// ExecContext — изменяемое хранилище ключ/значение, общее для всех шагов одного run.
//
// Создаётся пустым при старте run и живёт до его завершения.
// Шаги выполняются последовательно в одной горутине, поэтому
// блокировки не нужны; контроллер не должен трогать контекст во время run.
type ExecContext struct {
	values map[string]any
}

// NewExecContext создаёт пустой контекст.
func NewExecContext() *ExecContext {
	return &ExecContext{values: make(map[string]any)}
}

// Get возвращает значение по ключу.
func (c *ExecContext) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetString возвращает строковое значение или пустую строку.
func (c *ExecContext) GetString(key string) string {
	if s, ok := c.values[key].(string); ok {
		return s
	}
	return ""
}

// Set сохраняет значение.
func (c *ExecContext) Set(key string, value any) {
	c.values[key] = value
}

// Delete удаляет значение.
func (c *ExecContext) Delete(key string) {
	delete(c.values, key)
}

// Len возвращает количество значений.
func (c *ExecContext) Len() int {
	return len(c.values)
}

// Keys возвращает отсортированный список ключей.
func (c *ExecContext) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot возвращает поверхностную копию значений.
func (c *ExecContext) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
