package actions

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shaiso/avantix/internal/engine"
)

// Ошибки action.
var (
	// ErrInvalidParams — невалидные или отсутствующие параметры шага.
	ErrInvalidParams = errors.New("invalid action params")

	// ErrCancelled — action прерван по контексту процесса.
	ErrCancelled = errors.New("action cancelled")
)

// invalidParams создаёт восстановимую ошибку параметров для action id.
func invalidParams(id, format string, args ...any) error {
	return &engine.ActionError{
		Kind:    engine.KindRecoverable,
		Message: id + ": " + fmt.Sprintf(format, args...),
		Err:     ErrInvalidParams,
	}
}

// cancelled оборачивает ошибку контекста.
func cancelled(id string, err error) error {
	return &engine.ActionError{
		Kind:    engine.KindRecoverable,
		Message: fmt.Sprintf("%s: %v", id, err),
		Err:     ErrCancelled,
	}
}

// ParamString извлекает строковое значение из параметров.
func ParamString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ParamInt извлекает целое значение из параметров.
func ParamInt(params map[string]any, key string) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// ParamFloat извлекает число с плавающей точкой.
// Строки вида "1.5" тоже принимаются: так их пишут в YAML в кавычках.
func ParamFloat(params map[string]any, key string, defaultVal float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return defaultVal, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: not a number: %q", key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s: unsupported type %T", key, v)
	}
}

// ParamBool извлекает булево значение из параметров.
func ParamBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// ParamMap извлекает вложенный map из параметров.
func ParamMap(params map[string]any, key string) map[string]any {
	if v, ok := params[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// ParamMapString извлекает map[string]string из параметров.
// Нестроковые значения пропускаются.
func ParamMapString(params map[string]any, key string) map[string]string {
	if v, ok := params[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string, len(m))
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}
