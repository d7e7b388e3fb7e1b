package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shaiso/avantix/internal/engine"
)

// ActionContextSet — запись значений в ExecContext.
const ActionContextSet = "context.set"

// ContextSetAction сохраняет значения в ExecContext для следующих шагов.
//
// Параметры:
//
//	{
//	    "values": {
//	        "user": "{{ .Env.USER }}",
//	        "count": "{{ len .Vars.items }}",
//	        "greeting": "hello"
//	    }
//	}
//
// Строки рендерятся как шаблоны. Результат, похожий на JSON
// (объект, массив, число, bool), сохраняется в разобранном виде.
type ContextSetAction struct{}

// Execute записывает значения.
func (a *ContextSetAction) Execute(ctx context.Context, ec *engine.ExecContext, params map[string]any) error {
	if err := ctx.Err(); err != nil {
		return cancelled(ActionContextSet, err)
	}

	values := ParamMap(params, "values")
	if len(values) == 0 {
		return invalidParams(ActionContextSet, "values is required")
	}

	// Все значения рендерятся по одному снимку: порядок ключей не влияет на результат
	data := engine.NewTemplateData(ec)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := values[key]
		if tmpl, ok := raw.(string); ok {
			rendered, err := engine.Render(tmpl, data)
			if err != nil {
				return fmt.Errorf("%s %s: %w", ActionContextSet, key, err)
			}
			ec.Set(key, parseValue(rendered))
			continue
		}

		rendered, err := engine.RenderValue(raw, data)
		if err != nil {
			return fmt.Errorf("%s %s: %w", ActionContextSet, key, err)
		}
		ec.Set(key, rendered)
	}

	return nil
}

// parseValue пытается разобрать строку как JSON.
// Если не получается — возвращает строку как есть.
func parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	switch value {
	case "true":
		return true
	case "false":
		return false
	}

	return value
}
