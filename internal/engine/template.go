package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

// TemplateData — данные, доступные в Go templates параметров action:
//   - {{ .Vars.key }}      — значения ExecContext
//   - {{ .Env.VAR_NAME }}  — переменные окружения процесса
type TemplateData struct {
	// Vars — снимок ExecContext на момент рендеринга.
	Vars map[string]any `json:"vars"`

	// Env — переменные окружения.
	Env map[string]string `json:"env"`
}

// NewTemplateData собирает данные шаблона из контекста выполнения.
// ec может быть nil.
func NewTemplateData(ec *ExecContext) *TemplateData {
	vars := make(map[string]any)
	if ec != nil {
		vars = ec.Snapshot()
	}
	return &TemplateData{
		Vars: vars,
		Env:  environ(),
	}
}

// environ возвращает переменные окружения как map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// templateFuncs — функции, доступные в параметрах action.
var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"fromJSON": func(s string) (any, error) {
		var v any
		err := json.Unmarshal([]byte(s), &v)
		return v, err
	},

	// default "x" .Vars.key — "x", если значение не задано или пустая строка
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// now "2006-01-02" — текущее локальное время, для имён файлов отчётов
	"now": func(layout string) string {
		return time.Now().Format(layout)
	},

	"join":     func(sep string, items []string) string { return strings.Join(items, sep) },
	"split":    func(sep, s string) []string { return strings.Split(s, sep) },
	"contains": strings.Contains,
	"lower":    strings.ToLower,
	"upper":    strings.ToUpper,
	"trim":     strings.TrimSpace,
	"replace":  strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .Vars.user }}
//	{{ .Env.HOME }}
//	{{ if .Vars.ready }}...{{ end }}
func Render(tmpl string, data *TemplateData) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice.
func RenderValue(value any, data *TemplateData) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return Render(v, data)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, data)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, data)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := Render(val, data)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := Render(val, data)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Для остальных типов (int, float, bool) возвращаем как есть
		return value, nil
	}
}

// RenderParams рендерит параметры шага.
// Это обёртка над RenderValue для map[string]any.
func RenderParams(config map[string]any, data *TemplateData) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, data)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}

	return result, nil
}
