package domain

import (
	"strings"
	"time"
)

// ErrorPolicy — политика обработки ошибок шага.
//
// На уровне flow допустимы только stop и continue.
// На уровне шага пустое значение означает "наследовать от flow".
type ErrorPolicy string

const (
	// PolicyStop — при ошибке шага run завершается со статусом FAILED.
	PolicyStop ErrorPolicy = "stop"

	// PolicyContinue — ошибка шага логируется, выполнение переходит к следующему шагу.
	PolicyContinue ErrorPolicy = "continue"

	// PolicyInherit — шаг использует политику flow.
	PolicyInherit ErrorPolicy = ""
)

// ParseErrorPolicy нормализует строковое значение политики.
// Регистр и пробелы по краям не важны. Возвращает false для неизвестного значения.
func ParseErrorPolicy(s string) (ErrorPolicy, bool) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStop:
		return PolicyStop, true
	case PolicyContinue:
		return PolicyContinue, true
	case PolicyInherit:
		return PolicyInherit, true
	default:
		return ErrorPolicy(s), false
	}
}

// String возвращает строковое представление политики.
func (p ErrorPolicy) String() string {
	if p == PolicyInherit {
		return "inherit"
	}
	return string(p)
}

// FlowSpec — декларативное описание flow.
//
// Это то, что загружается из YAML/JSON файла или из хранилища flows:
//
//	name: "Daily report"
//	on_error: continue
//	steps:
//	  - action: print
//	    params:
//	      message: "start"
//	  - action: wait
//	    params:
//	      seconds: 2
//	    on_error: stop
type FlowSpec struct {
	// Name — имя flow. Используется в логах и событиях.
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения flow.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// OnError — политика flow: "stop" (по умолчанию) или "continue".
	OnError ErrorPolicy `json:"on_error,omitempty" yaml:"on_error,omitempty"`

	// Steps — упорядоченный список шагов.
	Steps []StepDef `json:"steps" yaml:"steps"`
}

// StepDef — один шаг flow: вызов action с параметрами.
type StepDef struct {
	// Action — идентификатор action в реестре ("print", "wait", "http.request", ...).
	Action string `json:"action" yaml:"action"`

	// Params — параметры action. Их структура известна только самому action.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// OnError — переопределение политики для шага. Пустое значение — наследовать.
	OnError ErrorPolicy `json:"on_error,omitempty" yaml:"on_error,omitempty"`

	// ContinueOnError — устаревшая форма переопределения (true == on_error: continue).
	// Если задан OnError, он имеет приоритет.
	ContinueOnError bool `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
}

// DisplayName возвращает имя flow для логов.
func (f *FlowSpec) DisplayName() string {
	if f.Name == "" {
		return "Unnamed Flow"
	}
	return f.Name
}

// Override возвращает переопределение политики шага с учётом ContinueOnError.
func (s *StepDef) Override() ErrorPolicy {
	if s.OnError != PolicyInherit {
		return s.OnError
	}
	if s.ContinueOnError {
		return PolicyContinue
	}
	return PolicyInherit
}

// Clone возвращает копию flow, не разделяющую срезы и карты верхнего уровня
// с оригиналом. Значения внутри Params не копируются глубоко.
func (f *FlowSpec) Clone() *FlowSpec {
	c := *f
	c.Steps = make([]StepDef, len(f.Steps))
	for i, s := range f.Steps {
		if s.Params != nil {
			params := make(map[string]any, len(s.Params))
			for k, v := range s.Params {
				params[k] = v
			}
			s.Params = params
		}
		c.Steps[i] = s
	}
	return &c
}

// FlowVersion — сохранённая версия определения flow.
//
// Версии неизменяемы: каждое сохранение flow создаёт новую версию.
type FlowVersion struct {
	// Name — имя flow (ключ хранилища).
	Name string `json:"name"`

	// Version — номер версии, начиная с 1.
	Version int `json:"version"`

	// Spec — определение flow.
	Spec FlowSpec `json:"spec"`

	// CreatedAt — время сохранения версии.
	CreatedAt time.Time `json:"created_at"`
}
