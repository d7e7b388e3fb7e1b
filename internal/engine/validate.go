package engine

import (
	"errors"
	"fmt"

	"github.com/shaiso/avantix/internal/domain"
)

// Validate проверяет политики flow и всех шагов.
//
// Проверяет:
// - Наличие spec
// - on_error flow: пусто, "stop" или "continue"
// - on_error каждого шага: пусто (наследовать), "stop" или "continue"
//
// Наличие action в реестре здесь не проверяется: неизвестный action
// обнаруживается при диспетчеризации шага (см. CheckActions для lint-проверки).
func Validate(spec *domain.FlowSpec) error {
	_, err := Normalize(spec)
	return err
}

// Normalize валидирует spec и возвращает копию с приведёнными политиками:
// OnError flow всегда stop|continue, OnError шага — stop|continue|inherit.
func Normalize(spec *domain.FlowSpec) (*domain.FlowSpec, error) {
	if spec == nil {
		return nil, NewValidationError(0, "flow", "flow spec is nil", ErrConfiguration)
	}

	out := spec.Clone()

	policy, err := flowPolicy(spec.OnError)
	if err != nil {
		return nil, err
	}
	out.OnError = policy

	for i := range out.Steps {
		step := &out.Steps[i]
		override, ok := domain.ParseErrorPolicy(string(step.OnError))
		if !ok {
			return nil, NewValidationError(i+1, "on_error",
				fmt.Sprintf("on_error must be 'stop' or 'continue', got %q", step.OnError), ErrConfiguration)
		}
		if override == domain.PolicyInherit && step.ContinueOnError {
			override = domain.PolicyContinue
		}
		step.OnError = override
		step.ContinueOnError = false
	}

	return out, nil
}

// flowPolicy разбирает политику уровня flow. Пустое значение — stop.
func flowPolicy(p domain.ErrorPolicy) (domain.ErrorPolicy, error) {
	policy, ok := domain.ParseErrorPolicy(string(p))
	if !ok {
		return "", NewValidationError(0, "on_error",
			fmt.Sprintf("on_error must be 'stop' or 'continue', got %q", p), ErrConfiguration)
	}
	if policy == domain.PolicyInherit {
		return domain.PolicyStop, nil
	}
	return policy, nil
}

// EffectivePolicy возвращает политику шага: переопределение шага или политику flow.
func EffectivePolicy(flowPolicy domain.ErrorPolicy, step *domain.StepDef) domain.ErrorPolicy {
	if o := step.Override(); o != domain.PolicyInherit {
		return o
	}
	return flowPolicy
}

// CheckActions проверяет, что все action шагов есть в реестре.
// Возвращает все найденные проблемы, объединённые через errors.Join.
func CheckActions(spec *domain.FlowSpec, registry *Registry) error {
	if spec == nil {
		return nil
	}
	var errs []error
	for i := range spec.Steps {
		id := spec.Steps[i].Action
		if !registry.Has(id) {
			errs = append(errs, &StepError{
				Index:    i + 1,
				ActionID: id,
				Err:      ErrUnknownAction,
			})
		}
	}
	return errors.Join(errs...)
}
