package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/avantix/internal/actions"
	"github.com/shaiso/avantix/internal/controller"
	"github.com/shaiso/avantix/internal/domain"
	"github.com/shaiso/avantix/internal/engine"
)

// NewRunCmd создаёт команду локального запуска flow.
//
// Ctrl+C запрашивает отмену: текущий шаг доходит до конца, следующий
// не запускается. Повторный Ctrl+C завершает процесс.
func NewRunCmd(settingsFn func() *Settings, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run FLOW",
		Short: "Run a flow locally",
		Long: `Run a flow locally and wait for the outcome.

FLOW is a file name inside --flows-dir (extension optional) or a path.

Exit codes: 0 completed, 1 failed, 2 stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := settingsFn()
			out := outputFn()

			spec, err := settings.Loader().Load(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				// Следующий сигнал обрабатывается по умолчанию
				<-ctx.Done()
				stop()
			}()

			outcome, err := runLocal(ctx, settings, out, spec)
			if err != nil {
				return err
			}
			return outcomeError(outcome)
		},
	}
}

// runLocal выполняет flow через controller и печатает прогресс.
func runLocal(ctx context.Context, settings *Settings, out *Output, spec *domain.FlowSpec) (domain.Outcome, error) {
	// В режиме --json stdout занят событиями
	printOut := out.Writer()
	if out.JSONMode() {
		printOut = out.errW
	}
	reg := actions.DefaultRegistry(actions.Options{Out: printOut})
	eng := engine.New(engine.Config{Registry: reg, Logger: settings.Logger})
	ctrl := controller.New(controller.Config{Engine: eng, Logger: settings.Logger})

	if _, err := ctrl.Start(ctx, spec); err != nil {
		return domain.Outcome{}, err
	}

	for ev := range ctrl.Events() {
		out.Event(ev, len(spec.Steps))
	}
	return ctrl.Wait(), nil
}

// outcomeError переводит итог run в код выхода.
func outcomeError(o domain.Outcome) error {
	switch o.Status {
	case domain.RunStatusCompleted:
		return nil
	case domain.RunStatusStopped:
		return exitf(ExitStopped, "run stopped before step %d", o.StepIndex)
	default:
		if o.StepIndex == 0 {
			return exitf(ExitFailed, "run failed: %s", o.Error())
		}
		return exitf(ExitFailed, "run failed at step %d: %s", o.StepIndex, o.Error())
	}
}

// NewValidateCmd создаёт команду проверки flow без выполнения.
func NewValidateCmd(settingsFn func() *Settings, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FLOW...",
		Short: "Check flow files for syntax, policies and unknown actions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := settingsFn()
			out := outputFn()
			l := settings.Loader()
			reg := actions.DefaultRegistry(actions.Options{})

			type result struct {
				Flow   string   `json:"flow"`
				Valid  bool     `json:"valid"`
				Errors []string `json:"errors,omitempty"`
			}

			results := make([]result, 0, len(args))
			invalid := 0
			for _, name := range args {
				r := result{Flow: name, Valid: true}
				var errs []error
				if spec, err := l.Load(name); err != nil {
					errs = []error{err}
				} else {
					errs = validateSpec(spec, reg)
				}
				if len(errs) > 0 {
					r.Valid = false
					for _, e := range errs {
						r.Errors = append(r.Errors, e.Error())
					}
					invalid++
				}
				results = append(results, r)
			}

			rows := make([][]string, len(results))
			for i, r := range results {
				status := "OK"
				if !r.Valid {
					status = strings.Join(r.Errors, "; ")
				}
				rows[i] = []string{r.Flow, status}
			}
			out.Print([]string{"FLOW", "RESULT"}, rows, results)

			if invalid > 0 {
				return exitf(ExitFailed, "%d of %d flows invalid", invalid, len(args))
			}
			return nil
		},
	}
}

// validateSpec возвращает все найденные проблемы flow.
func validateSpec(spec *domain.FlowSpec, reg *engine.Registry) []error {
	var errs []error
	if err := engine.Validate(spec); err != nil {
		errs = append(errs, err)
	}
	if err := engine.CheckActions(spec, reg); err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			errs = append(errs, joined.Unwrap()...)
		} else {
			errs = append(errs, err)
		}
	}
	return errs
}

// NewActionsCmd создаёт команду со списком встроенных action.
func NewActionsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List built-in actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ids := actions.DefaultRegistry(actions.Options{}).IDs()

			rows := make([][]string, len(ids))
			for i, id := range ids {
				rows[i] = []string{id}
			}
			out.Print([]string{"ACTION"}, rows, ids)
			return nil
		},
	}
}
