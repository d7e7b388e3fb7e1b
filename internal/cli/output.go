package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/avantix/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с заданными writer для данных и сообщений.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Writer возвращает writer для данных.
func (o *Output) Writer() io.Writer {
	return o.w
}

// JSONMode возвращает true, если включён вывод в JSON.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		o.Error(err.Error())
	}
}

// Event выводит событие run: JSON-строкой в режиме --json, иначе
// строкой прогресса в stderr.
func (o *Output) Event(ev domain.Event, stepsTotal int) {
	if o.jsonMode {
		if err := json.NewEncoder(o.w).Encode(ev); err != nil {
			o.Error(err.Error())
		}
		return
	}

	step := fmt.Sprintf("[%d/%d]", ev.StepIndex, stepsTotal)
	switch ev.Type {
	case domain.EventRunStarted:
		fmt.Fprintf(o.errW, "> %s (%d steps, on_error=%s)\n", ev.FlowName, stepsTotal, ev.Policy)
	case domain.EventStepStarted:
		fmt.Fprintf(o.errW, "%s %s\n", step, ev.ActionID)
	case domain.EventStepSucceeded:
		fmt.Fprintf(o.errW, "%s %s ok (%s)\n", step, ev.ActionID, ev.Duration.Round(time.Millisecond))
	case domain.EventStepFailed:
		fmt.Fprintf(o.errW, "%s %s failed (%s): %s\n", step, ev.ActionID, ev.Policy, ev.Message)
	case domain.EventRunStopped:
		fmt.Fprintf(o.errW, "stopped before step %d\n", ev.StepIndex)
	case domain.EventRunFailed:
		fmt.Fprintf(o.errW, "failed: %s\n", ev.Message)
	case domain.EventRunCompleted:
		fmt.Fprintln(o.errW, "completed")
	}
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
