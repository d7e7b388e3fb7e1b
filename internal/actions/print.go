package actions

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shaiso/avantix/internal/engine"
)

const (
	// ActionPrint — вывод сообщения.
	ActionPrint = "print"

	defaultPrintPrefix = "[RPA]"
)

// PrintAction выводит строку "<prefix> <message>" в writer.
//
// Параметры:
//
//	{
//	    "message": "Hello, {{ .Vars.user }}",
//	    "prefix": "[RPA]"   // необязательно
//	}
//
// message рендерится как шаблон по ExecContext.
type PrintAction struct {
	out *syncWriter
}

// Execute выводит сообщение.
func (a *PrintAction) Execute(_ context.Context, ec *engine.ExecContext, params map[string]any) error {
	prefix := defaultPrintPrefix
	if v, ok := params["prefix"]; ok {
		prefix = fmt.Sprint(v)
	}

	var message string
	if v, ok := params["message"]; ok && v != nil {
		message = fmt.Sprint(v)
	}

	rendered, err := engine.Render(message, engine.NewTemplateData(ec))
	if err != nil {
		return fmt.Errorf("%s: %w", ActionPrint, err)
	}

	line := rendered
	if prefix != "" {
		line = prefix + " " + rendered
	}
	return a.out.println(line)
}

// syncWriter сериализует вывод нескольких run в один writer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) println(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, line)
	return err
}
