package actions

import (
	"io"
	"net/http"
	"os"

	"github.com/shaiso/avantix/internal/engine"
)

// Options — зависимости встроенных action.
type Options struct {
	// Out — куда пишет print. По умолчанию os.Stdout.
	Out io.Writer

	// Transport — транспорт http.request. nil — два общих транспорта на
	// реестр (с проверкой TLS и без), клонированных из http.DefaultTransport.
	//
	// Со своим транспортом validate_ssl: false не поддерживается: шаг
	// завершается ошибкой параметров.
	Transport http.RoundTripper
}

// Register добавляет встроенные action в реестр.
func Register(reg *engine.Registry, opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	printOut := &syncWriter{w: out}
	transports := newHTTPTransports()

	reg.Register(ActionPrint, func() engine.Action {
		return &PrintAction{out: printOut}
	})
	reg.Register(ActionWait, func() engine.Action {
		return &WaitAction{}
	})
	reg.Register(ActionContextSet, func() engine.Action {
		return &ContextSetAction{}
	})
	reg.Register(ActionHTTPRequest, func() engine.Action {
		return &HTTPAction{transport: opts.Transport, transports: transports}
	})
}

// DefaultRegistry создаёт реестр со всеми встроенными action.
func DefaultRegistry(opts Options) *engine.Registry {
	reg := engine.NewRegistry()
	Register(reg, opts)
	return reg
}
