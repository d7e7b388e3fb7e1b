package engine

import (
	"context"

	"github.com/shaiso/avantix/internal/domain"
)

// Sink получает события жизненного цикла run.
//
// Engine вызывает Emit синхронно из горутины run, в порядке переходов.
// Реализация не должна влиять на выполнение: ошибки доставки остаются
// внутри sink.
type Sink interface {
	Emit(ctx context.Context, ev domain.Event)
}

// SinkFunc позволяет использовать функцию как Sink.
type SinkFunc func(ctx context.Context, ev domain.Event)

// Emit вызывает f.
func (f SinkFunc) Emit(ctx context.Context, ev domain.Event) {
	f(ctx, ev)
}

// NopSink игнорирует все события.
type NopSink struct{}

// Emit ничего не делает.
func (NopSink) Emit(context.Context, domain.Event) {}

// MultiSink рассылает события нескольким sink по порядку.
type MultiSink []Sink

// NewMultiSink собирает MultiSink, пропуская nil.
func NewMultiSink(sinks ...Sink) MultiSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Emit передаёт событие каждому sink.
func (m MultiSink) Emit(ctx context.Context, ev domain.Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}
