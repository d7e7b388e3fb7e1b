package controller

import (
	"context"
	"sync"

	"github.com/shaiso/avantix/internal/domain"
)

// eventQueue — неограниченная очередь событий между engine и читателем.
//
// Emit никогда не блокирует горутину run. Горутина-переносчик стартует
// при первом обращении к channel: она отдаёт события в порядке поступления
// и закрывает канал после close. Без читателя события просто копятся до
// конца жизни run.
type eventQueue struct {
	once    sync.Once
	mu      sync.Mutex
	pending []domain.Event
	closed  bool
	signal  chan struct{}
	out     chan domain.Event
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		signal: make(chan struct{}, 1),
		out:    make(chan domain.Event),
	}
}

// channel возвращает канал событий, запуская перенос при первом вызове.
func (q *eventQueue) channel() <-chan domain.Event {
	q.once.Do(func() { go q.pump() })
	return q.out
}

// Emit реализует engine.Sink.
func (q *eventQueue) Emit(_ context.Context, ev domain.Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
	q.notify()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

func (q *eventQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, ev := range batch {
			q.out <- ev
		}

		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-q.signal
		}
	}
}
