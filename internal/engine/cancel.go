package engine

import "sync/atomic"

// CancelToken — флаг кооперативной отмены run.
//
// Создаётся контроллером на каждый run. Cancel можно вызывать из любой
// горутины сколько угодно раз. Engine читает флаг только перед запуском
// очередного шага: выполняющийся шаг всегда доходит до конца.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken создаёт неустановленный токен.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel устанавливает флаг отмены.
func (t *CancelToken) Cancel() {
	t.flag.Store(true)
}

// Cancelled возвращает true, если отмена запрошена.
// nil-токен никогда не отменён.
func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}
