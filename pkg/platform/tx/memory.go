package tx

import (
	"context"
	"sync"
)

type undoKey struct{}

type undoLog struct {
	fns []func()
}

// MemoryRunner gives in-memory stores all-or-nothing semantics: units of work
// run one at a time and stores register compensations with OnRollback.
type MemoryRunner struct {
	mu sync.Mutex
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

func (m *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(undoKey{}).(*undoLog); nested {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	undo := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey{}, undo)); err != nil {
		for i := len(undo.fns) - 1; i >= 0; i-- {
			undo.fns[i]()
		}
		return err
	}
	return nil
}

// OnRollback registers undo to run if the surrounding MemoryRunner unit fails.
// Outside a unit of work it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	if l, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		l.fns = append(l.fns, undo)
	}
}
