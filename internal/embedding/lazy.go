package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers building the underlying embedder until the first Embed call.
// Concurrent first callers wait on a single initialization. A failed
// initialization is not remembered; the next call tries again.
type Lazy struct {
	dims    int
	factory func(ctx context.Context) (Embedder, error)

	mu sync.Mutex
	e  Embedder
}

// NewLazy wraps factory. dims is the width the factory's embedder produces.
func NewLazy(dims int, factory func(ctx context.Context) (Embedder, error)) *Lazy {
	return &Lazy{dims: dims, factory: factory}
}

func (l *Lazy) get(ctx context.Context) (Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.e != nil {
		return l.e, nil
	}
	e, err := l.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	l.e = e
	return e, nil
}

// Embed initializes the embedder if needed and embeds text.
func (l *Lazy) Embed(ctx context.Context, text string) (Vector, error) {
	e, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	v, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) != l.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), l.dims)
	}
	return v, nil
}

func (l *Lazy) Dims() int { return l.dims }

// Initialized reports whether the embedder has been built.
func (l *Lazy) Initialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e != nil
}
