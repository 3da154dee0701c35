package analytics

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type memoKey struct{}

type memo struct {
	mu     sync.Mutex
	values map[string]any
}

// WithMemo attaches a request-scoped aggregation memo to ctx. Every aggregate computed
// under the returned context is reused for the rest of the request.
func WithMemo(ctx context.Context) context.Context {
	if memoFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, memoKey{}, &memo{values: make(map[string]any)})
}

func memoFrom(ctx context.Context) *memo {
	m, _ := ctx.Value(memoKey{}).(*memo)
	return m
}

func (m *memo) get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memo) put(key string, v any) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.values[key] = v
	m.mu.Unlock()
}

func singleflightDo(ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	resultChan := group.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}
