package suno

import (
	"context"
	"errors"
	"sync"
)

// errCanceled is the cause of calls aborted through Client.Cancel.
var errCanceled = errors.New("call canceled")

// registry tracks the cancel functions of in-flight calls by trace id.
type registry struct {
	lck     sync.Mutex
	seq     uint64
	cancels map[string]map[uint64]context.CancelCauseFunc
}

func newRegistry() *registry {
	return &registry{
		cancels: map[string]map[uint64]context.CancelCauseFunc{},
	}
}

// add registers cancel under id and returns the function that removes it.
func (r *registry) add(id string, cancel context.CancelCauseFunc) func() {
	r.lck.Lock()
	defer r.lck.Unlock()
	r.seq++
	key := r.seq
	calls, ok := r.cancels[id]
	if !ok {
		calls = map[uint64]context.CancelCauseFunc{}
		r.cancels[id] = calls
	}
	calls[key] = cancel
	return func() {
		r.lck.Lock()
		defer r.lck.Unlock()
		delete(calls, key)
		if cur, ok := r.cancels[id]; ok && len(cur) == 0 {
			delete(r.cancels, id)
		}
	}
}

// stop cancels every call registered under id with errCanceled as cause.
func (r *registry) stop(id string) bool {
	r.lck.Lock()
	calls := r.cancels[id]
	delete(r.cancels, id)
	r.lck.Unlock()
	for _, cancel := range calls {
		cancel(errCanceled)
	}
	return len(calls) > 0
}

func (r *registry) len() int {
	r.lck.Lock()
	defer r.lck.Unlock()
	var n int
	for _, calls := range r.cancels {
		n += len(calls)
	}
	return n
}

type traceKey struct{}

// WithTraceID returns a context whose calls are registered under id, so
// they can be aborted with Client.Cancel.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceKey{}).(string)
	return id, ok && id != ""
}
