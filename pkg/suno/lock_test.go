package suno

import (
	"context"
	"errors"
	"testing"
)

func TestLock(t *testing.T) {
	l := newLock()
	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() err = %v; want nil", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("acquire() err = %v; want %v", err, context.Canceled)
	}
	l.release()
	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() err = %v; want nil", err)
	}
	l.release()
}
