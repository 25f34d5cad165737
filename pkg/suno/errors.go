package suno

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Failure kinds. Use errors.Is against an error returned by the client to
// find the phase that failed.
var (
	ErrHandshake    = errors.New("handshake failed")
	ErrTokenRenewal = errors.New("token renewal failed")
	ErrTransport    = errors.New("transport failed")
	ErrTimeout      = errors.New("timed out")
	ErrQueueTask    = errors.New("queued task failed")
	ErrResponse     = errors.New("unexpected response")
)

// Error is returned by every client operation.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("suno: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StatusError is a non-success status returned by the remote side.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func fail(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify tags a raw call error with its kind. Errors that already carry
// a kind are returned as they are.
func classify(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if isTimeout(err) {
		return fail(op, ErrTimeout, err)
	}
	return fail(op, ErrTransport, err)
}

// classifyCall is like classify but also reports calls aborted through
// Client.Cancel as timeouts.
func classifyCall(ctx context.Context, op string, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, errCanceled) {
		return fail(op, ErrTimeout, fmt.Errorf("%w: %w", cause, err))
	}
	return classify(op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
