package auth

import (
	"context"
	"sync"
)

// LoginTask is an in-flight login. It resolves exactly once, to either a
// session or an error (*LoginError, ErrLoginCancelled, ErrNotReady).
type LoginTask struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	session *Session
	err     error
}

func newLoginTask(cancel context.CancelFunc) *LoginTask {
	return &LoginTask{done: make(chan struct{}), cancel: cancel}
}

func completedTask(s *Session, err error) *LoginTask {
	t := newLoginTask(func() {})
	t.finish(s, err)
	return t
}

func (t *LoginTask) finish(s *Session, err error) {
	t.once.Do(func() {
		t.session = s
		t.err = err
		close(t.done)
	})
}

// Done is closed when the task has resolved.
func (t *LoginTask) Done() <-chan struct{} { return t.done }

// Cancel aborts the login. The gate discards any late result and returns to
// Unauthenticated. Cancelling a resolved task does nothing.
func (t *LoginTask) Cancel() { t.cancel() }

// Wait blocks until the task resolves or ctx is done. Giving up on the wait
// does not cancel the task.
func (t *LoginTask) Wait(ctx context.Context) (*Session, error) {
	select {
	case <-t.done:
		return t.session.Clone(), t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a resolved task, or (nil, nil) if it is
// still running.
func (t *LoginTask) Result() (*Session, error) {
	select {
	case <-t.done:
		return t.session.Clone(), t.err
	default:
		return nil, nil
	}
}
