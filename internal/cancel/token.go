// Package cancel provides a cooperative, idempotent cancellation flag shared
// across the fetch, capture, muxer, and audiobook pipelines.
package cancel

import "sync/atomic"

// Token is a shared one-shot cancellation flag. The zero value is ready to
// use (not canceled). Cancel and IsCanceled use release/acquire ordering
// (guaranteed by atomic.Bool) so that work enqueued before Cancel and
// observed after IsCanceled returns true is visible to the observer.
type Token struct {
	canceled atomic.Bool
}

// New returns a fresh, not-yet-canceled token.
func New() *Token {
	return &Token{}
}

// Cancel flips the token to canceled. It is safe to call more than once;
// only the first call has any effect.
func (t *Token) Cancel() {
	t.canceled.Store(true)
}

// IsCanceled reports whether Cancel has been called.
func (t *Token) IsCanceled() bool {
	return t.canceled.Load()
}
