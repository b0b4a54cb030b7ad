package conductor

import "sync"

// Subscription is a cancelable handle to an event registration. Cancel is
// idempotent: the underlying release runs at most once.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps a release function in a handle. It is exported so
// alternative conductor implementations and test doubles can hand out the
// same handle type.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel releases the registration. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}
