package inject

import (
	"context"
	"errors"
	"io"
	"reflect"
	"slices"
	"sync"
)

// LifecycleManager tracks components that implement [io.Closer] and closes
// them together, in reverse registration order, so that dependents close
// before their dependencies.
type LifecycleManager struct {
	mu      sync.Mutex
	entries []lifecycleEntry
	next    Handle
	closed  bool
}

// Handle identifies one registration with a [LifecycleManager].
type Handle uint64

type lifecycleEntry struct {
	handle Handle
	closer io.Closer
}

// NewLifecycleManager returns an empty manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// Register tracks c. It fails with [ErrAlreadyClosed] after Close.
func (m *LifecycleManager) Register(c io.Closer) error {
	_, err := m.Track(c)
	return err
}

// Track is like Register, and returns a handle for [LifecycleManager.ReleaseHandle].
func (m *LifecycleManager) Track(c io.Closer) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrAlreadyClosed
	}
	m.next++
	m.entries = append(m.entries, lifecycleEntry{handle: m.next, closer: c})
	return m.next, nil
}

// ReleaseHandle stops tracking the registration h, handing its ownership to
// the caller. It reports whether h was tracked.
func (m *LifecycleManager) ReleaseHandle(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(func(e lifecycleEntry) bool { return e.handle == h })
}

// Release stops tracking c. It reports whether c was tracked. Closers whose
// dynamic value cannot be compared, such as a struct holding a slice in an
// interface field, are never matched; release those with
// [LifecycleManager.ReleaseHandle].
func (m *LifecycleManager) Release(c io.Closer) bool {
	if !reflect.ValueOf(c).Comparable() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(func(e lifecycleEntry) bool {
		return reflect.ValueOf(e.closer).Comparable() && e.closer == c
	})
}

func (m *LifecycleManager) remove(match func(lifecycleEntry) bool) bool {
	i := slices.IndexFunc(m.entries, match)
	if i < 0 {
		return false
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	return true
}

// Len returns the number of tracked closers.
func (m *LifecycleManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close closes every tracked component. Errors are joined. Subsequent
// calls return [ErrAlreadyClosed].
func (m *LifecycleManager) Close() error {
	return m.Shutdown(context.Background())
}

// Shutdown is like Close, but stops early when ctx is done; the remaining
// components are skipped and the context error is included in the result.
func (m *LifecycleManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	var errs []error
	for i := len(m.entries) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.entries[i].closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.entries = nil

	return errors.Join(errs...)
}
