package history

import (
	"reflect"

	"github.com/roach88/timetravel/internal/ir"
	"github.com/roach88/timetravel/internal/tree"
)

// Target is the store a Manager observes.
//
// Subscribe must invoke fn with the new state after every committed
// change and return a function that cancels the subscription.
// ApplySnapshot must replace the state atomically and notify subscribers
// once. CurrentSnapshot returns the present state.
type Target interface {
	Subscribe(fn func(ir.Snapshot)) (unsubscribe func())
	ApplySnapshot(s ir.Snapshot) error
	CurrentSnapshot() ir.Snapshot
}

// TaggedTarget is a Target that can carry a correlation token from an
// apply to the notification it causes. Notifications not caused by
// ApplyTagged carry the empty token.
type TaggedTarget interface {
	Target
	SubscribeTagged(fn func(s ir.Snapshot, token string)) (unsubscribe func())
	ApplyTagged(s ir.Snapshot, token string) error
}

// ResolverFunc looks a target up by path in some owning structure.
// Returning a nil target, including a nil pointer of a concrete target
// type, is reported as a configuration error.
type ResolverFunc func(path string) (Target, error)

// TreeResolver resolves paths against a tree. The returned targets are
// tagged.
func TreeResolver(t *tree.Tree) ResolverFunc {
	return func(path string) (Target, error) {
		node, err := t.Resolve(path)
		if err != nil {
			return nil, err
		}
		return node, nil
	}
}

// isNilTarget reports whether t is nil or wraps a nil pointer, map,
// slice, func or channel, none of which can be subscribed to.
func isNilTarget(t Target) bool {
	if t == nil {
		return true
	}
	switch v := reflect.ValueOf(t); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

var (
	_ TaggedTarget = (*tree.Tree)(nil)
	_ TaggedTarget = (*tree.Node)(nil)
)
