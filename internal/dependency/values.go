// Package dependency provides typed, scoped dependency injection for
// reducers and effects.
//
// A Key names a dependency and carries its live and test defaults. Values is
// an immutable set of overrides plus a mode that selects which default a key
// resolves to when it has no override. Values are threaded explicitly through
// every reduction, so an override made for a child scope is visible to that
// child and to the effects it returns, and to nothing else.
//
//	v := dependency.New(dependency.Test).With(
//	    dependency.Set(dependency.Clock, clock.Clock(testClock)),
//	)
//	now := dependency.Get(v, dependency.Clock).Now()
package dependency

import (
	"fmt"
	"sync"
)

// Mode selects the default a key resolves to.
type Mode int

const (
	// Live resolves keys to their production defaults.
	Live Mode = iota
	// Test resolves keys to their test defaults, which are deterministic or
	// report an issue when used.
	Test
	// Preview resolves keys to their preview defaults, falling back to live.
	Preview
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Test:
		return "test"
	case Preview:
		return "preview"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as produced by String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "live", "":
		return Live, nil
	case "test":
		return Test, nil
	case "preview":
		return Preview, nil
	default:
		return Live, fmt.Errorf("unknown dependency mode %q (want live, test, or preview)", s)
	}
}

// Key identifies a dependency of type T. Keys compare by pointer, so two keys
// with the same name are still distinct.
type Key[T any] struct {
	name    string
	live    func(*Values) T
	test    func(*Values) T
	preview func(*Values) T
}

// KeyOption configures a Key.
type KeyOption[T any] func(*Key[T])

// TestDefault sets the value a key resolves to in Test mode.
func TestDefault[T any](fn func(*Values) T) KeyOption[T] {
	return func(k *Key[T]) { k.test = fn }
}

// PreviewDefault sets the value a key resolves to in Preview mode.
func PreviewDefault[T any](fn func(*Values) T) KeyOption[T] {
	return func(k *Key[T]) { k.preview = fn }
}

// NewKey declares a dependency. live computes the production default; keys
// without a test default use live in every mode.
func NewKey[T any](name string, live func(*Values) T, opts ...KeyOption[T]) *Key[T] {
	k := &Key[T]{name: name, live: live}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Name returns the key's name.
func (k *Key[T]) Name() string { return k.name }

func (k *Key[T]) factory(m Mode) func(*Values) T {
	switch {
	case m == Test && k.test != nil:
		return k.test
	case m == Preview && k.preview != nil:
		return k.preview
	default:
		return k.live
	}
}

// Values is an immutable dependency context.
//
// Defaults are computed at most once per root context and shared by every
// context derived from it with With, so a stateful default such as an
// incrementing UUID generator is the same instance across scopes.
type Values struct {
	mode      Mode
	overrides map[any]any
	defaults  *defaultCache
}

type defaultKey struct {
	key  any
	mode Mode
}

type defaultCache struct {
	mu     sync.Mutex
	values map[defaultKey]any
}

// New creates an empty context in the given mode.
func New(mode Mode) *Values {
	return &Values{
		mode:     mode,
		defaults: &defaultCache{values: make(map[defaultKey]any)},
	}
}

// Mode returns the context's mode.
func (v *Values) Mode() Mode {
	if v == nil {
		return Live
	}
	return v.mode
}

// Override replaces one dependency in a derived context.
type Override func(map[any]any)

// Set overrides key with val.
func Set[T any](key *Key[T], val T) Override {
	return func(m map[any]any) { m[key] = val }
}

// With returns a context that resolves overridden keys to their new values
// and everything else as v does. v itself is unchanged.
func (v *Values) With(overrides ...Override) *Values {
	if v == nil {
		v = New(Live)
	}
	if len(overrides) == 0 {
		return v
	}
	next := &Values{
		mode:      v.mode,
		overrides: make(map[any]any, len(v.overrides)+len(overrides)),
		defaults:  v.defaults,
	}
	for k, val := range v.overrides {
		next.overrides[k] = val
	}
	for _, o := range overrides {
		o(next.overrides)
	}
	return next
}

// Within calls fn with a context derived from v by overrides.
func Within(v *Values, fn func(*Values), overrides ...Override) {
	fn(v.With(overrides...))
}

// Get resolves key in v. A nil context resolves live defaults without caching.
func Get[T any](v *Values, key *Key[T]) T {
	if v == nil {
		return key.live(nil)
	}
	if val, ok := v.overrides[key]; ok {
		return val.(T)
	}

	dk := defaultKey{key: key, mode: v.mode}
	v.defaults.mu.Lock()
	if val, ok := v.defaults.values[dk]; ok {
		v.defaults.mu.Unlock()
		return val.(T)
	}
	v.defaults.mu.Unlock()

	// Computed outside the lock: a factory may resolve other keys.
	computed := key.factory(v.mode)(v)

	v.defaults.mu.Lock()
	defer v.defaults.mu.Unlock()
	if val, ok := v.defaults.values[dk]; ok {
		return val.(T)
	}
	v.defaults.values[dk] = computed
	return computed
}

// Has reports whether key is explicitly overridden in v.
func Has[T any](v *Values, key *Key[T]) bool {
	if v == nil {
		return false
	}
	_, ok := v.overrides[key]
	return ok
}
