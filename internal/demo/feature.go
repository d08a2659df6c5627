package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/composable/internal/journal"
	"github.com/roach88/composable/internal/reducer"
	"github.com/roach88/composable/internal/store"
)

// Feature is a demo feature addressed by name, with actions passed as
// encoded kind and payload pairs. It lets tools drive features without
// knowing their Go types.
type Feature interface {
	Name() string
	Description() string
	// Start creates a store at the feature's initial state.
	Start(opts ...store.Option) Session
	// Encode encodes one of the feature's actions.
	Encode(action any) (kind string, payload json.RawMessage, err error)
	// Record returns an observer writing processed actions into session.
	Record(j *journal.Journal, session string) Recording
	// Replay verifies a recorded session against the feature's reducer.
	Replay(ctx context.Context, j *journal.Journal, session string, opts ...store.Option) (*journal.ReplayResult, error)
}

// Session is a running feature store.
type Session interface {
	Send(kind string, payload json.RawMessage) (*store.Task, error)
	State() any
	Seq() int64
	InFlight() []store.EffectInfo
	Close()
	Shutdown(ctx context.Context) error
}

// Recording is a store.Observer that writes into a journal.
type Recording interface {
	store.Observer
	Err() error
	Written() int
}

type feature[S, A any] struct {
	name        string
	description string
	initial     func() S
	reducer     func() reducer.Reducer[S, A]
	codec       journal.Codec[A]
}

func (f *feature[S, A]) Name() string        { return f.name }
func (f *feature[S, A]) Description() string { return f.description }

func (f *feature[S, A]) Start(opts ...store.Option) Session {
	return &session[S, A]{
		store: store.New(f.initial(), f.reducer(), opts...),
		codec: f.codec,
	}
}

func (f *feature[S, A]) Encode(action any) (string, json.RawMessage, error) {
	a, ok := action.(A)
	if !ok {
		return "", nil, fmt.Errorf("%s: unexpected action type %T", f.name, action)
	}
	return f.codec.Encode(a)
}

func (f *feature[S, A]) Record(j *journal.Journal, session string) Recording {
	return journal.NewRecorder[A](j, session, f.codec)
}

func (f *feature[S, A]) Replay(ctx context.Context, j *journal.Journal, session string, opts ...store.Option) (*journal.ReplayResult, error) {
	return journal.Replay(ctx, j, session, f.initial(), f.reducer(), f.codec, opts...)
}

type session[S, A any] struct {
	store *store.Store[S, A]
	codec journal.Codec[A]
}

func (s *session[S, A]) Send(kind string, payload json.RawMessage) (*store.Task, error) {
	a, err := s.codec.Decode(kind, payload)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", kind, err)
	}
	return s.store.Send(a), nil
}

func (s *session[S, A]) State() any                         { return s.store.State() }
func (s *session[S, A]) Seq() int64                         { return s.store.Seq() }
func (s *session[S, A]) InFlight() []store.EffectInfo       { return s.store.InFlight() }
func (s *session[S, A]) Close()                             { s.store.Close() }
func (s *session[S, A]) Shutdown(ctx context.Context) error { return s.store.Shutdown(ctx) }

var features = []Feature{
	&feature[App, AppAction]{
		name:        "app",
		description: "counter stack with a presented editor, a reset confirmation and optional settings",
		initial:     func() App { return App{} },
		reducer:     NewAppReducer,
		codec:       AppCodec{},
	},
	&feature[Counter, CounterAction]{
		name:        "counter",
		description: "a counter with a debounced delayed increment",
		initial:     func() Counter { return Counter{} },
		reducer:     NewCounterReducer,
		codec:       CounterCodec{},
	},
	&feature[Todos, TodosAction]{
		name:        "todos",
		description: "active and archived rows with per-row timers and a debounced search",
		initial:     func() Todos { return NewTodos("Blob", "Blob Jr.", "Blob Sr.") },
		reducer:     NewTodosReducer,
		codec:       TodosCodec{},
	},
}

// Features returns every demo feature ordered by name.
func Features() []Feature {
	return slices.Clone(features)
}

// Lookup finds a feature by name.
func Lookup(name string) (Feature, bool) {
	for _, f := range features {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Names lists the feature names.
func Names() []string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = f.Name()
	}
	return names
}
