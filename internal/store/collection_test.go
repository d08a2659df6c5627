package store

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/ident"
	"github.com/roach88/composable/internal/reducer"
)

type item struct {
	ID   int
	Name string
}

func (i item) Identity() int { return i.ID }

type board struct {
	Items ident.Array[int, item]
}

type rename struct {
	ID   int
	Name string
}

var boardReducer = reducer.Func[board, rename](func(s *board, a rename, _ *dependency.Values) effect.Effect[rename] {
	if a.Name == "" {
		s.Items.Remove(a.ID)
	} else {
		s.Items.UpdateOrAppend(item{ID: a.ID, Name: a.Name})
	}
	return effect.None[rename]()
})

func newBoard(t *testing.T, opts ...Option) *Store[board, rename] {
	t.Helper()
	initial := board{Items: ident.NewArray[int, item](item{1, "a"}, item{2, "b"}, item{3, "c"})}
	s := New(initial, reducer.Reducer[board, rename](boardReducer), append([]Option{WithMode(dependency.Test)}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

func sameItems(a, b ident.Array[int, item]) bool {
	return slices.Equal(a.Elements(), b.Elements())
}

func TestObserveSeesEditsInsideACollection(t *testing.T) {
	s := newBoard(t)
	var seen [][]item
	cancel := Observe(s, func(st board) ident.Array[int, item] { return st.Items }, sameItems,
		func(items ident.Array[int, item]) { seen = append(seen, items.Elements()) })
	defer cancel()

	require.NoError(t, s.Send(rename{ID: 2, Name: "B"}).Finish(time.Second))
	require.NoError(t, s.Send(rename{ID: 2, Name: "B"}).Finish(time.Second))
	require.NoError(t, s.Send(rename{ID: 1}).Finish(time.Second))

	assert.Equal(t, [][]item{
		{{1, "a"}, {2, "B"}, {3, "c"}},
		{{2, "B"}, {3, "c"}},
	}, seen)
}

func TestSnapshotsDoNotChangeAfterLaterActions(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
	)
	s := newBoard(t, WithObserver(ObserverFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})))
	before := s.State()

	require.NoError(t, s.Send(rename{ID: 1}).Finish(time.Second))
	require.NoError(t, s.Send(rename{ID: 3, Name: "C"}).Finish(time.Second))

	assert.Equal(t, []item{{1, "a"}, {2, "b"}, {3, "c"}}, before.Items.Elements())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, []item{{2, "b"}, {3, "c"}}, events[0].State.(board).Items.Elements())
	assert.Equal(t, []item{{2, "b"}, {3, "C"}}, events[1].State.(board).Items.Elements())
}

func TestStateCanBeReadWhileActionsRun(t *testing.T) {
	s := newBoard(t)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for id, it := range s.State().Items.All() {
				if id != it.ID {
					t.Errorf("item %d stored under %d", it.ID, id)
					return
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		s.Send(rename{ID: i % 7, Name: "x"})
		s.Send(rename{ID: (i + 3) % 7})
	}
	close(stop)
	wg.Wait()
}
