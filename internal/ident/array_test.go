package ident

import (
	"cmp"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type todo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (t todo) Identity() int { return t.ID }

func newTodos(ts ...todo) Array[int, todo] { return NewArray[int, todo](ts...) }

func TestNewArrayDuplicatesLastWinsAtFirstPosition(t *testing.T) {
	a := newTodos(todo{1, "a"}, todo{2, "b"}, todo{1, "c"})
	assert.Equal(t, []int{1, 2}, a.IDs())
	got, ok := a.Get(1)
	require.True(t, ok)
	assert.Equal(t, "c", got.Name)
}

func TestAppendRejectsDuplicate(t *testing.T) {
	var a Array[int, todo]
	assert.True(t, a.Append(todo{1, "a"}))
	assert.False(t, a.Append(todo{1, "b"}))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, "a", a.At(0).Name)
}

func TestInsertClamps(t *testing.T) {
	a := newTodos(todo{1, "a"}, todo{2, "b"})
	a.Insert(todo{3, "c"}, -5)
	a.Insert(todo{4, "d"}, 99)
	a.Insert(todo{5, "e"}, 2)
	assert.Equal(t, []int{3, 1, 5, 2, 4}, a.IDs())
}

func TestUpdate(t *testing.T) {
	a := newTodos(todo{1, "a"})
	assert.True(t, a.Update(1, func(e *todo) { e.Name = "z" }))
	assert.False(t, a.Update(9, func(e *todo) {}))
	got, _ := a.Get(1)
	assert.Equal(t, "z", got.Name)

	assert.Panics(t, func() {
		a.Update(1, func(e *todo) { e.ID = 2 })
	})
}

func TestUpdateOrAppend(t *testing.T) {
	a := newTodos(todo{1, "a"})
	old, replaced := a.UpdateOrAppend(todo{1, "b"})
	assert.True(t, replaced)
	assert.Equal(t, "a", old.Name)

	_, replaced = a.UpdateOrAppend(todo{2, "c"})
	assert.False(t, replaced)
	assert.Equal(t, []int{1, 2}, a.IDs())
}

func TestRemove(t *testing.T) {
	a := newTodos(todo{1, "a"}, todo{2, "b"}, todo{3, "c"})

	_, ok := a.Remove(9)
	assert.False(t, ok)
	assert.Equal(t, 3, a.Len())

	removed, ok := a.Remove(2)
	assert.True(t, ok)
	assert.Equal(t, "b", removed.Name)
	assert.Equal(t, []int{1, 3}, a.IDs())
	assert.False(t, a.Contains(2))

	assert.Equal(t, "a", a.RemoveAt(0).Name)
	assert.Equal(t, 1, a.RemoveAll(func(todo) bool { return true }))
	assert.Equal(t, Array[int, todo]{}, a)
}

func TestMoveAndSort(t *testing.T) {
	a := newTodos(todo{1, "c"}, todo{2, "a"}, todo{3, "b"})
	assert.True(t, a.Move(1, 2))
	assert.Equal(t, []int{2, 3, 1}, a.IDs())
	assert.False(t, a.Move(9, 0))

	a.Sort(func(x, y todo) int { return cmp.Compare(y.Name, x.Name) })
	assert.Equal(t, []int{1, 3, 2}, a.IDs())

	idx, ok := a.Index(3)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestFilterAndCloneAreIndependent(t *testing.T) {
	a := newTodos(todo{1, "a"}, todo{2, "b"})
	f := a.Filter(func(e todo) bool { return e.ID == 2 })
	assert.Equal(t, []int{2}, f.IDs())

	c := a.Clone()
	c.Remove(1)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 1, c.Len())
}

func TestAllIteratesInOrder(t *testing.T) {
	a := newTodos(todo{3, "c"}, todo{1, "a"})
	var ids []int
	for id, e := range a.All() {
		ids = append(ids, id)
		assert.Equal(t, id, e.ID)
	}
	assert.Equal(t, []int{3, 1}, ids)
	assert.Equal(t, []todo{{3, "c"}, {1, "a"}}, a.Elements())
}

func TestEqualContentsAreDeeplyEqual(t *testing.T) {
	a := newTodos(todo{1, "a"}, todo{2, "b"})
	a.Remove(2)
	assert.Equal(t, newTodos(todo{1, "a"}), a)
}

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	a := newTodos(todo{2, "b"}, todo{1, "a"})
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":2,"name":"b"},{"id":1,"name":"a"}]`, string(data))

	var back Array[int, todo]
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a.IDs(), back.IDs())

	empty, err := json.Marshal(Array[int, todo]{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestMutationsLeaveEarlierCopiesUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Array[int, todo])
	}{
		{"Remove", func(a *Array[int, todo]) { a.Remove(1) }},
		{"RemoveAt", func(a *Array[int, todo]) { a.RemoveAt(0) }},
		{"RemoveAll", func(a *Array[int, todo]) { a.RemoveAll(func(e todo) bool { return e.ID < 3 }) }},
		{"Update", func(a *Array[int, todo]) { a.Update(2, func(e *todo) { e.Name = "changed" }) }},
		{"UpdateOrAppend", func(a *Array[int, todo]) { a.UpdateOrAppend(todo{3, "changed"}) }},
		{"Append", func(a *Array[int, todo]) { a.Append(todo{4, "d"}) }},
		{"Insert", func(a *Array[int, todo]) { a.Insert(todo{4, "d"}, 0) }},
		{"Move", func(a *Array[int, todo]) { a.Move(3, 0) }},
		{"Sort", func(a *Array[int, todo]) {
			a.Sort(func(x, y todo) int { return cmp.Compare(y.ID, x.ID) })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := newTodos(todo{1, "a"}, todo{2, "b"}, todo{3, "c"})
			snapshot := live

			tt.mutate(&live)

			assert.Equal(t, []int{1, 2, 3}, snapshot.IDs())
			assert.Equal(t, []todo{{1, "a"}, {2, "b"}, {3, "c"}}, snapshot.Elements())
			assert.NotEqual(t, snapshot, live)
		})
	}
}

func TestSnapshotsCanBeReadWhileMutating(t *testing.T) {
	live := newTodos(todo{1, "a"}, todo{2, "b"})
	snapshots := make(chan Array[int, todo], 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for s := range snapshots {
			for id, e := range s.All() {
				assert.Equal(t, id, e.ID)
			}
		}
	}()
	for i := 0; i < 100; i++ {
		snapshots <- live
		live.Update(1, func(e *todo) { e.Name += "!" })
		live.Append(todo{i + 10, "x"})
	}
	close(snapshots)
	<-done
}
