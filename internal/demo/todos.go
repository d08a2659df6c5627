package demo

import (
	"context"
	"strings"
	"time"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/ident"
	"github.com/roach88/composable/internal/nav"
	"github.com/roach88/composable/internal/optic"
	"github.com/roach88/composable/internal/reducer"
)

// Todo is one row. A running row counts seconds on the clock dependency.
type Todo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Done    bool   `json:"done"`
	Seconds int    `json:"seconds"`
	Running bool   `json:"running"`
}

// Identity implements ident.Identifiable.
func (t Todo) Identity() int { return t.ID }

// TodoAction is the action type of a Todo row.
type TodoAction interface{ todoAction() }

type (
	// Rename sets the row's name. An empty name is replaced with "Empty"
	// by a follow-up action.
	Rename struct {
		Name string
	}
	// ToggleDone flips the row's done flag.
	ToggleDone struct{}
	// ToggleTimer starts or stops the row's timer.
	ToggleTimer struct{}
	// Tick is sent by a running timer once per second.
	Tick struct{}
)

func (Rename) todoAction()      {}
func (ToggleDone) todoAction()  {}
func (ToggleTimer) todoAction() {}
func (Tick) todoAction()        {}

type timerID struct{}

// NewTodoReducer returns the row reducer.
func NewTodoReducer() reducer.Reducer[Todo, TodoAction] {
	return reducer.Func[Todo, TodoAction](reduceTodo)
}

func reduceTodo(t *Todo, action TodoAction, deps *dependency.Values) effect.Effect[TodoAction] {
	switch a := action.(type) {
	case Rename:
		t.Name = a.Name
		if a.Name == "" {
			return effect.Send[TodoAction](Rename{Name: "Empty"})
		}
	case ToggleDone:
		t.Done = !t.Done
	case ToggleTimer:
		t.Running = !t.Running
		if !t.Running {
			return effect.Cancel[TodoAction](timerID{})
		}
		clk := dependency.Get(deps, dependency.Clock)
		return effect.Cancellable(effect.Run(func(ctx context.Context, send effect.Sender[TodoAction]) error {
			for {
				if err := clk.Sleep(ctx, time.Second); err != nil {
					return err
				}
				send(Tick{})
			}
		}, effect.Named[TodoAction]("timer")), timerID{}, true)
	case Tick:
		t.Seconds++
	}
	return effect.None[TodoAction]()
}

// Todos keeps two lists of rows. Rows in both lists run the same reducer,
// and ids may repeat across lists.
type Todos struct {
	Active   ident.Array[int, Todo] `json:"active"`
	Archived ident.Array[int, Todo] `json:"archived"`
	NextID   int                    `json:"next_id"`
	Query    string                 `json:"query"`
	Filter   string                 `json:"filter"`
}

// NewTodos returns a list with one active row per name, numbered from 1.
func NewTodos(names ...string) Todos {
	s := Todos{NextID: 1}
	for _, name := range names {
		s.Active.Append(Todo{ID: s.NextID, Name: name})
		s.NextID++
	}
	return s
}

// Visible returns the active rows whose name contains the applied filter.
func (s Todos) Visible() []Todo {
	if s.Filter == "" {
		return s.Active.Elements()
	}
	needle := strings.ToLower(s.Filter)
	return s.Active.Filter(func(t Todo) bool {
		return strings.Contains(strings.ToLower(t.Name), needle)
	}).Elements()
}

// TodosAction is the action type of Todos.
type TodosAction interface{ todosAction() }

type (
	// ActiveRow routes a row action to an active row.
	ActiveRow nav.ElementAction[int, TodoAction]
	// ArchivedRow routes a row action to an archived row.
	ArchivedRow nav.ElementAction[int, TodoAction]
	// AddTodo appends an active row.
	AddTodo struct {
		Name string
	}
	// RemoveTodo removes an active row.
	RemoveTodo struct {
		ID int
	}
	// ArchiveTodo moves an active row to the archive, stopping its timer.
	ArchiveTodo struct {
		ID int
	}
	// ClearCompleted removes every done active row.
	ClearCompleted struct{}
	// Search edits the query; the filter follows after a debounce.
	Search struct {
		Query string
	}
	// ApplyFilter is sent by the Search debounce.
	ApplyFilter struct {
		Query string
	}
)

func (ActiveRow) todosAction()      {}
func (ArchivedRow) todosAction()    {}
func (AddTodo) todosAction()        {}
func (RemoveTodo) todosAction()     {}
func (ArchiveTodo) todosAction()    {}
func (ClearCompleted) todosAction() {}
func (Search) todosAction()         {}
func (ApplyFilter) todosAction()    {}

// SearchDebounce is how long Search waits before applying the filter.
const SearchDebounce = 300 * time.Millisecond

type searchID struct{}

var (
	activeRows = optic.Field(func(s *Todos) *ident.Array[int, Todo] { return &s.Active })
	activeRow  = optic.Prism[TodosAction, nav.ElementAction[int, TodoAction]]{
		Embed: func(ea nav.ElementAction[int, TodoAction]) TodosAction { return ActiveRow(ea) },
		Extract: func(a TodosAction) (nav.ElementAction[int, TodoAction], bool) {
			r, ok := a.(ActiveRow)
			return nav.ElementAction[int, TodoAction](r), ok
		},
	}
	archivedRows = optic.Field(func(s *Todos) *ident.Array[int, Todo] { return &s.Archived })
	archivedRow  = optic.Prism[TodosAction, nav.ElementAction[int, TodoAction]]{
		Embed: func(ea nav.ElementAction[int, TodoAction]) TodosAction { return ArchivedRow(ea) },
		Extract: func(a TodosAction) (nav.ElementAction[int, TodoAction], bool) {
			r, ok := a.(ArchivedRow)
			return nav.ElementAction[int, TodoAction](r), ok
		},
	}
)

// NewTodosReducer returns the Todos reducer with both lists embedded.
func NewTodosReducer() reducer.Reducer[Todos, TodosAction] {
	core := reducer.Func[Todos, TodosAction](reduceTodos)
	active := reducer.ForEach(core, activeRows, activeRow, NewTodoReducer())
	return reducer.ForEach(active, archivedRows, archivedRow, NewTodoReducer())
}

func reduceTodos(s *Todos, action TodosAction, deps *dependency.Values) effect.Effect[TodosAction] {
	switch a := action.(type) {
	case AddTodo:
		if s.NextID == 0 {
			s.NextID = 1
		}
		s.Active.Append(Todo{ID: s.NextID, Name: a.Name})
		s.NextID++
	case RemoveTodo:
		s.Active.Remove(a.ID)
	case ArchiveTodo:
		t, ok := s.Active.Remove(a.ID)
		if ok {
			t.Running = false
			s.Archived.UpdateOrAppend(t)
		}
	case ClearCompleted:
		s.Active.RemoveAll(func(t Todo) bool { return t.Done })
	case Search:
		s.Query = a.Query
		clk := dependency.Get(deps, dependency.Clock)
		return effect.Debounce(effect.Send[TodosAction](ApplyFilter{Query: a.Query}), searchID{}, SearchDebounce, clk)
	case ApplyFilter:
		s.Filter = a.Query
	}
	return effect.None[TodosAction]()
}
