package demo

import (
	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/nav"
	"github.com/roach88/composable/internal/optic"
	"github.com/roach88/composable/internal/reducer"
)

// App is a navigation root: a stack of counters, one presented destination
// and an optional settings counter.
type App struct {
	Title        string                             `json:"title"`
	RequireTitle bool                               `json:"require_title"`
	Path         nav.StackState[Counter]            `json:"path"`
	Destination  nav.PresentationState[Destination] `json:"destination"`
	Settings     *Counter                           `json:"settings"`
}

// Total sums the counts of every counter on the path.
func (s App) Total() int {
	total := 0
	for _, c := range s.Path.Elements() {
		total += c.Count
	}
	return total
}

// Destination is what App can present.
type Destination interface {
	optic.Tagged
	destination()
}

// Editor edits the app title.
type Editor struct {
	Text string `json:"text"`
}

// Confirm asks whether to reset the app.
type Confirm struct {
	Message string `json:"message"`
}

func (Editor) Tag() string  { return "editor" }
func (Confirm) Tag() string { return "confirm" }
func (Editor) destination()  {}
func (Confirm) destination() {}

// EditorAction is the action type of Editor.
type EditorAction interface{ editorAction() }

type (
	// EditText replaces the editor text.
	EditText struct {
		Text string
	}
	// SaveEdit copies the text into the title and dismisses the editor.
	SaveEdit struct{}
	// CancelEdit dismisses the editor without saving.
	CancelEdit struct{}
)

func (EditText) editorAction()   {}
func (SaveEdit) editorAction()   {}
func (CancelEdit) editorAction() {}

// ConfirmAction is the action type of Confirm.
type ConfirmAction interface{ confirmAction() }

type (
	// ConfirmYes resets the app.
	ConfirmYes struct{}
	// ConfirmNo dismisses the dialog.
	ConfirmNo struct{}
)

func (ConfirmYes) confirmAction() {}
func (ConfirmNo) confirmAction()  {}

// DestinationAction is the action type of Destination.
type DestinationAction interface{ destinationAction() }

type (
	// ForEditor routes an action to a presented Editor.
	ForEditor struct {
		Action EditorAction
	}
	// ForConfirm routes an action to a presented Confirm.
	ForConfirm struct {
		Action ConfirmAction
	}
)

func (ForEditor) destinationAction()  {}
func (ForConfirm) destinationAction() {}

func reduceEditor(e *Editor, action EditorAction, deps *dependency.Values) effect.Effect[EditorAction] {
	switch a := action.(type) {
	case EditText:
		e.Text = a.Text
	case CancelEdit:
		return reducer.Dismiss[EditorAction](deps)
	}
	return effect.None[EditorAction]()
}

func reduceConfirm(_ *Confirm, action ConfirmAction, deps *dependency.Values) effect.Effect[ConfirmAction] {
	if _, ok := action.(ConfirmNo); ok {
		return reducer.Dismiss[ConfirmAction](deps)
	}
	return effect.None[ConfirmAction]()
}

// NewDestinationReducer routes destination actions to the active case.
func NewDestinationReducer() reducer.Reducer[Destination, DestinationAction] {
	editor := optic.Prism[DestinationAction, EditorAction]{
		Embed: func(a EditorAction) DestinationAction { return ForEditor{Action: a} },
		Extract: func(a DestinationAction) (EditorAction, bool) {
			f, ok := a.(ForEditor)
			return f.Action, ok
		},
	}
	confirm := optic.Prism[DestinationAction, ConfirmAction]{
		Embed: func(a ConfirmAction) DestinationAction { return ForConfirm{Action: a} },
		Extract: func(a DestinationAction) (ConfirmAction, bool) {
			f, ok := a.(ForConfirm)
			return f.Action, ok
		},
	}
	return reducer.Combine(
		reducer.IfCaseLet(reducer.Empty[Destination, DestinationAction](),
			optic.Case[Destination, Editor](), editor,
			reducer.Func[Editor, EditorAction](reduceEditor)),
		reducer.IfCaseLet(reducer.Empty[Destination, DestinationAction](),
			optic.Case[Destination, Confirm](), confirm,
			reducer.Func[Confirm, ConfirmAction](reduceConfirm)),
	)
}

// AppAction is the action type of App.
type AppAction interface{ appAction() }

type (
	// PathAction drives the counter stack.
	PathAction nav.StackAction[Counter, CounterAction]
	// DestinationMsg drives the presented destination.
	DestinationMsg nav.PresentationAction[DestinationAction]
	// SettingsMsg routes an action to the settings counter.
	SettingsMsg struct {
		Action CounterAction
	}
	// PushCounter pushes a counter starting at Count.
	PushCounter struct {
		Count int
	}
	// EditTitle presents the editor.
	EditTitle struct{}
	// AskReset presents the reset confirmation.
	AskReset struct{}
	// SetRequireTitle makes dismissing the editor with an empty title
	// present a fresh editor instead.
	SetRequireTitle struct {
		On bool
	}
	// OpenSettings shows the settings counter.
	OpenSettings struct{}
	// CloseSettings hides the settings counter.
	CloseSettings struct{}
)

func (PathAction) appAction()      {}
func (DestinationMsg) appAction()  {}
func (SettingsMsg) appAction()     {}
func (PushCounter) appAction()     {}
func (EditTitle) appAction()       {}
func (AskReset) appAction()        {}
func (SetRequireTitle) appAction() {}
func (OpenSettings) appAction()    {}
func (CloseSettings) appAction()   {}

// ResetMessage is the question asked by AskReset.
const ResetMessage = "Reset everything?"

var (
	appPath = optic.Field(func(s *App) *nav.StackState[Counter] { return &s.Path })
	appStep = optic.Prism[AppAction, nav.StackAction[Counter, CounterAction]]{
		Embed: func(sa nav.StackAction[Counter, CounterAction]) AppAction { return PathAction(sa) },
		Extract: func(a AppAction) (nav.StackAction[Counter, CounterAction], bool) {
			p, ok := a.(PathAction)
			return nav.StackAction[Counter, CounterAction](p), ok
		},
	}
	appDestination = optic.Field(func(s *App) *nav.PresentationState[Destination] { return &s.Destination })
	appPresented   = optic.Prism[AppAction, nav.PresentationAction[DestinationAction]]{
		Embed: func(pa nav.PresentationAction[DestinationAction]) AppAction { return DestinationMsg(pa) },
		Extract: func(a AppAction) (nav.PresentationAction[DestinationAction], bool) {
			d, ok := a.(DestinationMsg)
			return nav.PresentationAction[DestinationAction](d), ok
		},
	}
	appSettings = optic.Field(func(s *App) **Counter { return &s.Settings })
	appSetting  = optic.Prism[AppAction, CounterAction]{
		Embed: func(a CounterAction) AppAction { return SettingsMsg{Action: a} },
		Extract: func(a AppAction) (CounterAction, bool) {
			m, ok := a.(SettingsMsg)
			return m.Action, ok
		},
	}
)

// NewAppReducer returns the App reducer with the stack, the destination and
// the settings counter embedded.
func NewAppReducer() reducer.Reducer[App, AppAction] {
	core := reducer.Func[App, AppAction](reduceApp)
	withPath := reducer.ForEachStack(core, appPath, appStep, NewCounterReducer())
	withDestination := reducer.Presents(withPath, appDestination, appPresented, NewDestinationReducer())
	return reducer.IfLet(withDestination, appSettings, appSetting, NewCounterReducer())
}

func reduceApp(s *App, action AppAction, _ *dependency.Values) effect.Effect[AppAction] {
	switch a := action.(type) {
	case PushCounter:
		s.Path.Append(Counter{Count: a.Count})
	case EditTitle:
		s.Destination.Present(Editor{Text: s.Title})
	case AskReset:
		s.Destination.Present(Confirm{Message: ResetMessage})
	case SetRequireTitle:
		s.RequireTitle = a.On
	case OpenSettings:
		s.Settings = &Counter{}
	case CloseSettings:
		s.Settings = nil
	case DestinationMsg:
		reduceDestinationOutcome(s, nav.PresentationAction[DestinationAction](a))
	}
	return effect.None[AppAction]()
}

// reduceDestinationOutcome applies what the presented destination decided.
func reduceDestinationOutcome(s *App, pa nav.PresentationAction[DestinationAction]) {
	current, presented := s.Destination.Get()
	if pa.IsDismiss() {
		if _, editing := current.(Editor); editing && s.RequireTitle && s.Title == "" {
			s.Destination.Present(Editor{})
		}
		return
	}
	if !presented {
		return
	}
	switch msg := pa.Action.(type) {
	case ForEditor:
		if _, ok := msg.Action.(SaveEdit); ok {
			if ed, ok := current.(Editor); ok {
				s.Title = ed.Text
			}
			s.Destination.Dismiss()
		}
	case ForConfirm:
		if _, ok := msg.Action.(ConfirmYes); ok {
			s.Title = ""
			s.Path.RemoveAll()
			s.Settings = nil
			s.Destination.Dismiss()
		}
	}
}
