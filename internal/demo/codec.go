package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/composable/internal/journal"
	"github.com/roach88/composable/internal/nav"
)

// ErrUnknownKind is returned when decoding an action kind a codec does not
// know.
var ErrUnknownKind = errors.New("unknown action kind")

// Codecs give every demo action a kind name and a flat JSON object of
// arguments, so actions read the same in scenario files and journals.
// Nested actions join their kinds with a dot: "path.increment" with
// {"id": 0} routes Increment to stack element #0.
var (
	_ journal.Codec[CounterAction] = CounterCodec{}
	_ journal.Codec[TodosAction]   = TodosCodec{}
	_ journal.Codec[AppAction]     = AppCodec{}
)

// fields is the argument object of an encoded action.
type fields map[string]json.RawMessage

func parseFields(payload json.RawMessage) (fields, error) {
	f := fields{}
	if len(payload) == 0 || string(payload) == "null" {
		return f, nil
	}
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("arguments must be an object: %w", err)
	}
	return f, nil
}

func (f fields) decode(name string, dst any) error {
	raw, ok := f[name]
	if !ok {
		return fmt.Errorf("missing argument %q", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("argument %q: %w", name, err)
	}
	return nil
}

func (f fields) intArg(name string) (int, error) {
	var n int
	err := f.decode(name, &n)
	return n, err
}

func (f fields) stringArg(name string) (string, error) {
	var s string
	err := f.decode(name, &s)
	return s, err
}

// flagArg reads an optional boolean argument.
func (f fields) flagArg(name string) (bool, error) {
	if _, ok := f[name]; !ok {
		return false, nil
	}
	var b bool
	err := f.decode(name, &b)
	return b, err
}

func encodeFields(kind string, args map[string]any) (string, json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return kind, payload, nil
}

// nest prefixes an inner encoding and merges extra arguments into it.
func nest(prefix, kind string, payload json.RawMessage, extra map[string]any) (string, json.RawMessage, error) {
	f, err := parseFields(payload)
	if err != nil {
		return "", nil, err
	}
	for k, v := range extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", nil, err
		}
		f[k] = raw
	}
	out, err := json.Marshal(f)
	if err != nil {
		return "", nil, err
	}
	return prefix + "." + kind, out, nil
}

func unknown(kind string) error {
	return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// CounterCodec encodes CounterAction.
type CounterCodec struct{}

// Encode implements journal.Codec.
func (CounterCodec) Encode(action CounterAction) (string, json.RawMessage, error) {
	switch a := action.(type) {
	case Increment:
		return encodeFields("increment", nil)
	case Decrement:
		return encodeFields("decrement", nil)
	case IncrementLater:
		return encodeFields("increment_later", map[string]any{"delay_ms": a.Delay.Milliseconds()})
	case DelayedIncrement:
		return encodeFields("delayed_increment", nil)
	case CancelIncrement:
		return encodeFields("cancel_increment", nil)
	case CloseCounter:
		return encodeFields("close", nil)
	default:
		return "", nil, fmt.Errorf("encode counter action %T: %w", action, ErrUnknownKind)
	}
}

// Decode implements journal.Codec.
func (CounterCodec) Decode(kind string, payload json.RawMessage) (CounterAction, error) {
	f, err := parseFields(payload)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "increment":
		return Increment{}, nil
	case "decrement":
		return Decrement{}, nil
	case "increment_later":
		ms, err := f.intArg("delay_ms")
		if err != nil {
			return nil, err
		}
		return IncrementLater{Delay: time.Duration(ms) * time.Millisecond}, nil
	case "delayed_increment":
		return DelayedIncrement{}, nil
	case "cancel_increment":
		return CancelIncrement{}, nil
	case "close":
		return CloseCounter{}, nil
	default:
		return nil, unknown(kind)
	}
}

// TodosCodec encodes TodosAction. Row actions carry the row id and, for
// archived rows, "archived": true.
type TodosCodec struct{}

// Encode implements journal.Codec.
func (TodosCodec) Encode(action TodosAction) (string, json.RawMessage, error) {
	switch a := action.(type) {
	case ActiveRow:
		return encodeRow(a.ID, a.Action, false)
	case ArchivedRow:
		return encodeRow(a.ID, a.Action, true)
	case AddTodo:
		return encodeFields("add", map[string]any{"name": a.Name})
	case RemoveTodo:
		return encodeFields("remove", map[string]any{"id": a.ID})
	case ArchiveTodo:
		return encodeFields("archive", map[string]any{"id": a.ID})
	case ClearCompleted:
		return encodeFields("clear_completed", nil)
	case Search:
		return encodeFields("search", map[string]any{"query": a.Query})
	case ApplyFilter:
		return encodeFields("apply_filter", map[string]any{"query": a.Query})
	default:
		return "", nil, fmt.Errorf("encode todos action %T: %w", action, ErrUnknownKind)
	}
}

func encodeRow(id int, action TodoAction, archived bool) (string, json.RawMessage, error) {
	args := map[string]any{"id": id}
	if archived {
		args["archived"] = true
	}
	switch a := action.(type) {
	case Rename:
		args["name"] = a.Name
		return encodeFields("rename", args)
	case ToggleDone:
		return encodeFields("toggle_done", args)
	case ToggleTimer:
		return encodeFields("toggle_timer", args)
	case Tick:
		return encodeFields("tick", args)
	default:
		return "", nil, fmt.Errorf("encode row action %T: %w", action, ErrUnknownKind)
	}
}

// Decode implements journal.Codec.
func (TodosCodec) Decode(kind string, payload json.RawMessage) (TodosAction, error) {
	f, err := parseFields(payload)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "add":
		name, err := f.stringArg("name")
		return AddTodo{Name: name}, err
	case "remove":
		id, err := f.intArg("id")
		return RemoveTodo{ID: id}, err
	case "archive":
		id, err := f.intArg("id")
		return ArchiveTodo{ID: id}, err
	case "clear_completed":
		return ClearCompleted{}, nil
	case "search":
		q, err := f.stringArg("query")
		return Search{Query: q}, err
	case "apply_filter":
		q, err := f.stringArg("query")
		return ApplyFilter{Query: q}, err
	}

	var row TodoAction
	switch kind {
	case "rename":
		name, err := f.stringArg("name")
		if err != nil {
			return nil, err
		}
		row = Rename{Name: name}
	case "toggle_done":
		row = ToggleDone{}
	case "toggle_timer":
		row = ToggleTimer{}
	case "tick":
		row = Tick{}
	default:
		return nil, unknown(kind)
	}
	id, err := f.intArg("id")
	if err != nil {
		return nil, err
	}
	archived, err := f.flagArg("archived")
	if err != nil {
		return nil, err
	}
	ea := nav.ElementAction[int, TodoAction]{ID: id, Action: row}
	if archived {
		return ArchivedRow(ea), nil
	}
	return ActiveRow(ea), nil
}

// AppCodec encodes AppAction.
type AppCodec struct{}

// Encode implements journal.Codec.
func (AppCodec) Encode(action AppAction) (string, json.RawMessage, error) {
	switch a := action.(type) {
	case PushCounter:
		return encodeFields("push", map[string]any{"count": a.Count})
	case EditTitle:
		return encodeFields("edit_title", nil)
	case AskReset:
		return encodeFields("ask_reset", nil)
	case SetRequireTitle:
		return encodeFields("require_title", map[string]any{"on": a.On})
	case OpenSettings:
		return encodeFields("open_settings", nil)
	case CloseSettings:
		return encodeFields("close_settings", nil)
	case SettingsMsg:
		kind, payload, err := CounterCodec{}.Encode(a.Action)
		if err != nil {
			return "", nil, err
		}
		return nest("settings", kind, payload, nil)
	case PathAction:
		return encodePath(nav.StackAction[Counter, CounterAction](a))
	case DestinationMsg:
		return encodeDestination(nav.PresentationAction[DestinationAction](a))
	default:
		return "", nil, fmt.Errorf("encode app action %T: %w", action, ErrUnknownKind)
	}
}

func encodePath(sa nav.StackAction[Counter, CounterAction]) (string, json.RawMessage, error) {
	id := uint64(sa.ID)
	switch sa.Kind {
	case nav.StackPopFrom:
		return encodeFields("path.pop_from", map[string]any{"id": id})
	case nav.StackPush:
		return encodeFields("path.push", map[string]any{"id": id, "count": sa.State.Count, "pending": sa.State.Pending})
	default:
		kind, payload, err := CounterCodec{}.Encode(sa.Action)
		if err != nil {
			return "", nil, err
		}
		return nest("path", kind, payload, map[string]any{"id": id})
	}
}

func encodeDestination(pa nav.PresentationAction[DestinationAction]) (string, json.RawMessage, error) {
	if pa.IsDismiss() {
		return encodeFields("destination.dismiss", nil)
	}
	switch a := pa.Action.(type) {
	case ForEditor:
		switch e := a.Action.(type) {
		case EditText:
			return encodeFields("editor.edit_text", map[string]any{"text": e.Text})
		case SaveEdit:
			return encodeFields("editor.save", nil)
		case CancelEdit:
			return encodeFields("editor.cancel", nil)
		}
	case ForConfirm:
		switch a.Action.(type) {
		case ConfirmYes:
			return encodeFields("confirm.yes", nil)
		case ConfirmNo:
			return encodeFields("confirm.no", nil)
		}
	}
	return "", nil, fmt.Errorf("encode destination action %T: %w", pa.Action, ErrUnknownKind)
}

// Decode implements journal.Codec.
func (AppCodec) Decode(kind string, payload json.RawMessage) (AppAction, error) {
	f, err := parseFields(payload)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "push":
		n, err := f.intArg("count")
		return PushCounter{Count: n}, err
	case "edit_title":
		return EditTitle{}, nil
	case "ask_reset":
		return AskReset{}, nil
	case "require_title":
		on, err := f.flagArg("on")
		return SetRequireTitle{On: on}, err
	case "open_settings":
		return OpenSettings{}, nil
	case "close_settings":
		return CloseSettings{}, nil
	case "destination.dismiss":
		return DestinationMsg(nav.DismissAction[DestinationAction]()), nil
	case "editor.edit_text":
		text, err := f.stringArg("text")
		return presented(ForEditor{Action: EditText{Text: text}}), err
	case "editor.save":
		return presented(ForEditor{Action: SaveEdit{}}), nil
	case "editor.cancel":
		return presented(ForEditor{Action: CancelEdit{}}), nil
	case "confirm.yes":
		return presented(ForConfirm{Action: ConfirmYes{}}), nil
	case "confirm.no":
		return presented(ForConfirm{Action: ConfirmNo{}}), nil
	}

	prefix, inner, ok := strings.Cut(kind, ".")
	if !ok {
		return nil, unknown(kind)
	}
	switch prefix {
	case "settings":
		a, err := CounterCodec{}.Decode(inner, payload)
		if err != nil {
			return nil, err
		}
		return SettingsMsg{Action: a}, nil
	case "path":
		return decodePath(inner, f, payload)
	default:
		return nil, unknown(kind)
	}
}

func presented(a DestinationAction) AppAction {
	return DestinationMsg(nav.PresentedAction(a))
}

func decodePath(kind string, f fields, payload json.RawMessage) (AppAction, error) {
	var raw uint64
	if err := f.decode("id", &raw); err != nil {
		return nil, err
	}
	id := nav.StackElementID(raw)
	switch kind {
	case "pop_from":
		return PathAction(nav.PopFrom[Counter, CounterAction](id)), nil
	case "push":
		count, err := f.intArg("count")
		if err != nil {
			return nil, err
		}
		pending, err := f.flagArg("pending")
		if err != nil {
			return nil, err
		}
		return PathAction(nav.Push[Counter, CounterAction](id, Counter{Count: count, Pending: pending})), nil
	default:
		a, err := CounterCodec{}.Decode(kind, payload)
		if err != nil {
			return nil, err
		}
		return PathAction(nav.Element[Counter](id, a)), nil
	}
}
