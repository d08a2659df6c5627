package store

//go:generate mockgen -destination=mock_observer_test.go -package=store . Observer

// Origin tells where a processed action came from.
type Origin uint8

const (
	// OriginSend marks an action sent by a caller of Send.
	OriginSend Origin = iota + 1
	// OriginEffect marks an action emitted by an effect.
	OriginEffect
)

// String returns "send" or "effect".
func (o Origin) String() string {
	switch o {
	case OriginSend:
		return "send"
	case OriginEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// Event describes one processed action.
type Event struct {
	// Seq is the action's position in processing order, starting at 1.
	Seq int64
	// Parent is the Seq of the action whose effect emitted this action,
	// or zero for actions from Send.
	Parent int64
	Origin Origin
	Action any
	// State is a shallow snapshot of the state right after the reduction.
	// It is only valid for the duration of the ActionProcessed call.
	State any
}

// Observer is notified after every reduction, on the draining goroutine and
// before the action's effects start. Implementations must not call Send.
type Observer interface {
	ActionProcessed(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

// ActionProcessed implements Observer.
func (f ObserverFunc) ActionProcessed(e Event) { f(e) }
