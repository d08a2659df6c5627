// Package demo holds small features built on the framework. They back the
// scenario harness, the journal commands of the CLI, and the end-to-end
// tests of the combinators.
package demo

import (
	"time"

	"github.com/roach88/composable/internal/dependency"
	"github.com/roach88/composable/internal/effect"
	"github.com/roach88/composable/internal/reducer"
)

// Counter is a number with an optional pending delayed increment.
type Counter struct {
	Count   int  `json:"count"`
	Pending bool `json:"pending"`
}

// CounterAction is the action type of Counter.
type CounterAction interface{ counterAction() }

type (
	// Increment adds one.
	Increment struct{}
	// Decrement subtracts one.
	Decrement struct{}
	// IncrementLater schedules a DelayedIncrement, replacing any pending one.
	IncrementLater struct {
		Delay time.Duration
	}
	// DelayedIncrement is sent by the IncrementLater effect.
	DelayedIncrement struct{}
	// CancelIncrement cancels the pending delayed increment.
	CancelIncrement struct{}
	// CloseCounter asks a presented counter to dismiss itself.
	CloseCounter struct{}
)

func (Increment) counterAction()        {}
func (Decrement) counterAction()        {}
func (IncrementLater) counterAction()   {}
func (DelayedIncrement) counterAction() {}
func (CancelIncrement) counterAction()  {}
func (CloseCounter) counterAction()     {}

type delayedIncrementID struct{}

// NewCounterReducer returns the Counter reducer.
func NewCounterReducer() reducer.Reducer[Counter, CounterAction] {
	return reducer.Func[Counter, CounterAction](reduceCounter)
}

func reduceCounter(c *Counter, action CounterAction, deps *dependency.Values) effect.Effect[CounterAction] {
	switch a := action.(type) {
	case Increment:
		c.Count++
	case Decrement:
		c.Count--
	case IncrementLater:
		c.Pending = true
		clk := dependency.Get(deps, dependency.Clock)
		return effect.Debounce(effect.Send[CounterAction](DelayedIncrement{}), delayedIncrementID{}, a.Delay, clk)
	case DelayedIncrement:
		c.Pending = false
		c.Count++
	case CancelIncrement:
		c.Pending = false
		return effect.Cancel[CounterAction](delayedIncrementID{})
	case CloseCounter:
		return reducer.Dismiss[CounterAction](deps)
	}
	return effect.None[CounterAction]()
}
