// Package store is the runtime that owns application state, serializes
// action processing, and runs the effects reducers return.
//
// # Processing Model
//
// Send appends an action to a FIFO buffer. The goroutine that finds the
// store idle becomes the drain owner: it reduces buffered actions one at a
// time until the buffer is empty, launching each action's effect right after
// its reduction. A Send made while another goroutine is draining (including
// a Send from a subscriber callback or a synchronous Send effect) only
// buffers, so reductions never nest and never run concurrently.
//
// # Effects
//
//   - Send effects are buffered during the launch, before any asynchronous
//     effect of the same launch starts, so they are processed first.
//   - Run effects execute on their own goroutines with a context that is
//     cancelled by Cancel for any enclosing id, by Task.Cancel, or by Close.
//   - The cancellation table maps ids to the live contexts tagged with them.
//     Entries are removed as soon as the tagged subtree completes.
//   - Actions emitted by running effects re-enter the store through the
//     configured Scheduler.
//
// # Scoping
//
// Scope and ScopeIf derive child stores that read through an extract
// function and send through an embed function. Child stores are views: they
// share the root's state, effects, cancellation table, and subscribers.
//
// # Thread Safety
//
// All Store methods are safe for concurrent use. State returns a snapshot
// that later actions do not change: the framework's collections and
// presentations copy their storage on write, and IfLet stores a changed
// child behind a new pointer. Reducers must follow the same rule for state
// they keep behind pointers, maps, or slices. WithState runs its callback
// under the state read lock and must not call Send.
package store
