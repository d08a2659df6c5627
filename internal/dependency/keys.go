package dependency

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/composable/internal/clock"
	"github.com/roach88/composable/internal/issue"
)

// Issues is the reporter the runtime sends application-logic errors to.
var Issues = NewKey("issues", func(*Values) issue.Reporter {
	return issue.LogReporter{}
})

// Logger is the structured logger available to reducers and effects.
var Logger = NewKey("logger", func(*Values) *slog.Logger {
	return slog.Default()
}, TestDefault(func(*Values) *slog.Logger {
	return slog.New(slog.DiscardHandler)
}))

// Clock is the time source for effects. The test default reports an issue
// on use so that time-dependent tests must install a controllable clock.
var Clock = NewKey("clock", func(*Values) clock.Clock {
	return clock.Real{}
}, TestDefault(func(v *Values) clock.Clock {
	return clock.NewUnimplemented(Get(v, Issues))
}), PreviewDefault(func(*Values) clock.Clock {
	return clock.NewImmediate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}))

// UUIDGenerator produces identifiers.
type UUIDGenerator func() uuid.UUID

// IncrementingUUID returns a generator producing
// 00000000-0000-0000-0000-000000000000, ...-000000000001, and so on.
func IncrementingUUID() UUIDGenerator {
	var n atomic.Uint64
	return func() uuid.UUID {
		next := n.Add(1) - 1
		id, err := uuid.Parse(fmt.Sprintf("00000000-0000-0000-0000-%012x", next))
		if err != nil {
			panic(err)
		}
		return id
	}
}

// ConstantUUID returns a generator that always produces id.
func ConstantUUID(id uuid.UUID) UUIDGenerator {
	return func() uuid.UUID { return id }
}

// UUID generates identifiers: random v4 when live, incrementing in tests.
var UUID = NewKey("uuid", func(*Values) UUIDGenerator {
	return uuid.New
}, TestDefault(func(*Values) UUIDGenerator {
	return IncrementingUUID()
}))

// Random is a source of pseudo-random numbers.
type Random interface {
	IntN(n int) int
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int   { return rand.IntN(n) }
func (globalRandom) Float64() float64 { return rand.Float64() }

// lockedRandom serializes access to a seeded generator.
type lockedRandom struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRandom) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRandom) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// SeededRandom returns a deterministic generator safe for concurrent use.
func SeededRandom(seed uint64) Random {
	return &lockedRandom{r: rand.New(rand.NewPCG(seed, seed))}
}

// RandomSource is the random number dependency: global when live, seeded
// with zero in tests.
var RandomSource = NewKey("random", func(*Values) Random {
	return globalRandom{}
}, TestDefault(func(*Values) Random {
	return SeededRandom(0)
}))

// DismissTarget identifies the presentation a child feature may dismiss.
// Presenting combinators install it for the child's reductions.
type DismissTarget struct {
	ID      any
	Present bool
}

// Dismiss is set by presentation combinators for the child they present.
// Outside a presented child it resolves to a zero DismissTarget.
var Dismiss = NewKey("dismiss", func(*Values) DismissTarget {
	return DismissTarget{}
})

// Generations issues presentation generation numbers. The counter starts at
// one; zero means "not yet stamped".
type Generations struct {
	n atomic.Uint64
}

// Next returns the next generation.
func (g *Generations) Next() uint64 {
	return g.n.Add(1)
}

// Generation stamps presented child state with an identity.
var Generation = NewKey("generation", func(*Values) *Generations {
	return &Generations{}
})
