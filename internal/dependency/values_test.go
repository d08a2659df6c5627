package dependency

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/composable/internal/clock"
	"github.com/roach88/composable/internal/issue"
)

var greeting = NewKey("greeting", func(*Values) string {
	return "hello"
}, TestDefault(func(*Values) string {
	return "test-hello"
}))

func TestGetResolvesModeDefaults(t *testing.T) {
	assert.Equal(t, "hello", Get(New(Live), greeting))
	assert.Equal(t, "test-hello", Get(New(Test), greeting))
	assert.Equal(t, "hello", Get(New(Preview), greeting))
	assert.Equal(t, "hello", Get(nil, greeting))
}

func TestWithDoesNotMutateParent(t *testing.T) {
	parent := New(Live)
	child := parent.With(Set(greeting, "hi"))

	assert.Equal(t, "hi", Get(child, greeting))
	assert.Equal(t, "hello", Get(parent, greeting))
	assert.True(t, Has(child, greeting))
	assert.False(t, Has(parent, greeting))

	grandchild := child.With()
	assert.Same(t, child, grandchild)
}

func TestWithin(t *testing.T) {
	var seen string
	Within(New(Live), func(v *Values) {
		seen = Get(v, greeting)
	}, Set(greeting, "scoped"))
	assert.Equal(t, "scoped", seen)
}

func TestDefaultsSharedAcrossDerivedValues(t *testing.T) {
	root := New(Test)
	derived := root.With(Set(greeting, "x"))

	gen := Get(root, UUID)
	assert.Equal(t, uuid.MustParse("00000000-0000-0000-0000-000000000000"), gen())
	// The derived context shares the same generator instance.
	assert.Equal(t, uuid.MustParse("00000000-0000-0000-0000-000000000001"), Get(derived, UUID)())
	assert.Same(t, Get(root, Generation), Get(derived, Generation))
}

func TestTestClockDefaultReports(t *testing.T) {
	c := issue.NewCollector()
	v := New(Test).With(Set[issue.Reporter](Issues, c))
	_ = Get(v, Clock).Now()
	assert.Equal(t, 1, c.Len())

	tc := clock.NewTest(time.Unix(0, 0))
	v = v.With(Set[clock.Clock](Clock, tc))
	assert.Equal(t, time.Unix(0, 0), Get(v, Clock).Now())
	assert.Equal(t, 1, c.Len())
}

func TestSeededRandomDeterministic(t *testing.T) {
	a, b := SeededRandom(42), SeededRandom(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}

func TestGenerationsStartAtOne(t *testing.T) {
	g := Get(New(Live), Generation)
	assert.Equal(t, uint64(1), g.Next())
	assert.Equal(t, uint64(2), g.Next())
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Live, Test, Preview} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("staging")
	assert.Error(t, err)
}
