package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomSeedsRange(t *testing.T) {
	seeds := NewRandomSeeds(1)
	for range 10_000 {
		s := seeds.NextSeed()
		assert.GreaterOrEqual(t, s, int64(1))
		assert.LessOrEqual(t, s, int64(MaxSeed))
	}
}

func TestRandomSeedsDeterministic(t *testing.T) {
	a, b := NewRandomSeeds(42), NewRandomSeeds(42)
	other := NewRandomSeeds(43)

	var differs bool
	for range 20 {
		x := a.NextSeed()
		assert.Equal(t, x, b.NextSeed())
		if x != other.NextSeed() {
			differs = true
		}
	}
	assert.True(t, differs)
}

func TestFixedSeeds(t *testing.T) {
	seeds := NewFixedSeeds(3, 9)
	assert.Equal(t, int64(3), seeds.NextSeed())
	assert.Equal(t, int64(9), seeds.NextSeed())
	assert.Equal(t, int64(9), seeds.NextSeed())

	assert.Equal(t, int64(1), NewFixedSeeds().NextSeed())
}

func TestNewMultiMonitor(t *testing.T) {
	assert.Equal(t, NullMonitor{}, NewMultiMonitor())
	assert.Equal(t, NullMonitor{}, NewMultiMonitor(nil, nil))

	one := &recordingMonitor{}
	assert.Same(t, one, NewMultiMonitor(nil, one))

	two := &recordingMonitor{}
	multi := NewMultiMonitor(one, two)
	multi.OnMatchStart(MatchStart{MatchID: "m1"})
	multi.OnMatchComplete(MatchResult{MatchID: "m1"})
	multi.OnMatchAbandoned(MatchAbandoned{MatchID: "m2"})

	for _, m := range []*recordingMonitor{one, two} {
		assert.Len(t, m.starts, 1)
		assert.Len(t, m.results, 1)
		assert.Len(t, m.abandoned, 1)
	}
}
