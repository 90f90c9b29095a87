package dice_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/rpgbot/internal/game/dice"
)

// fixedSource always returns val clamped to n-1.
type fixedSource struct{ val int }

func (f *fixedSource) Intn(n int) int {
	if f.val >= n {
		return n - 1
	}
	return f.val
}

func TestBetween_Bounds(t *testing.T) {
	assert.Equal(t, 10, dice.Between(&fixedSource{val: 0}, 10, 20))
	assert.Equal(t, 20, dice.Between(&fixedSource{val: 99}, 10, 20))
	assert.Equal(t, 7, dice.Between(&fixedSource{val: 3}, 7, 7))
}

func TestBetween_SwapsReversedBounds(t *testing.T) {
	assert.Equal(t, 10, dice.Between(&fixedSource{val: 0}, 20, 10))
}

func TestBetween_Property_InRange(t *testing.T) {
	src := dice.NewSeededSource(7)
	rapid.Check(t, func(rt *rapid.T) {
		lo := rapid.IntRange(-1000, 1000).Draw(rt, "lo")
		span := rapid.IntRange(0, 1000).Draw(rt, "span")
		v := dice.Between(src, lo, lo+span)
		assert.GreaterOrEqual(rt, v, lo)
		assert.LessOrEqual(rt, v, lo+span)
	})
}

func TestBetween_FullIntRange(t *testing.T) {
	for _, src := range []dice.Source{&fixedSource{val: 0}, &fixedSource{val: math.MaxInt}, dice.NewSeededSource(3)} {
		v := dice.Between(src, 0, math.MaxInt)
		assert.GreaterOrEqual(t, v, 0)

		v = dice.Between(src, math.MinInt, math.MaxInt)
		assert.GreaterOrEqual(t, v, math.MinInt)
		assert.LessOrEqual(t, v, math.MaxInt)

		v = dice.Between(src, math.MinInt, 0)
		assert.LessOrEqual(t, v, 0)
	}
	assert.Equal(t, math.MinInt, dice.Between(&fixedSource{val: 0}, math.MinInt, math.MaxInt))
	assert.Equal(t, 0, dice.Between(&fixedSource{val: 0}, 0, math.MaxInt))
}

func TestBetween_Property_ExtremeBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lo := rapid.Int().Draw(rt, "lo")
		hi := rapid.Int().Draw(rt, "hi")
		src := dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))
		v := dice.Between(src, lo, hi)
		assert.GreaterOrEqual(rt, v, min(lo, hi))
		assert.LessOrEqual(rt, v, max(lo, hi))
	})
}

func TestChance_Extremes(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 100; i++ {
		assert.False(t, dice.Chance(src, dice.Ratio{Num: 0, Den: 100}))
		assert.True(t, dice.Chance(src, dice.Ratio{Num: 100, Den: 100}))
	}
	assert.False(t, dice.Chance(src, dice.Ratio{Num: 1, Den: 0}))
}

func TestChance_UsesNumeratorAsThreshold(t *testing.T) {
	// Intn(100) -> 1 which is < 2 for a 2% ratio.
	assert.True(t, dice.Chance(&fixedSource{val: 1}, dice.Percent(2)))
	assert.False(t, dice.Chance(&fixedSource{val: 2}, dice.Percent(2)))
}

func TestRatio_Validate(t *testing.T) {
	assert.NoError(t, dice.Percent(2).Validate())
	assert.Error(t, dice.Ratio{Num: 1, Den: 0}.Validate())
	assert.Error(t, dice.Ratio{Num: -1, Den: 10}.Validate())
	assert.Error(t, dice.Ratio{Num: 11, Den: 10}.Validate())
	assert.Equal(t, "2%", dice.Percent(2).String())
}

func TestShuffle_Property_IsPermutation(t *testing.T) {
	src := dice.NewSeededSource(42)
	rapid.Check(t, func(rt *rapid.T) {
		in := rapid.SliceOf(rapid.IntRange(0, 50)).Draw(rt, "in")
		out := make([]int, len(in))
		copy(out, in)
		dice.Shuffle(src, len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		assert.ElementsMatch(rt, in, out)
	})
}

func TestSeededSource_Deterministic(t *testing.T) {
	a := dice.NewSeededSource(99)
	b := dice.NewSeededSource(99)
	for i := 0; i < 50; i++ {
		require.Equal(t, a.Intn(1000), b.Intn(1000))
	}
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestRoller_DelegatesToSource(t *testing.T) {
	r := dice.NewLoggedRoller(&fixedSource{val: 4}, zaptest.NewLogger(t))
	assert.Equal(t, 4, r.Intn(10))
	assert.Equal(t, 2, r.Intn(3))
}
