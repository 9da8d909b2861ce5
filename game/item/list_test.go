package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	potion = 100 // max stack 10, weight 1
	sword  = 200 // max stack 1, weight 5
	ore    = 300 // max stack 10, weight 2
)

func testCatalog() *StaticCatalog {
	return NewStaticCatalog(
		Definition{DataID: potion, MaxStack: 10, Weight: 1},
		Definition{DataID: sword, MaxStack: 1, Weight: 5},
		Definition{DataID: ore, MaxStack: 10, Weight: 2},
	)
}

// contents strips slot identities so lists can be compared semantically.
func contents(l List) [][2]int {
	out := make([][2]int, len(l))
	for i, s := range l {
		if s.IsEmpty() {
			continue
		}
		out[i] = [2]int{s.DataID, s.Amount}
	}
	return out
}

func TestIncrease_MergeThenSpill(t *testing.T) {
	c := testCatalog()
	lim := Limits{SlotLimit: 4}
	var l List
	l.FillEmptySlots(lim)

	require.False(t, l.WillOverwhelm(c, potion, 5, lim))
	require.True(t, l.Increase(c, NewSlot(potion, 5)))
	l.FillEmptySlots(lim)
	assert.Equal(t, [][2]int{{potion, 5}, {}, {}, {}}, contents(l))

	require.False(t, l.WillOverwhelm(c, potion, 8, lim))
	require.True(t, l.Increase(c, NewSlot(potion, 8)))
	l.FillEmptySlots(lim)
	assert.Equal(t, [][2]int{{potion, 10}, {potion, 3}, {}, {}}, contents(l))
}

func TestIncrease_UnknownItem(t *testing.T) {
	c := testCatalog()
	var l List
	assert.False(t, l.Increase(c, NewSlot(999, 1)))
	assert.Empty(t, l)
}

func TestWillOverwhelm_SlotLimit(t *testing.T) {
	c := testCatalog()
	lim := Limits{SlotLimit: 2}
	l := List{NewSlot(potion, 9), NewSlot(sword, 1)}

	assert.False(t, l.WillOverwhelm(c, potion, 1, lim), "partial stack absorbs")
	assert.True(t, l.WillOverwhelm(c, potion, 2, lim), "no empty slot for the spill")
	assert.True(t, l.WillOverwhelm(c, sword, 1, lim))
	assert.True(t, l.WillOverwhelm(c, potion, 0, lim))
	assert.True(t, l.WillOverwhelm(c, 999, 1, Limits{}))
}

func TestWillOverwhelm_WeightLimit(t *testing.T) {
	c := testCatalog()
	lim := Limits{WeightLimit: 10}
	l := List{NewSlot(ore, 4)} // weight 8

	assert.False(t, l.WillOverwhelm(c, ore, 1, lim))
	assert.True(t, l.WillOverwhelm(c, ore, 2, lim))
	assert.True(t, l.WillOverwhelm(c, sword, 1, lim))
}

func TestOverwhelm_LeavesListUnchanged(t *testing.T) {
	c := testCatalog()
	lim := Limits{SlotLimit: 2, WeightLimit: 50}
	l := List{NewSlot(potion, 10), NewSlot(potion, 10)}
	before := l.Clone()

	for _, amount := range []int{1, 5, 30} {
		if l.WillOverwhelm(c, potion, amount, lim) {
			continue
		}
		t.Fatalf("expected overwhelm for amount %d", amount)
	}
	assert.Equal(t, before, l)
}

func TestDecrease_Conservation(t *testing.T) {
	c := testCatalog()
	var l List
	require.True(t, l.Increase(c, NewSlot(potion, 25)))
	require.Equal(t, 25, l.CountItem(potion))

	decreased, ok := l.Decrease(potion, 12)
	require.True(t, ok)
	assert.Equal(t, 13, l.CountItem(potion))
	assert.Equal(t, map[int]int{0: 10, 1: 2}, decreased)
	assert.True(t, l[0].IsEmpty())
}

func TestDecrease_NotEnough(t *testing.T) {
	c := testCatalog()
	var l List
	require.True(t, l.Increase(c, NewSlot(potion, 7)))
	before := l.Clone()

	_, ok := l.Decrease(potion, 8)
	assert.False(t, ok)
	assert.Equal(t, before, l)

	_, ok = l.Decrease(potion, 7)
	assert.True(t, ok)
	assert.Zero(t, l.CountItem(potion))
}

func TestDecreaseAt(t *testing.T) {
	l := List{NewSlot(potion, 3)}
	assert.False(t, l.DecreaseAt(1, 1))
	assert.False(t, l.DecreaseAt(0, 4))
	assert.True(t, l.DecreaseAt(0, 3))
	assert.True(t, l[0].IsEmpty())
}

func TestSwapOrMerge_Merge(t *testing.T) {
	c := testCatalog()
	l := List{NewSlot(potion, 4), NewSlot(potion, 3)}
	require.True(t, l.SwapOrMerge(c, 0, 1))
	assert.Equal(t, [][2]int{{}, {potion, 7}}, contents(l))
}

func TestSwapOrMerge_MergeWithRemainder(t *testing.T) {
	c := testCatalog()
	l := List{NewSlot(potion, 8), NewSlot(potion, 6)}
	require.True(t, l.SwapOrMerge(c, 0, 1))
	assert.Equal(t, [][2]int{{potion, 4}, {potion, 10}}, contents(l))
}

func TestSwapOrMerge_FullStacksSwap(t *testing.T) {
	c := testCatalog()
	a, b := NewSlot(potion, 10), NewSlot(potion, 10)
	a.Level, b.Level = 1, 2
	l := List{a, b}
	require.True(t, l.SwapOrMerge(c, 0, 1))
	assert.Equal(t, 2, l[0].Level)
	assert.Equal(t, 1, l[1].Level)
	assert.Equal(t, 10, l[0].Amount)
	assert.Equal(t, 10, l[1].Amount)
	assert.NotEqual(t, a.ID, l[1].ID, "swapped slots get new identities")
}

func TestSwapOrMerge_DifferentItemsSwap(t *testing.T) {
	c := testCatalog()
	l := List{NewSlot(potion, 2), NewSlot(sword, 1), Empty()}
	require.True(t, l.SwapOrMerge(c, 0, 1))
	assert.Equal(t, [][2]int{{sword, 1}, {potion, 2}, {}}, contents(l))
	require.True(t, l.SwapOrMerge(c, 1, 2))
	assert.Equal(t, [][2]int{{sword, 1}, {}, {potion, 2}}, contents(l))
	assert.False(t, l.SwapOrMerge(c, 0, 3))
}

func TestFillEmptySlots(t *testing.T) {
	l := List{NewSlot(potion, 1), Empty(), NewSlot(ore, 1), Empty(), Empty()}

	limited := l.Clone()
	limited.FillEmptySlots(Limits{SlotLimit: 6})
	assert.Len(t, limited, 6)

	trimmed := l.Clone()
	trimmed.FillEmptySlots(Limits{SlotLimit: 3})
	assert.Equal(t, [][2]int{{potion, 1}, {}, {ore, 1}}, contents(trimmed))

	compact := l.Clone()
	compact.FillEmptySlots(Limits{})
	assert.Equal(t, [][2]int{{potion, 1}, {ore, 1}}, contents(compact))

	over := List{NewSlot(potion, 1), NewSlot(ore, 1)}
	over.FillEmptySlots(Limits{SlotLimit: 1})
	assert.Len(t, over, 2, "occupied slots are never dropped")

	gappy := List{NewSlot(potion, 1), Empty(), Empty(), NewSlot(ore, 1), Empty()}
	gappy.FillEmptySlots(Limits{SlotLimit: 2})
	assert.Equal(t, [][2]int{{potion, 1}, {}, {}, {ore, 1}}, contents(gappy),
		"interior empties stay so indexes do not shift")
}

func TestClone_IsIndependent(t *testing.T) {
	l := List{NewSlot(potion, 1)}
	cp := l.Clone()
	cp[0].Amount = 9
	assert.Equal(t, 1, l[0].Amount)
	assert.NotNil(t, List(nil).Clone())
}
