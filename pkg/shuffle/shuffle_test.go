package shuffle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMappedShuffleRecordsNewPositions(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	orig := append([]string(nil), items...)
	mapping := make([]int, len(items))

	MappedShuffle(items, mapping, Default)

	for k, p := range mapping {
		assert.Equal(t, orig[k], items[p], "logical %d should land at physical %d", k, p)
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, mapping)
}

func TestIdentityGenerator(t *testing.T) {
	items := []int{10, 20, 30}
	mapping := make([]int, 3)
	MappedShuffle(items, mapping, Identity)

	assert.Equal(t, []int{10, 20, 30}, items)
	assert.Equal(t, []int{0, 1, 2}, mapping)
}

func TestReverseGenerator(t *testing.T) {
	// Always choosing index 0 rotates the slice left by one.
	items := []int{10, 20, 30}
	mapping := make([]int, 3)
	MappedShuffle(items, mapping, func(int) int { return 0 })

	assert.Equal(t, []int{20, 30, 10}, items)
	assert.Equal(t, []int{2, 0, 1}, mapping)
}

func TestShuffleKeepsElements(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	Shuffle(items, Default)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, items)
}

func TestMappedShuffleLengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		MappedShuffle([]int{1, 2}, make([]int, 1), Default)
	})
}
