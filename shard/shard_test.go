package shard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sites(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("site%d.test", i)
	}
	return out
}

func TestSplit_ConcatenationAndBalance(t *testing.T) {
	for _, n := range []int{0, 1, 7, 24, 25, 26, 100, 1001} {
		for _, k := range []int{1, 2, 3, 25, 40} {
			items := sites(n)
			parts := Split(items, k)
			require.Len(t, parts, k)

			var joined []string
			smallest, largest := n, 0
			for _, p := range parts {
				joined = append(joined, p...)
				smallest = min(smallest, len(p))
				largest = max(largest, len(p))
			}
			if n == 0 {
				assert.Empty(t, joined)
			} else {
				assert.Equal(t, items, joined, "n=%d k=%d", n, k)
			}
			assert.LessOrEqual(t, largest-smallest, 1, "n=%d k=%d", n, k)
		}
	}
}

func TestSplit_RemainderGoesFirst(t *testing.T) {
	parts := Split([]int{1, 2, 3, 4, 5, 6, 7}, 3)
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5}, {6, 7}}, parts)
}

func TestSplit_MoreShardsThanItems(t *testing.T) {
	parts := Split([]int{1, 2}, 4)
	assert.Equal(t, [][]int{{1}, {2}, {}, {}}, parts)
}

func TestSplit_PartitionsDoNotAlias(t *testing.T) {
	items := []int{1, 2, 3, 4}
	parts := Split(items, 2)
	parts[0] = append(parts[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
}

func TestSelect(t *testing.T) {
	got, err := Select(sites(10), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"site4.test", "site5.test", "site6.test"}, got)

	_, err = Select(sites(10), 3, 3)
	assert.Error(t, err)
	_, err = Select(sites(10), 0, 0)
	assert.Error(t, err)
}
