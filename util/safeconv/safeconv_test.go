package safeconv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamping(t *testing.T) {
	assert.Equal(t, []uint32{0, 5, math.MaxUint32}, Int64SliceToUint32Slice([]int64{-3, 5, math.MaxInt64}))
	assert.Equal(t, int64(math.MaxInt64), Uint64ToInt64(math.MaxUint64))
	assert.Equal(t, int64(7), Uint64ToInt64(7))
}

func TestWidening(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, IntSliceToInt64Slice([]int{1, 2, 3}))
	assert.Equal(t, []int64{101, 0}, Uint32SliceToInt64Slice([]uint32{101, 0}))
	assert.Equal(t, []int{4, -1}, Int64SliceToIntSlice([]int64{4, -1}))
}
