package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeStrides(t *testing.T) {
	testCases := []struct {
		name     string
		given    Shape
		expected []uint64
	}{
		{"rank0", Shape{}, []uint64{}},
		{"rank1", Shape{4}, []uint64{1}},
		{"rank2", Shape{2, 3}, []uint64{3, 1}},
		{"rank3", Shape{2, 3, 4}, []uint64{12, 4, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.given.Strides())
		})
	}
}

func TestShapeNumel(t *testing.T) {
	assert.Equal(t, uint64(1), Shape{}.Numel())
	assert.Equal(t, uint64(24), Shape{2, 3, 4}.Numel())
}

func TestBroadcastShapeCommutative(t *testing.T) {
	testCases := []struct {
		name string
		a, b Shape
		want Shape
	}{
		{"equal", Shape{2, 3}, Shape{2, 3}, Shape{2, 3}},
		{"scalar-broadcast", Shape{2, 3}, Shape{1}, Shape{2, 3}},
		{"rank-mismatch", Shape{4, 1, 5}, Shape{5}, Shape{4, 1, 5}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ab, err := BroadcastShape(tc.a, tc.b)
			assert.NoError(t, err)
			assert.True(t, ab.Equal(tc.want))

			ba, err := BroadcastShape(tc.b, tc.a)
			assert.NoError(t, err)
			assert.True(t, ba.Equal(tc.want), "broadcast must be commutative")
		})
	}
}

func TestBroadcastShapeIncompatible(t *testing.T) {
	_, err := BroadcastShape(Shape{2, 3}, Shape{4, 3})
	assert.Error(t, err)
	var be *BroadcastError
	assert.ErrorAs(t, err, &be)
}
