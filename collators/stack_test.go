package collators

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/knights-analytics/vlcollate/options"
)

func image(fill float32, shape ...int) *tensor.Dense {
	backing := make([]float32, shapeSize(shape))
	for i := range backing {
		backing[i] = fill
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

func nestedImage(fill float64) [][][]float64 {
	img := make([][][]float64, 3)
	for c := range img {
		img[c] = [][]float64{{fill, fill}, {fill, fill}}
	}
	return img
}

func TestClassifyValue(t *testing.T) {
	arr, err := NewArray([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	tests := []struct {
		name  string
		value any
		kind  Kind
	}{
		{"tensor", image(0, 2, 2), KindTensor},
		{"array", arr, KindArray},
		{"gonum matrix", mat.NewDense(2, 3, nil), KindArray},
		{"typed nested", [][]float32{{1}}, KindNested},
		{"json nested", []any{[]any{1.0}}, KindNested},
		{"fixed size array", [2]int{1, 2}, KindNested},
		{"string", "pixels", KindUnsupported},
		{"number", 3.5, KindUnsupported},
		{"nil", nil, KindUnsupported},
		{"nil tensor", (*tensor.Dense)(nil), KindUnsupported},
		{"nil array", (*Array)(nil), KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, ClassifyValue(tt.value).Kind)
		})
	}
}

func TestNewArray(t *testing.T) {
	arr, err := NewArray([]int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, arr.Shape())

	_, err = NewArray([]float32{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	_, err = NewArray([]string{"a"})
	assert.Error(t, err)
	_, err = NewArray(4)
	assert.Error(t, err)
	type myFloat float32
	_, err = NewArray([]myFloat{1})
	assert.Error(t, err)
}

func TestStackImagesEmpty(t *testing.T) {
	_, err := StackImages(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	_, err = StackImages([]any{})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestStackImagesTensors(t *testing.T) {
	out, err := StackImages([]any{image(1, 3, 2, 2), image(2, 3, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 2, 2}, out.Shape())
	assert.Equal(t, tensor.Float32, out.Dtype())
	data := out.Data().([]float32)
	assert.Equal(t, float32(1), data[0])
	assert.Equal(t, float32(2), data[12])
}

func TestStackImagesSingleExample(t *testing.T) {
	out, err := StackImages([]any{image(1, 3, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 2, 2}, out.Shape())
}

func TestStackImagesDoesNotAlias(t *testing.T) {
	input := image(1, 2, 2)
	out, err := StackImages([]any{input, image(1, 2, 2)})
	require.NoError(t, err)
	out.Data().([]float32)[0] = 42
	assert.Equal(t, float32(1), input.Data().([]float32)[0])
}

func TestStackImagesArrays(t *testing.T) {
	a, err := NewArray([]uint8{1, 2, 3, 4, 5, 6}, 3, 2)
	require.NoError(t, err)
	b, err := NewArray([]uint8{7, 8, 9, 10, 11, 12}, 3, 2)
	require.NoError(t, err)

	out, err := StackImages([]any{a, b})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 2}, out.Shape())
	assert.Equal(t, tensor.Uint8, out.Dtype(), "array conversion keeps the element type")
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, out.Data())
}

func TestStackImagesGonumMatrix(t *testing.T) {
	out, err := StackImages([]any{
		mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
		mat.NewDense(2, 2, []float64{5, 6, 7, 8}),
	})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2, 2}, out.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, out.Data())
}

func TestStackImagesNested(t *testing.T) {
	out, err := StackImages([]any{nestedImage(0.5), nestedImage(1), nestedImage(2)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 3, 2, 2}, out.Shape())
	assert.Equal(t, tensor.Float32, out.Dtype(), "nested float64 numbers become float32")
}

func TestStackImagesNestedIntegers(t *testing.T) {
	out, err := StackImages([]any{
		[]any{json.Number("1"), json.Number("2")},
		[]any{json.Number("3"), json.Number("4")},
	})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, tensor.Int64, out.Dtype())
	assert.Equal(t, []int64{1, 2, 3, 4}, out.Data())
}

func TestStackImagesUnsupported(t *testing.T) {
	_, err := StackImages([]any{"not an image"})
	var unsupported *UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "pixel_values", unsupported.Field)
	assert.Equal(t, "string", unsupported.Type)
}

func TestStackImagesHeterogeneous(t *testing.T) {
	arr, err := NewArray([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	int64Image := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]int64{1, 2, 3, 4}))

	tests := []struct {
		name   string
		values []any
		index  int
	}{
		{"tensor then array", []any{image(0, 2, 2), arr}, 1},
		{"shape mismatch", []any{image(0, 2, 2), image(0, 2, 2), image(0, 4)}, 2},
		{"column vs flat", []any{image(0, 4, 1), image(0, 4)}, 1},
		{"dtype mismatch", []any{image(0, 2, 2), int64Image}, 1},
		{"nested then tensor", []any{nestedImage(1), image(0, 3, 2, 2)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StackImages(tt.values)
			var stackErr *StackError
			require.ErrorAs(t, err, &stackErr)
			assert.Equal(t, tt.index, stackErr.Index)
		})
	}
}

func TestStackImagesRagged(t *testing.T) {
	_, err := StackImages([]any{
		[][]float32{{1, 2}, {3, 4}},
		[][]float32{{1, 2}, {3}},
	})
	var ragged *RaggedSequenceError
	require.ErrorAs(t, err, &ragged)
	assert.Equal(t, 2, ragged.Depth)

	_, err = StackImages([]any{[]any{1.0, []any{2.0}}})
	require.ErrorAs(t, err, &ragged)
}

func TestStackImagesEmptySequence(t *testing.T) {
	_, err := StackImages([]any{[][]float32{{}}})
	var empty *EmptySequenceError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, options.PixelValuesKey, empty.Field)
	assert.Equal(t, 2, empty.Depth)

	_, err = StackImages([]any{[]float32{}, []float32{}})
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, 1, empty.Depth)
}

func TestStackZeroSizeArrays(t *testing.T) {
	a, err := NewArray([]float32{})
	require.NoError(t, err)
	b, err := NewArray([]float32{}, 2, 0)
	require.NoError(t, err)

	_, err = StackImages([]any{a, a})
	var stackErr *StackError
	require.ErrorAs(t, err, &stackErr)
	assert.Equal(t, 0, stackErr.Index)
	assert.Contains(t, stackErr.Reason, "no elements")

	_, err = stackAuxiliary("boxes", []Value{ClassifyValue(b), ClassifyValue(b)})
	require.ErrorAs(t, err, &stackErr)
	assert.Equal(t, "boxes", stackErr.Field)
}

func TestStackScalarTensors(t *testing.T) {
	values := []Value{
		ClassifyValue(tensor.New(tensor.FromScalar(float32(1.5)))),
		ClassifyValue(tensor.New(tensor.FromScalar(float32(2.5)))),
	}
	out, err := stackAuxiliary("score", values)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, out.Shape())
	assert.Equal(t, []float32{1.5, 2.5}, out.Data())
}

func TestStackAuxiliaryRejectsNested(t *testing.T) {
	_, err := stackAuxiliary("boxes", []Value{ClassifyValue([]float32{1, 2})})
	var unsupported *UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "boxes", unsupported.Field)
	assert.Equal(t, "[]float32", unsupported.Type)
}

func TestNestedToArray(t *testing.T) {
	arr, err := NestedToArray("boxes", []any{[]any{true, false}, []any{false, true}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, arr.Shape())
	assert.Equal(t, []bool{true, false, false, true}, arr.Data())

	arr, err = NestedToArray("mixed", []any{true, json.Number("2"), 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 0.5}, arr.Data())

	_, err = NestedToArray("empty", []any{})
	var empty *EmptySequenceError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "empty", empty.Field)
	_, err = NestedToArray("text", []any{"a", "b"})
	var unsupported *UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)
}
