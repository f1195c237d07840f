package collators

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Example is one training instance's field-to-value mapping prior to batching.
type Example map[string]any

// Keys returns the field names of the example, sorted.
func (e Example) Keys() []string {
	return slices.Sorted(maps.Keys(e))
}

// Batch maps a field name to a stacked tensor whose leading dimension is the batch size.
type Batch map[string]*tensor.Dense

// Keys returns the field names of the batch, sorted.
func (b Batch) Keys() []string {
	return slices.Sorted(maps.Keys(b))
}

// Kind is the representation of a field value.
type Kind int

const (
	KindUnsupported Kind = iota
	// KindTensor is the canonical representation, a *tensor.Dense.
	KindTensor
	// KindArray is a flat numeric buffer with a shape, see ArrayLike.
	KindArray
	// KindNested is a nested numeric sequence such as [][]float32 or json-decoded []any.
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindArray:
		return "array"
	case KindNested:
		return "nested sequence"
	}
	return "unsupported"
}

// ArrayLike is a row-major numeric buffer that is not yet a tensor. Data must
// return a slice of a numeric or bool type whose length is the product of Shape.
type ArrayLike interface {
	Shape() []int
	Data() any
}

// Value is a field value resolved to one of the supported representations.
type Value struct {
	Raw    any
	Tensor *tensor.Dense
	Array  ArrayLike
	Kind   Kind
}

// ClassifyValue resolves v once into its representation. gonum matrices are
// treated as arrays.
func ClassifyValue(v any) Value {
	switch x := v.(type) {
	case *tensor.Dense:
		if x != nil {
			return Value{Raw: v, Kind: KindTensor, Tensor: x}
		}
	case ArrayLike:
		if !isNilPointer(x) {
			return Value{Raw: v, Kind: KindArray, Array: x}
		}
	case mat.Matrix:
		if !isNilPointer(x) {
			return Value{Raw: v, Kind: KindArray, Array: matrixArray{x}}
		}
	}
	if v != nil {
		switch reflect.TypeOf(v).Kind() {
		case reflect.Slice, reflect.Array:
			return Value{Raw: v, Kind: KindNested}
		}
	}
	return Value{Raw: v, Kind: KindUnsupported}
}

// TypeName is the Go type of the raw value, used in error messages.
func (v Value) TypeName() string {
	if v.Raw == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v.Raw)
}

// Shape of a tensor or array value, nil for other kinds.
func (v Value) Shape() []int {
	switch v.Kind {
	case KindTensor:
		return slices.Clone([]int(v.Tensor.Shape()))
	case KindArray:
		return v.Array.Shape()
	}
	return nil
}

// Array is the default ArrayLike implementation.
type Array struct {
	data  any
	shape []int
}

// NewArray wraps a flat numeric slice. Without a shape the array is one dimensional.
func NewArray(data any, shape ...int) (*Array, error) {
	n, err := backingLen(data)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		shape = []int{n}
	}
	if size := shapeSize(shape); size != n {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, size, n)
	}
	return &Array{data: data, shape: slices.Clone(shape)}, nil
}

func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

func (a *Array) Data() any {
	return a.data
}

type matrixArray struct {
	m mat.Matrix
}

func (a matrixArray) Shape() []int {
	r, c := a.m.Dims()
	return []int{r, c}
}

func (a matrixArray) Data() any {
	r, c := a.m.Dims()
	data := make([]float64, 0, r*c)
	for i := range r {
		for j := range c {
			data = append(data, a.m.At(i, j))
		}
	}
	return data
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func shapeSize(shape []int) int {
	size := 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		size *= d
	}
	return size
}

// backingLen checks that data can back a tensor and returns its length.
func backingLen(data any) (int, error) {
	if data == nil {
		return 0, fmt.Errorf("array data is nil")
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return 0, fmt.Errorf("array data must be a slice, got %T", data)
	}
	if rv.Type().Elem().PkgPath() != "" {
		return 0, fmt.Errorf("array element type %s must be a builtin type", rv.Type().Elem())
	}
	switch rv.Type().Elem().Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Len(), nil
	}
	return 0, fmt.Errorf("array element type %s is not numeric", rv.Type().Elem())
}

// materialize returns a tensor whose Data is exactly its own elements.
func materialize(t *tensor.Dense) *tensor.Dense {
	if t.IsMaterializable() {
		if m, ok := t.Materialize().(*tensor.Dense); ok {
			return m
		}
	}
	return t
}
