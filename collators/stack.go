package collators

import (
	"fmt"
	"reflect"
	"slices"

	"gorgonia.org/tensor"

	"github.com/knights-analytics/vlcollate/options"
)

// StackImages collates per-example images into one tensor whose leading dimension is
// len(values). The representation of the first value picks the strategy:
//   - *tensor.Dense values are stacked along a new leading dimension;
//   - array-like values are converted and stacked;
//   - nested sequences are turned into a single tensor from the whole list, with the
//     element type inferred from the raw numbers (see NestedToDense).
//
// Every value must have the representation, dtype and shape of the first one.
func StackImages(values []any) (*tensor.Dense, error) {
	classified := make([]Value, len(values))
	for i, v := range values {
		classified[i] = ClassifyValue(v)
	}
	return stackImages(options.PixelValuesKey, classified)
}

func stackImages(field string, values []Value) (*tensor.Dense, error) {
	if len(values) == 0 {
		return nil, ErrEmptyBatch
	}
	switch values[0].Kind {
	case KindTensor:
		return stackTensors(field, values)
	case KindArray:
		return stackArrays(field, values)
	case KindNested:
		raw := make([]any, len(values))
		for i, v := range values {
			if err := sameKind(field, i, values[0], v); err != nil {
				return nil, err
			}
			raw[i] = v.Raw
		}
		return NestedToDense(field, raw)
	}
	return nil, &UnsupportedTypeError{Field: field, Type: values[0].TypeName()}
}

// stackAuxiliary collates an auxiliary field. Only tensors and arrays are accepted.
func stackAuxiliary(field string, values []Value) (*tensor.Dense, error) {
	if len(values) == 0 {
		return nil, ErrEmptyBatch
	}
	switch values[0].Kind {
	case KindTensor:
		return stackTensors(field, values)
	case KindArray:
		return stackArrays(field, values)
	}
	return nil, &UnsupportedTypeError{Field: field, Type: values[0].TypeName()}
}

func sameKind(field string, index int, first, v Value) error {
	if v.Kind != first.Kind {
		return &StackError{Field: field, Index: index, Reason: fmt.Sprintf("expected %s, got %s (%s)", first.Kind, v.Kind, v.TypeName())}
	}
	return nil
}

func stackTensors(field string, values []Value) (*tensor.Dense, error) {
	first := values[0].Tensor
	shape := []int(first.Shape())
	others := make([]*tensor.Dense, 0, len(values)-1)
	for i, v := range values {
		if err := sameKind(field, i, values[0], v); err != nil {
			return nil, err
		}
		if v.Tensor.Dtype() != first.Dtype() {
			return nil, &StackError{Field: field, Index: i, Reason: fmt.Sprintf("dtype %s does not match %s", v.Tensor.Dtype(), first.Dtype())}
		}
		if s := []int(v.Tensor.Shape()); !slices.Equal(s, shape) {
			return nil, &StackError{Field: field, Index: i, Reason: fmt.Sprintf("shape %v does not match %v", s, shape)}
		}
		if i > 0 {
			others = append(others, v.Tensor)
		}
	}

	if first.Dims() == 0 {
		return stackScalars(values), nil
	}
	stacked, err := first.Stack(0, others...)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", field, err)
	}
	return stacked, nil
}

// stackScalars stacks 0-d tensors into a vector.
func stackScalars(values []Value) *tensor.Dense {
	backing := reflect.MakeSlice(reflect.SliceOf(values[0].Tensor.Dtype().Type), len(values), len(values))
	for i, v := range values {
		backing.Index(i).Set(reflect.ValueOf(v.Tensor.Data()))
	}
	return tensor.New(tensor.WithShape(len(values)), tensor.WithBacking(backing.Interface()))
}

// stackArrays copies every array into one backing slice, the element type of the
// first array is kept.
func stackArrays(field string, values []Value) (*tensor.Dense, error) {
	shape := values[0].Array.Shape()
	size := shapeSize(shape)
	if size <= 0 {
		return nil, &StackError{Field: field, Index: 0, Reason: fmt.Sprintf("shape %v has no elements", shape)}
	}

	var backing reflect.Value
	for i, v := range values {
		if err := sameKind(field, i, values[0], v); err != nil {
			return nil, err
		}
		if s := v.Array.Shape(); !slices.Equal(s, shape) {
			return nil, &StackError{Field: field, Index: i, Reason: fmt.Sprintf("shape %v does not match %v", s, shape)}
		}
		data := v.Array.Data()
		n, err := backingLen(data)
		if err != nil {
			return nil, &StackError{Field: field, Index: i, Reason: err.Error()}
		}
		if n != size {
			return nil, &StackError{Field: field, Index: i, Reason: fmt.Sprintf("holds %d elements, shape %v needs %d", n, shape, size)}
		}
		if i == 0 {
			backing = reflect.MakeSlice(reflect.TypeOf(data), 0, size*len(values))
		} else if t := reflect.TypeOf(data); t != backing.Type() {
			return nil, &StackError{Field: field, Index: i, Reason: fmt.Sprintf("element type %s does not match %s", t.Elem(), backing.Type().Elem())}
		}
		backing = reflect.AppendSlice(backing, reflect.ValueOf(data))
	}

	return tensor.New(tensor.WithShape(append([]int{len(values)}, shape...)...), tensor.WithBacking(backing.Interface())), nil
}
