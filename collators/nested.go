package collators

import (
	"encoding/json"
	"reflect"
	"strconv"

	"gorgonia.org/tensor"

	"github.com/knights-analytics/vlcollate/util/safeconv"
)

type leafKind int

const (
	leafBool leafKind = iota + 1
	leafInt
	leafFloat
)

type leaf struct {
	f    float64
	i    int64
	kind leafKind
}

var jsonNumberType = reflect.TypeOf(json.Number(""))

// NestedToDense builds a single tensor from a nested numeric sequence, outer
// dimension included. Unlike array conversion, the element type is inferred from the
// raw numbers: any float gives Float32, integers give Int64, booleans alone give Bool.
func NestedToDense(field string, v any) (*tensor.Dense, error) {
	shape, leaves, err := flattenNested(field, v)
	if err != nil {
		return nil, err
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(inferBacking(leaves))), nil
}

// NestedToArray resolves a nested numeric sequence, typically decoded json, into an Array
// with the same element type inference as NestedToDense.
func NestedToArray(field string, v any) (*Array, error) {
	shape, leaves, err := flattenNested(field, v)
	if err != nil {
		return nil, err
	}
	return &Array{data: inferBacking(leaves), shape: shape}, nil
}

func flattenNested(field string, v any) ([]int, []leaf, error) {
	f := &flattener{field: field, leafDepth: -1}
	if err := f.walk(reflect.ValueOf(v), 0); err != nil {
		return nil, nil, err
	}
	return f.shape, f.leaves, nil
}

type flattener struct {
	field     string
	shape     []int
	leaves    []leaf
	leafDepth int
}

func (f *flattener) walk(rv reflect.Value, depth int) error {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return &UnsupportedTypeError{Field: f.field, Type: "nil"}
	}

	if rv.Type() != jsonNumberType && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		if f.leafDepth >= 0 && depth >= f.leafDepth {
			return &RaggedSequenceError{Field: f.field, Depth: depth}
		}
		n := rv.Len()
		if n == 0 {
			return &EmptySequenceError{Field: f.field, Depth: depth}
		}
		if depth == len(f.shape) {
			f.shape = append(f.shape, n)
		} else if f.shape[depth] != n {
			return &RaggedSequenceError{Field: f.field, Depth: depth}
		}
		for i := range n {
			if err := f.walk(rv.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	l, ok := toLeaf(rv)
	if !ok {
		return &UnsupportedTypeError{Field: f.field, Type: rv.Type().String()}
	}
	if f.leafDepth < 0 {
		f.leafDepth = depth
	} else if f.leafDepth != depth {
		return &RaggedSequenceError{Field: f.field, Depth: depth}
	}
	if depth == 0 {
		// a bare number is not a sequence
		return &UnsupportedTypeError{Field: f.field, Type: rv.Type().String()}
	}
	f.leaves = append(f.leaves, l)
	return nil
}

func toLeaf(rv reflect.Value) (leaf, bool) {
	if rv.Type() == jsonNumberType {
		s := rv.String()
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return leaf{i: i, kind: leafInt}, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return leaf{f: f, kind: leafFloat}, true
		}
		return leaf{}, false
	}
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return leaf{i: 1, kind: leafBool}, true
		}
		return leaf{kind: leafBool}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return leaf{i: rv.Int(), kind: leafInt}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return leaf{i: safeconv.Uint64ToInt64(rv.Uint()), kind: leafInt}, true
	case reflect.Float32, reflect.Float64:
		return leaf{f: rv.Float(), kind: leafFloat}, true
	}
	return leaf{}, false
}

func inferBacking(leaves []leaf) any {
	kind := leafBool
	for _, l := range leaves {
		kind = max(kind, l.kind)
	}
	switch kind {
	case leafFloat:
		out := make([]float32, len(leaves))
		for i, l := range leaves {
			if l.kind == leafFloat {
				out[i] = float32(l.f)
			} else {
				out[i] = float32(l.i)
			}
		}
		return out
	case leafInt:
		out := make([]int64, len(leaves))
		for i, l := range leaves {
			out[i] = l.i
		}
		return out
	default:
		out := make([]bool, len(leaves))
		for i, l := range leaves {
			out[i] = l.i != 0
		}
		return out
	}
}
