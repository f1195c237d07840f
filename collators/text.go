package collators

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"gorgonia.org/tensor"

	"github.com/knights-analytics/vlcollate/options"
	"github.com/knights-analytics/vlcollate/util/safeconv"
)

const (
	InputIDsKey      = "input_ids"
	AttentionMaskKey = "attention_mask"
	LabelsKey        = "labels"
)

// TextCollator merges the textual fields of a batch. Every returned tensor has a
// leading dimension equal to len(batch).
type TextCollator interface {
	Collate(batch []Example) (Batch, error)
}

// PaddingTokenizer is the tokenizer capability needed for padding.
type PaddingTokenizer interface {
	PadTokenID() int64
	PaddingLeft() bool
}

// FixedPadding is a PaddingTokenizer for pre-tokenized data without a tokenizer.
type FixedPadding struct {
	ID   int64
	Left bool
}

func (p FixedPadding) PadTokenID() int64 { return p.ID }
func (p FixedPadding) PaddingLeft() bool { return p.Left }

// TextCollatorWithPadding pads input_ids, attention_mask and labels to a common length.
type TextCollatorWithPadding struct {
	maxLength        *int
	labelIgnoreIndex *int
	padID            int64
	paddingLeft      bool
	truncation       bool
}

// NewTextCollatorWithPadding creates a text collator. Relevant options are WithMaxLength,
// WithTruncation and WithLabelIgnoreIndex; the pad id and padding side come from tk.
func NewTextCollatorWithPadding(tk PaddingTokenizer, opts ...options.WithOption) (*TextCollatorWithPadding, error) {
	if tk == nil {
		return nil, errors.New("a tokenizer is required for padding")
	}
	o, err := options.Apply(opts...)
	if err != nil {
		return nil, err
	}
	return &TextCollatorWithPadding{
		maxLength:        o.MaxLength,
		labelIgnoreIndex: o.LabelIgnoreIndex,
		truncation:       o.Truncation,
		padID:            tk.PadTokenID(),
		paddingLeft:      tk.PaddingLeft(),
	}, nil
}

type textExample struct {
	ids    []int64
	mask   []int64
	labels []int64
}

// Collate pads the text fields of batch. input_ids is required in every example,
// attention_mask defaults to ones and labels must be in all examples or none.
func (c *TextCollatorWithPadding) Collate(batch []Example) (Batch, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	_, hasLabels := batch[0][LabelsKey]

	examples := make([]textExample, len(batch))
	longest := 0
	for i, example := range batch {
		parsed, err := c.parseExample(i, example, hasLabels)
		if err != nil {
			return nil, err
		}
		examples[i] = parsed
		longest = max(longest, len(parsed.ids))
	}

	target := longest
	if c.maxLength != nil {
		target = *c.maxLength
		if !c.truncation {
			target = max(target, longest)
		}
	}
	if target == 0 {
		return nil, fmt.Errorf("'%s': every sequence in the batch is empty", InputIDsKey)
	}

	n := len(batch)
	ids := make([]int64, n*target)
	masks := make([]int64, n*target)
	var labels []int64
	if hasLabels {
		labels = make([]int64, n*target)
	}
	labelPad := c.padID
	if c.labelIgnoreIndex != nil {
		labelPad = int64(*c.labelIgnoreIndex)
	}

	for i, e := range examples {
		length := min(len(e.ids), target)
		offset := 0
		if c.paddingLeft {
			offset = target - length
		}
		row := i * target
		for j := range target {
			k := j - offset
			if k < 0 || k >= length {
				ids[row+j] = c.padID
				masks[row+j] = 0
				if hasLabels {
					labels[row+j] = labelPad
				}
				continue
			}
			ids[row+j] = e.ids[k]
			masks[row+j] = e.mask[k]
			if hasLabels {
				labels[row+j] = e.labels[k]
				if c.labelIgnoreIndex != nil && e.mask[k] == 0 {
					labels[row+j] = labelPad
				}
			}
		}
	}

	collated := Batch{
		InputIDsKey:      tensor.New(tensor.WithShape(n, target), tensor.WithBacking(ids)),
		AttentionMaskKey: tensor.New(tensor.WithShape(n, target), tensor.WithBacking(masks)),
	}
	if hasLabels {
		collated[LabelsKey] = tensor.New(tensor.WithShape(n, target), tensor.WithBacking(labels))
	}
	return collated, nil
}

func (c *TextCollatorWithPadding) parseExample(index int, example Example, hasLabels bool) (textExample, error) {
	var parsed textExample
	raw, ok := example[InputIDsKey]
	if !ok {
		return parsed, &MissingFieldError{Field: InputIDsKey, Index: index, Available: example.Keys()}
	}
	ids, err := toInt64Sequence(InputIDsKey, raw)
	if err != nil {
		return parsed, err
	}
	parsed.ids = ids

	if raw, ok = example[AttentionMaskKey]; ok {
		if parsed.mask, err = toInt64Sequence(AttentionMaskKey, raw); err != nil {
			return parsed, err
		}
		if len(parsed.mask) != len(ids) {
			return parsed, &StackError{Field: AttentionMaskKey, Index: index, Reason: fmt.Sprintf("length %d does not match %s length %d", len(parsed.mask), InputIDsKey, len(ids))}
		}
	} else {
		parsed.mask = make([]int64, len(ids))
		for j := range parsed.mask {
			parsed.mask[j] = 1
		}
	}

	raw, ok = example[LabelsKey]
	switch {
	case ok && !hasLabels:
		return parsed, &StackError{Field: LabelsKey, Index: index, Reason: "labels are set but the first item has none"}
	case !ok && hasLabels:
		return parsed, &MissingFieldError{Field: LabelsKey, Index: index, Available: example.Keys()}
	case ok:
		if parsed.labels, err = toInt64Sequence(LabelsKey, raw); err != nil {
			return parsed, err
		}
		if len(parsed.labels) != len(ids) {
			return parsed, &StackError{Field: LabelsKey, Index: index, Reason: fmt.Sprintf("length %d does not match %s length %d", len(parsed.labels), InputIDsKey, len(ids))}
		}
	}

	if c.truncation && c.maxLength != nil && len(parsed.ids) > *c.maxLength {
		parsed.ids = parsed.ids[:*c.maxLength]
		parsed.mask = parsed.mask[:*c.maxLength]
		if parsed.labels != nil {
			parsed.labels = parsed.labels[:*c.maxLength]
		}
	}
	return parsed, nil
}

// toInt64Sequence reads a one dimensional integer sequence from a slice, a 1-d tensor
// or a 1-d array.
func toInt64Sequence(field string, v any) ([]int64, error) {
	switch x := v.(type) {
	case []int64:
		return x, nil
	case []int:
		return safeconv.IntSliceToInt64Slice(x), nil
	case []uint32:
		return safeconv.Uint32SliceToInt64Slice(x), nil
	case *tensor.Dense:
		if x == nil || x.Dims() != 1 {
			break
		}
		return toInt64Sequence(field, materialize(x).Data())
	case ArrayLike:
		if isNilPointer(x) || len(x.Shape()) != 1 {
			break
		}
		return toInt64Sequence(field, x.Data())
	}

	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Slice {
		return nil, &UnsupportedTypeError{Field: field, Type: fmt.Sprintf("%T", v)}
	}
	out := make([]int64, rv.Len())
	for i := range out {
		id, ok := toInt64(rv.Index(i))
		if !ok {
			return nil, &UnsupportedTypeError{Field: field, Type: fmt.Sprintf("%T", v)}
		}
		out[i] = id
	}
	return out, nil
}

func toInt64(rv reflect.Value) (int64, bool) {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return 0, false
	}
	if rv.Type() == jsonNumberType {
		i, err := strconv.ParseInt(rv.String(), 10, 64)
		return i, err == nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return safeconv.Uint64ToInt64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		// json without UseNumber decodes every number as float64
		f := rv.Float()
		if f == float64(int64(f)) {
			return int64(f), true
		}
	}
	return 0, false
}
