package collators

import (
	"errors"
	"maps"
	"slices"

	"github.com/knights-analytics/vlcollate/diagnostics"
	"github.com/knights-analytics/vlcollate/options"
)

// VisionLanguageCollator collates batches for multi-modal vision-language training:
// text fields are padded by a TextCollator, the pixel field is stacked, and every
// other field found in the batch is stacked as an auxiliary input.
//
// A VisionLanguageCollator holds no per-call state. Collate is safe for concurrent
// use when its TextCollator and diagnostics sink are.
type VisionLanguageCollator struct {
	text          TextCollator
	diagnostics   diagnostics.Sink
	pixelField    string
	unknownFields options.UnknownFieldPolicy
}

// NewVisionLanguageCollator creates a collator padding text with a TextCollatorWithPadding
// built from tk and opts.
func NewVisionLanguageCollator(tk PaddingTokenizer, opts ...options.WithOption) (*VisionLanguageCollator, error) {
	text, err := NewTextCollatorWithPadding(tk, opts...)
	if err != nil {
		return nil, err
	}
	return NewVisionLanguageCollatorFrom(text, opts...)
}

// NewVisionLanguageCollatorFrom creates a collator around an existing TextCollator.
func NewVisionLanguageCollatorFrom(text TextCollator, opts ...options.WithOption) (*VisionLanguageCollator, error) {
	if text == nil {
		return nil, errors.New("a text collator is required")
	}
	o, err := options.Apply(opts...)
	if err != nil {
		return nil, err
	}
	return &VisionLanguageCollator{
		text:          text,
		diagnostics:   o.Diagnostics,
		pixelField:    o.PixelField,
		unknownFields: o.UnknownFields,
	}, nil
}

// PixelField is the name of the mandatory image field.
func (c *VisionLanguageCollator) PixelField() string {
	return c.pixelField
}

// Collate merges batch into one Batch whose tensors all have len(batch) as leading
// dimension. Nothing is returned on error, and the examples are never modified.
func (c *VisionLanguageCollator) Collate(batch []Example) (Batch, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	textBatch, err := c.text.Collate(batch)
	if err != nil {
		return nil, err
	}
	if _, ok := textBatch[c.pixelField]; ok {
		return nil, ErrFieldCollision
	}
	known := make(map[string]struct{}, len(textBatch)+1)
	for name := range textBatch {
		known[name] = struct{}{}
	}
	known[c.pixelField] = struct{}{}

	images := make([]Value, len(batch))
	for i, example := range batch {
		raw, ok := example[c.pixelField]
		if !ok {
			return nil, &MissingFieldError{Field: c.pixelField, Index: i, Available: example.Keys()}
		}
		images[i] = ClassifyValue(raw)
	}
	pixelValues, err := stackImages(c.pixelField, images)
	if err != nil {
		return nil, err
	}

	auxiliary, err := c.collectAuxiliary(batch, known)
	if err != nil {
		return nil, err
	}

	collated := make(Batch, len(textBatch)+1+len(auxiliary))
	maps.Copy(collated, textBatch)
	collated[c.pixelField] = pixelValues
	for _, name := range slices.Sorted(maps.Keys(auxiliary)) {
		values := auxiliary[name]
		shapes := make([][]int, len(values))
		for i, v := range values {
			shapes[i] = v.Shape()
		}
		stacked, err := stackAuxiliary(name, values)
		if err != nil {
			return nil, err
		}
		c.diagnostics.FieldStacked(name, shapes)
		collated[name] = stacked
	}

	c.diagnostics.BatchCollated(len(batch), collated.Keys())
	return collated, nil
}

// collectAuxiliary discovers the fields outside known across the whole batch, then
// requires every example to carry each of them.
func (c *VisionLanguageCollator) collectAuxiliary(batch []Example, known map[string]struct{}) (map[string][]Value, error) {
	discovered := map[string]struct{}{}
	for _, example := range batch {
		for name := range example {
			if _, ok := known[name]; name == "" || ok {
				continue
			}
			discovered[name] = struct{}{}
		}
	}
	if len(discovered) == 0 {
		return nil, nil
	}

	names := slices.Sorted(maps.Keys(discovered))
	switch c.unknownFields {
	case options.UnknownFieldsError:
		return nil, &UnknownFieldsError{Fields: names}
	case options.UnknownFieldsWarn:
		c.diagnostics.UnknownFields(names)
	}

	auxiliary := make(map[string][]Value, len(names))
	for i, example := range batch {
		for _, name := range names {
			raw, ok := example[name]
			if !ok {
				return nil, &MissingFieldError{Field: name, Index: i, Available: example.Keys()}
			}
			auxiliary[name] = append(auxiliary[name], ClassifyValue(raw))
		}
	}
	return auxiliary, nil
}
