package collators

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyBatch is returned when there is nothing to collate or stack.
var ErrEmptyBatch = errors.New("no examples found in the batch")

// ErrFieldCollision is returned when the text collator produces the pixel field.
var ErrFieldCollision = errors.New("field produced by both the text collator and the image stacker")

// MissingFieldError reports an example that lacks a field other examples, or the
// collator, require.
type MissingFieldError struct {
	Field     string
	Available []string
	Index     int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("item %d doesn't contain '%s' key. Available keys: [%s]", e.Index, e.Field, strings.Join(e.Available, " "))
}

// UnsupportedTypeError reports a field value that is none of the recognized representations.
type UnsupportedTypeError struct {
	Field string
	Type  string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("'%s': unsupported type: %s", e.Field, e.Type)
}

// StackError reports an element that cannot be stacked with the first element of its
// field, because its representation, dtype or shape differs.
type StackError struct {
	Field  string
	Reason string
	Index  int
}

func (e *StackError) Error() string {
	return fmt.Sprintf("'%s': cannot stack item %d: %s", e.Field, e.Index, e.Reason)
}

// RaggedSequenceError reports a nested sequence whose sub-sequences do not all have
// the same length at some depth.
type RaggedSequenceError struct {
	Field string
	Depth int
}

func (e *RaggedSequenceError) Error() string {
	return fmt.Sprintf("'%s': nested sequence is ragged at depth %d", e.Field, e.Depth)
}

// EmptySequenceError reports a nested sequence with no elements at some depth.
type EmptySequenceError struct {
	Field string
	Depth int
}

func (e *EmptySequenceError) Error() string {
	return fmt.Sprintf("'%s': nested sequence is empty at depth %d", e.Field, e.Depth)
}

// UnknownFieldsError is returned under the error policy when a batch carries
// auxiliary fields.
type UnknownFieldsError struct {
	Fields []string
}

func (e *UnknownFieldsError) Error() string {
	return fmt.Sprintf("unknown input names: [%s]", strings.Join(e.Fields, " "))
}
