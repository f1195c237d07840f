package datasets

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/phuslu/log"
	"gorgonia.org/tensor"

	"github.com/knights-analytics/vlcollate/backends"
	"github.com/knights-analytics/vlcollate/collators"
	"github.com/knights-analytics/vlcollate/options"
	"github.com/knights-analytics/vlcollate/util/fileutil"
)

// TextKey is the raw text field tokenized at ingestion when the dataset has an encoder.
const TextKey = "text"

var jsonNumbers = jsoniter.Config{
	EscapeHTML:             true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// Encoder tokenizes raw text, *backends.Tokenizer implements it.
type Encoder interface {
	Encode(text string) (backends.Encoding, error)
}

type ExamplePreprocessFunc func([]collators.Example) ([]collators.Example, error)

// MultiModalDataset yields batches of examples ready for a VisionLanguageCollator.
type MultiModalDataset struct {
	sourceFile       io.ReadCloser
	encoder          Encoder
	reader           *bufio.Reader
	preprocessFunc   ExamplePreprocessFunc
	trainingPath     string
	pixelField       string
	trainingExamples []collators.Example
	batchSize        int
	batchN           int
	verbose          bool
}

func (s *MultiModalDataset) SetVerbose(v bool) {
	s.verbose = v
}

// SetPixelField sets the image field, which is left as a nested sequence at ingestion.
func (s *MultiModalDataset) SetPixelField(name string) {
	s.pixelField = name
}

func (s *MultiModalDataset) Validate() error {
	if s.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", s.batchSize)
	}
	if len(s.trainingExamples) == 0 {
		if s.trainingPath == "" {
			return fmt.Errorf("training path is required")
		}
		if filepath.Ext(s.trainingPath) != ".jsonl" {
			return fmt.Errorf("training path must be a .jsonl file")
		}
	}
	return nil
}

// NewMultiModalDataset creates a dataset reading a .jsonl file, local or remote. Each line
// is one example, e.g.
// {"text": "a photo of a cat", "pixel_values": [[[0.1, 0.2], [0.3, 0.4]]], "boxes": [0, 0, 10, 10]}
// When encoder is not nil the text field is replaced by input_ids and attention_mask.
// Json arrays in other non-text fields become *collators.Array values and numbers
// become 0-d tensors, with one element type per field across the batch.
// preprocessFunc, if set, is applied to every batch.
func NewMultiModalDataset(trainingPath string, batchSize int, encoder Encoder, preprocessFunc ExamplePreprocessFunc) (*MultiModalDataset, error) {
	d := &MultiModalDataset{
		trainingPath:   trainingPath,
		batchSize:      batchSize,
		encoder:        encoder,
		preprocessFunc: preprocessFunc,
		pixelField:     options.PixelValuesKey,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	sourceReadCloser, err := fileutil.OpenFile(trainingPath)
	if err != nil {
		return nil, err
	}
	d.reader = bufio.NewReader(sourceReadCloser)
	d.sourceFile = sourceReadCloser
	return d, nil
}

// NewInMemoryMultiModalDataset creates a dataset from examples. The examples go through the
// same ingestion as file lines, into copies.
func NewInMemoryMultiModalDataset(examples []collators.Example, batchSize int, encoder Encoder, preprocessFunc ExamplePreprocessFunc) (*MultiModalDataset, error) {
	if len(examples) == 0 {
		return nil, errors.New("at least one example is required")
	}
	d := &MultiModalDataset{
		trainingExamples: examples,
		batchSize:        batchSize,
		encoder:          encoder,
		preprocessFunc:   preprocessFunc,
		pixelField:       options.PixelValuesKey,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewReaderDataset creates a dataset over a stream of json lines, such as stdin. It cannot be Reset.
func NewReaderDataset(r io.Reader, batchSize int, encoder Encoder) (*MultiModalDataset, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &MultiModalDataset{
		reader:     bufio.NewReader(r),
		batchSize:  batchSize,
		encoder:    encoder,
		pixelField: options.PixelValuesKey,
	}, nil
}

// Reset goes back to the start of the data after an epoch.
func (s *MultiModalDataset) Reset() error {
	if s.verbose {
		log.Info().Int("batches", s.batchN).Int("batchSize", s.batchSize).Msg("completed epoch, resetting dataset")
	}
	s.batchN = 0
	if len(s.trainingExamples) > 0 {
		return nil
	}
	if s.trainingPath == "" {
		return errors.New("a streaming dataset cannot be reset")
	}
	if err := s.sourceFile.Close(); err != nil {
		return err
	}
	sourceReadCloser, err := fileutil.OpenFile(s.trainingPath)
	if err != nil {
		return err
	}
	s.sourceFile = sourceReadCloser
	s.reader = bufio.NewReader(sourceReadCloser)
	return nil
}

// YieldRaw returns the next batch of examples. The last batch may be short, after it
// YieldRaw returns io.EOF until Reset is called.
func (s *MultiModalDataset) YieldRaw() ([]collators.Example, error) {
	examplesBatch := make([]collators.Example, 0, s.batchSize)
	if len(s.trainingExamples) > 0 {
		start := s.batchN * s.batchSize
		if start >= len(s.trainingExamples) {
			return nil, io.EOF
		}
		end := min(start+s.batchSize, len(s.trainingExamples))
		for _, example := range s.trainingExamples[start:end] {
			ingested, err := s.ingest(example)
			if err != nil {
				return nil, err
			}
			examplesBatch = append(examplesBatch, ingested)
		}
	} else {
		for len(examplesBatch) < s.batchSize {
			lineBytes, readErr := fileutil.ReadLine(s.reader)
			if errors.Is(readErr, io.EOF) {
				if len(examplesBatch) == 0 {
					return nil, io.EOF
				}
				break
			}
			if readErr != nil {
				return nil, readErr
			}
			if len(lineBytes) == 0 {
				continue
			}
			var line map[string]any
			if err := jsonNumbers.Unmarshal(lineBytes, &line); err != nil {
				return nil, fmt.Errorf("failed to parse JSON line: %w", err)
			}
			ingested, err := s.ingest(line)
			if err != nil {
				return nil, err
			}
			examplesBatch = append(examplesBatch, ingested)
		}
	}
	if err := s.resolveAuxiliaries(examplesBatch); err != nil {
		return nil, err
	}
	s.batchN++
	if s.preprocessFunc != nil {
		return s.preprocessFunc(examplesBatch)
	}
	return examplesBatch, nil
}

func (s *MultiModalDataset) Close() error {
	if s.sourceFile != nil {
		return s.sourceFile.Close()
	}
	return nil
}

// ingest copies a raw example, tokenizing its text. Auxiliary values are resolved per batch.
func (s *MultiModalDataset) ingest(raw map[string]any) (collators.Example, error) {
	example := make(collators.Example, len(raw)+1)
	for name, value := range raw {
		switch name {
		case TextKey:
			text, isString := value.(string)
			if s.encoder == nil || !isString {
				example[name] = value
				continue
			}
			encoding, err := s.encoder.Encode(text)
			if err != nil {
				return nil, fmt.Errorf("tokenizing '%s': %w", name, err)
			}
			example[collators.InputIDsKey] = encoding.IDs
			example[collators.AttentionMaskKey] = encoding.AttentionMask
		default:
			example[name] = value
		}
	}
	return example, nil
}

func (s *MultiModalDataset) isAuxiliary(name string) bool {
	switch name {
	case TextKey, s.pixelField, collators.InputIDsKey, collators.AttentionMaskKey, collators.LabelsKey:
		return false
	}
	return true
}

// resolveAuxiliaries converts the json arrays and numbers of every auxiliary field in
// place. Element types are inferred over all values of a field, so [0, 1] and [0.5, 1]
// in the same batch both become float32.
func (s *MultiModalDataset) resolveAuxiliaries(batch []collators.Example) error {
	fields := map[string][]int{}
	for i, example := range batch {
		for name := range example {
			if s.isAuxiliary(name) {
				fields[name] = append(fields[name], i)
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		indexes := fields[name]
		values := make([]any, len(indexes))
		for j, i := range indexes {
			values[j] = batch[i][name]
		}
		resolved, err := resolveField(name, values)
		if err != nil {
			return err
		}
		for j, i := range indexes {
			batch[i][name] = resolved[j]
		}
	}
	return nil
}

// resolveField converts the values of one field together when they are all arrays
// of the same shape or all scalars, and one by one otherwise.
func resolveField(name string, values []any) ([]any, error) {
	allArrays, allScalars := true, true
	for _, v := range values {
		switch v.(type) {
		case []any:
			allScalars = false
		case json.Number, bool:
			allArrays = false
		default:
			allArrays, allScalars = false, false
		}
	}
	if allArrays || allScalars {
		if arr, err := collators.NestedToArray(name, values); err == nil {
			return splitArray(arr, len(values), allScalars)
		}
	}

	resolved := make([]any, len(values))
	for i, v := range values {
		r, err := resolveAuxiliary(name, v)
		if err != nil {
			return nil, err
		}
		resolved[i] = r
	}
	return resolved, nil
}

// splitArray cuts an array of shape (n, ...) back into n values.
func splitArray(arr *collators.Array, n int, scalars bool) ([]any, error) {
	shape := arr.Shape()
	data := reflect.ValueOf(arr.Data())
	size := data.Len() / n
	out := make([]any, n)
	for i := range n {
		part := data.Slice(i*size, (i+1)*size)
		if scalars {
			out[i] = tensor.New(tensor.FromScalar(part.Index(0).Interface()))
			continue
		}
		a, err := collators.NewArray(part.Interface(), shape[1:]...)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func resolveAuxiliary(name string, value any) (any, error) {
	switch v := value.(type) {
	case []any:
		return collators.NestedToArray(name, v)
	case json.Number:
		if i, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return tensor.New(tensor.FromScalar(i)), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("'%s': %w", name, err)
		}
		return tensor.New(tensor.FromScalar(float32(f))), nil
	case bool:
		return tensor.New(tensor.FromScalar(v)), nil
	}
	return value, nil
}
