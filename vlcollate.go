package vlcollate

import (
	"errors"

	"github.com/knights-analytics/vlcollate/backends"
	"github.com/knights-analytics/vlcollate/collators"
	"github.com/knights-analytics/vlcollate/datasets"
	"github.com/knights-analytics/vlcollate/options"
)

// Collator bundles a tokenizer loaded from disk with the VisionLanguageCollator padding with it.
type Collator struct {
	tokenizer *backends.Tokenizer
	collator  *collators.VisionLanguageCollator
	options   *options.Options
}

// NewCollator loads the tokenizer.json at tokenizerPath (a file or a folder, local or s3) and
// creates a collator using its pad token.
func NewCollator(tokenizerPath string, opts ...options.WithOption) (*Collator, error) {
	parsedOptions, err := options.Apply(opts...)
	if err != nil {
		return nil, err
	}
	tk, err := backends.LoadTokenizer(tokenizerPath, parsedOptions)
	if err != nil {
		return nil, err
	}
	c, err := collators.NewVisionLanguageCollator(tk, opts...)
	if err != nil {
		return nil, errors.Join(err, tk.Destroy())
	}
	return &Collator{tokenizer: tk, collator: c, options: parsedOptions}, nil
}

// Collate merges a batch of examples, see collators.VisionLanguageCollator.
func (c *Collator) Collate(batch []collators.Example) (collators.Batch, error) {
	return c.collator.Collate(batch)
}

func (c *Collator) Tokenizer() *backends.Tokenizer {
	return c.tokenizer
}

// NewDataset opens a .jsonl dataset whose text field is tokenized with the collator's tokenizer.
func (c *Collator) NewDataset(path string, batchSize int) (*datasets.MultiModalDataset, error) {
	d, err := datasets.NewMultiModalDataset(path, batchSize, c.tokenizer, nil)
	if err != nil {
		return nil, err
	}
	d.SetPixelField(c.options.PixelField)
	return d, nil
}

// Destroy releases the tokenizer.
func (c *Collator) Destroy() error {
	if c.tokenizer == nil || c.tokenizer.Destroy == nil {
		return nil
	}
	return c.tokenizer.Destroy()
}
