package options

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/knights-analytics/vlcollate/util/fileutil"
)

// FileConfig is the yaml form of the collator options, e.g.
//
//	pixelField: pixel_values
//	maxLength: 512
//	truncation: true
//	labelIgnoreIndex: -100
//	unknownFields: warn
//	padToken: "[PAD]"
//	paddingSide: right
//	tokenizerRuntime: GO
type FileConfig struct {
	MaxLength        *int   `yaml:"maxLength"`
	LabelIgnoreIndex *int   `yaml:"labelIgnoreIndex"`
	PixelField       string `yaml:"pixelField"`
	UnknownFields    string `yaml:"unknownFields"`
	PadToken         string `yaml:"padToken"`
	PaddingSide      string `yaml:"paddingSide"`
	TokenizerRuntime string `yaml:"tokenizerRuntime"`
	Truncation       bool   `yaml:"truncation"`
}

func (c FileConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxLength, validation.Min(1)),
		validation.Field(&c.UnknownFields, validation.In("warn", "ignore", "error")),
		validation.Field(&c.PaddingSide, validation.In("left", "right")),
		validation.Field(&c.TokenizerRuntime, validation.In("GO", "RUST")),
	)
}

// Options converts the file config into option functions. Empty fields keep the defaults.
func (c FileConfig) Options() []WithOption {
	var opts []WithOption
	if c.PixelField != "" {
		opts = append(opts, WithPixelField(c.PixelField))
	}
	if c.MaxLength != nil {
		opts = append(opts, WithMaxLength(*c.MaxLength))
	}
	opts = append(opts, WithTruncation(c.Truncation))
	if c.LabelIgnoreIndex != nil {
		opts = append(opts, WithLabelIgnoreIndex(*c.LabelIgnoreIndex))
	}
	if c.UnknownFields != "" {
		// already validated
		policy, _ := ParseUnknownFieldPolicy(c.UnknownFields)
		opts = append(opts, WithUnknownFieldPolicy(policy))
	}
	if c.PadToken != "" {
		opts = append(opts, WithPadToken(c.PadToken))
	}
	if c.PaddingSide != "" {
		opts = append(opts, WithPaddingSide(c.PaddingSide))
	}
	if c.TokenizerRuntime != "" {
		opts = append(opts, WithTokenizerRuntime(c.TokenizerRuntime))
	}
	return opts
}

// ParseConfig decodes and validates a yaml config. Unknown keys are rejected.
func ParseConfig(data []byte) (*FileConfig, error) {
	config := &FileConfig{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// LoadConfig reads a yaml config from a local path or s3:// url.
func LoadConfig(path string) ([]WithOption, error) {
	data, err := fileutil.ReadFileBytes(path)
	if err != nil {
		return nil, err
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config.Options(), nil
}
