package options

import (
	"errors"
	"fmt"

	"github.com/knights-analytics/vlcollate/diagnostics"
)

// PixelValuesKey is the default name of the mandatory image field.
const PixelValuesKey = "pixel_values"

// UnknownFieldPolicy decides what happens when a batch carries auxiliary fields,
// i.e. fields that are neither text collator outputs nor the pixel field.
type UnknownFieldPolicy int

const (
	// UnknownFieldsWarn reports the fields to the diagnostics sink and collates them.
	UnknownFieldsWarn UnknownFieldPolicy = iota
	// UnknownFieldsIgnore collates the fields without reporting them.
	UnknownFieldsIgnore
	// UnknownFieldsError rejects the batch.
	UnknownFieldsError
)

func (p UnknownFieldPolicy) String() string {
	switch p {
	case UnknownFieldsWarn:
		return "warn"
	case UnknownFieldsIgnore:
		return "ignore"
	case UnknownFieldsError:
		return "error"
	}
	return fmt.Sprintf("UnknownFieldPolicy(%d)", int(p))
}

// ParseUnknownFieldPolicy parses "warn", "ignore" or "error".
func ParseUnknownFieldPolicy(s string) (UnknownFieldPolicy, error) {
	switch s {
	case "warn", "":
		return UnknownFieldsWarn, nil
	case "ignore":
		return UnknownFieldsIgnore, nil
	case "error":
		return UnknownFieldsError, nil
	}
	return 0, fmt.Errorf("unknown field policy %q not recognized", s)
}

type Options struct {
	Diagnostics      diagnostics.Sink
	MaxLength        *int
	LabelIgnoreIndex *int
	PixelField       string
	PadToken         string
	// TokenizerRuntime is GO (sugarme/tokenizer) or RUST (daulet/tokenizers, needs the ORT or ALL build tag).
	TokenizerRuntime string
	PaddingLeft      bool
	Truncation       bool
	UnknownFields    UnknownFieldPolicy
}

func Defaults() *Options {
	return &Options{
		Diagnostics:      diagnostics.NewLogSink(nil),
		PixelField:       PixelValuesKey,
		PadToken:         "[PAD]",
		TokenizerRuntime: "GO",
		UnknownFields:    UnknownFieldsWarn,
	}
}

// Apply returns the defaults with opts applied in order.
func Apply(opts ...WithOption) (*Options, error) {
	o := Defaults()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithOption is the interface for all option functions.
type WithOption func(o *Options) error

// WithPixelField sets the name of the mandatory image field. Default is "pixel_values".
func WithPixelField(name string) WithOption {
	return func(o *Options) error {
		if name == "" {
			return errors.New("pixel field name cannot be empty")
		}
		o.PixelField = name
		return nil
	}
}

// WithMaxLength pads every text sequence to maxLength. Longer sequences are kept as
// they are unless truncation is enabled.
func WithMaxLength(maxLength int) WithOption {
	return func(o *Options) error {
		if maxLength <= 0 {
			return fmt.Errorf("max length must be positive, got %d", maxLength)
		}
		o.MaxLength = &maxLength
		return nil
	}
}

// WithTruncation cuts text sequences longer than the max length. Only has effect when
// WithMaxLength is also set. Default is off.
func WithTruncation(enable bool) WithOption {
	return func(o *Options) error {
		o.Truncation = enable
		return nil
	}
}

// WithLabelIgnoreIndex replaces label values of positions that must not contribute to
// the loss (padding) with ignoreIndex, -100 for most loss functions.
func WithLabelIgnoreIndex(ignoreIndex int) WithOption {
	return func(o *Options) error {
		o.LabelIgnoreIndex = &ignoreIndex
		return nil
	}
}

// WithUnknownFieldPolicy sets how auxiliary fields are treated. Default is UnknownFieldsWarn.
func WithUnknownFieldPolicy(policy UnknownFieldPolicy) WithOption {
	return func(o *Options) error {
		switch policy {
		case UnknownFieldsWarn, UnknownFieldsIgnore, UnknownFieldsError:
			o.UnknownFields = policy
			return nil
		}
		return fmt.Errorf("unknown field policy %d not recognized", policy)
	}
}

// WithDiagnostics sets the sink receiving collation events. Default is a phuslu/log sink
// on the global logger.
func WithDiagnostics(sink diagnostics.Sink) WithOption {
	return func(o *Options) error {
		if sink == nil {
			sink = diagnostics.Discard{}
		}
		o.Diagnostics = sink
		return nil
	}
}

// WithPadToken sets the token whose id is used for padding input ids. Default is "[PAD]".
func WithPadToken(token string) WithOption {
	return func(o *Options) error {
		if token == "" {
			return errors.New("pad token cannot be empty")
		}
		o.PadToken = token
		return nil
	}
}

// WithPaddingSide sets the side padding is added to, "left" or "right". Default is "right".
func WithPaddingSide(side string) WithOption {
	return func(o *Options) error {
		switch side {
		case "left":
			o.PaddingLeft = true
		case "right":
			o.PaddingLeft = false
		default:
			return fmt.Errorf("padding side %q not recognized", side)
		}
		return nil
	}
}

// WithTokenizerRuntime selects the tokenizer implementation, "GO" or "RUST".
func WithTokenizerRuntime(runtime string) WithOption {
	return func(o *Options) error {
		switch runtime {
		case "GO", "RUST":
			o.TokenizerRuntime = runtime
			return nil
		}
		return fmt.Errorf("tokenizer runtime %s not recognized", runtime)
	}
}
