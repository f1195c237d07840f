package options

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knights-analytics/vlcollate/diagnostics"
)

func TestDefaults(t *testing.T) {
	o, err := Apply()
	require.NoError(t, err)
	assert.Equal(t, PixelValuesKey, o.PixelField)
	assert.Nil(t, o.MaxLength)
	assert.Nil(t, o.LabelIgnoreIndex)
	assert.False(t, o.Truncation)
	assert.False(t, o.PaddingLeft)
	assert.Equal(t, UnknownFieldsWarn, o.UnknownFields)
	assert.Equal(t, "GO", o.TokenizerRuntime)
	assert.IsType(t, &diagnostics.LogSink{}, o.Diagnostics)
}

func TestNewOptions(t *testing.T) {
	o, err := Apply(
		WithPixelField("images"),
		WithMaxLength(16),
		WithTruncation(true),
		WithLabelIgnoreIndex(-100),
		WithUnknownFieldPolicy(UnknownFieldsError),
		WithDiagnostics(nil),
		WithPadToken("<pad>"),
		WithPaddingSide("left"),
		WithTokenizerRuntime("RUST"),
	)
	require.NoError(t, err)
	assert.Equal(t, "images", o.PixelField)
	assert.Equal(t, 16, *o.MaxLength)
	assert.True(t, o.Truncation)
	assert.Equal(t, -100, *o.LabelIgnoreIndex)
	assert.Equal(t, UnknownFieldsError, o.UnknownFields)
	assert.Equal(t, diagnostics.Discard{}, o.Diagnostics)
	assert.Equal(t, "<pad>", o.PadToken)
	assert.True(t, o.PaddingLeft)
	assert.Equal(t, "RUST", o.TokenizerRuntime)
}

func TestInvalidOptions(t *testing.T) {
	for name, opt := range map[string]WithOption{
		"empty pixel field": WithPixelField(""),
		"zero max length":   WithMaxLength(0),
		"bad policy":        WithUnknownFieldPolicy(UnknownFieldPolicy(7)),
		"empty pad token":   WithPadToken(""),
		"bad padding side":  WithPaddingSide("middle"),
		"bad runtime":       WithTokenizerRuntime("ORT"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Apply(opt)
			assert.Error(t, err)
		})
	}
}

func TestParseUnknownFieldPolicy(t *testing.T) {
	for _, p := range []UnknownFieldPolicy{UnknownFieldsWarn, UnknownFieldsIgnore, UnknownFieldsError} {
		parsed, err := ParseUnknownFieldPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParseUnknownFieldPolicy("strict")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collator.yaml")
	config := `pixelField: images
maxLength: 128
truncation: true
labelIgnoreIndex: -100
unknownFields: ignore
paddingSide: left
`
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))

	opts, err := LoadConfig(path)
	require.NoError(t, err)
	o, err := Apply(opts...)
	require.NoError(t, err)
	assert.Equal(t, "images", o.PixelField)
	assert.Equal(t, 128, *o.MaxLength)
	assert.True(t, o.Truncation)
	assert.Equal(t, -100, *o.LabelIgnoreIndex)
	assert.Equal(t, UnknownFieldsIgnore, o.UnknownFields)
	assert.True(t, o.PaddingLeft)
	assert.Equal(t, "[PAD]", o.PadToken)
}

func TestParseConfigValidation(t *testing.T) {
	for name, config := range map[string]string{
		"negative max length": "maxLength: -5\n",
		"bad policy":          "unknownFields: strict\n",
		"bad side":            "paddingSide: up\n",
		"bad runtime":         "tokenizerRuntime: ORT\n",
		"unknown key":         "maxLen: 5\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(config))
			assert.Error(t, err)
		})
	}

	config, err := ParseConfig(nil)
	require.NoError(t, err, "an empty config keeps every default")
	assert.Empty(t, config.PixelField)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
