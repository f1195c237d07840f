package backends

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knights-analytics/vlcollate/options"
)

func TestLoadTokenizerMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTokenizer(dir, nil)
	assert.ErrorContains(t, err, "tokenizer.json not found")
	_, err = LoadTokenizer(filepath.Join(dir, "custom.json"), nil)
	assert.ErrorContains(t, err, "custom.json")
}

func TestLoadTokenizerRuntime(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte("{}"), 0o600))

	o := options.Defaults()
	o.TokenizerRuntime = "ONNX"
	_, err := LoadTokenizer(dir, o)
	assert.ErrorContains(t, err, "runtime ONNX not recognized")

	tk := &Tokenizer{Runtime: "ONNX"}
	_, err = tk.Encode("text")
	assert.Error(t, err)
	_, err = tk.Decode([]int64{1}, true)
	assert.Error(t, err)
}
