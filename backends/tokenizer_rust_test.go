//go:build ORT || ALL

package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knights-analytics/vlcollate/options"
)

// needs the tokenizer downloaded by the root package tests
const testTokenizerPath = "../models/KnightsAnalytics_all-MiniLM-L6-v2"

func TestRustTokenizer(t *testing.T) {
	o := options.Defaults()
	o.TokenizerRuntime = "RUST"
	o.PaddingLeft = true
	tk, err := LoadTokenizer(testTokenizerPath, o)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, tk.Destroy())
	}()

	assert.Equal(t, int64(0), tk.PadTokenID())
	assert.True(t, tk.PaddingLeft())
	encoding, err := tk.Encode("hello world")
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 7592, 2088, 102}, encoding.IDs)
	assert.Equal(t, []int64{1, 1, 1, 1}, encoding.AttentionMask)
	text, err := tk.Decode(encoding.IDs, true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	o.PadToken = "<pad-token-missing>"
	_, err = LoadTokenizer(testTokenizerPath, o)
	assert.Error(t, err)
}
