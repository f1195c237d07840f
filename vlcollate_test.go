package vlcollate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/knights-analytics/vlcollate/options"
)

func check(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err.Error())
	}
}

func TestNewCollatorErrors(t *testing.T) {
	_, err := NewCollator(t.TempDir())
	assert.ErrorContains(t, err, "tokenizer.json not found")

	_, err = NewCollator(filepath.Join(t.TempDir(), "tokenizer.json"))
	assert.Error(t, err)

	_, err = NewCollator(t.TempDir(), options.WithMaxLength(-1))
	assert.Error(t, err)

	_, err = NewCollator(t.TempDir(), options.WithTokenizerRuntime("PYTHON"))
	assert.Error(t, err)
}

func TestDestroyWithoutTokenizer(t *testing.T) {
	c := &Collator{}
	check(t, c.Destroy())
}
