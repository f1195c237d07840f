package backends

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knights-analytics/vlcollate/options"
	"github.com/knights-analytics/vlcollate/util/fileutil"
)

// Tokenizer wraps one of the supported tokenizer runtimes. It implements
// collators.PaddingTokenizer.
type Tokenizer struct {
	RustTokenizer *RustTokenizer
	GoTokenizer   *GoTokenizer
	Destroy       func() error
	Runtime       string
	padToken      string
	padID         int64
	paddingLeft   bool
}

// Encoding is the tokenized form of a single text.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
}

// LoadTokenizer loads a huggingface tokenizer.json. path is either the file itself
// or a directory containing it.
func LoadTokenizer(path string, s *options.Options) (*Tokenizer, error) {
	if s == nil {
		s = options.Defaults()
	}
	tokenizerPath := path
	if !strings.HasSuffix(path, ".json") {
		tokenizerPath = fileutil.PathJoinSafe(path, "tokenizer.json")
	}
	exists, err := fileutil.FileExists(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("error checking for existence of tokenizer.json: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("tokenizer.json not found at %s", tokenizerPath)
	}
	tokenizerBytes, err := fileutil.ReadFileBytes(tokenizerPath)
	if err != nil {
		return nil, err
	}

	var tk *Tokenizer
	switch s.TokenizerRuntime {
	case "RUST":
		tk, err = loadRustTokenizer(tokenizerBytes, s.PadToken)
	case "GO":
		tk, err = loadGoTokenizer(tokenizerBytes, s.PadToken)
	default:
		return nil, fmt.Errorf("runtime %s not recognized", s.TokenizerRuntime)
	}
	if err != nil {
		return nil, err
	}
	tk.paddingLeft = s.PaddingLeft
	return tk, nil
}

// Encode tokenizes text, adding the special tokens of the tokenizer.
func (tk *Tokenizer) Encode(text string) (Encoding, error) {
	switch tk.Runtime {
	case "RUST":
		return encodeRust(tk, text), nil
	case "GO":
		return encodeGo(tk, text)
	}
	return Encoding{}, fmt.Errorf("runtime %s not recognized", tk.Runtime)
}

func (tk *Tokenizer) Decode(ids []int64, skipSpecialTokens bool) (string, error) {
	switch tk.Runtime {
	case "RUST":
		return decodeRust(ids, tk, skipSpecialTokens), nil
	case "GO":
		return decodeGo(ids, tk, skipSpecialTokens), nil
	}
	return "", fmt.Errorf("runtime %s not recognized", tk.Runtime)
}

// PadTokenID is the vocabulary id of the pad token.
func (tk *Tokenizer) PadTokenID() int64 {
	return tk.padID
}

func (tk *Tokenizer) PadToken() string {
	return tk.padToken
}

func (tk *Tokenizer) PaddingLeft() bool {
	return tk.paddingLeft
}

func errPadTokenNotFound(padToken string) error {
	return errors.New("pad token " + padToken + " is not in the tokenizer vocabulary, set it with WithPadToken")
}
