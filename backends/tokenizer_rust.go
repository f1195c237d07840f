//go:build ORT || ALL

package backends

import (
	"errors"

	"github.com/daulet/tokenizers"

	"github.com/knights-analytics/vlcollate/util/safeconv"
)

type RustTokenizer struct {
	Tokenizer *tokenizers.Tokenizer
	Options   []tokenizers.EncodeOption
}

func loadRustTokenizer(tokenizerBytes []byte, padToken string) (*Tokenizer, error) {
	tk, tkErr := tokenizers.FromBytes(tokenizerBytes)
	if tkErr != nil {
		return nil, tkErr
	}

	padIDs, _ := tk.Encode(padToken, false)
	if len(padIDs) != 1 {
		return nil, errors.Join(errPadTokenNotFound(padToken), tk.Close())
	}
	rustTK := &RustTokenizer{Tokenizer: tk, Options: []tokenizers.EncodeOption{tokenizers.WithReturnAttentionMask()}}
	return &Tokenizer{Runtime: "RUST", RustTokenizer: rustTK, padToken: padToken, padID: int64(padIDs[0]), Destroy: func() error {
		return tk.Close()
	}}, nil
}

func encodeRust(tk *Tokenizer, text string) Encoding {
	rustTK := tk.RustTokenizer
	output := rustTK.Tokenizer.EncodeWithOptions(text, true, rustTK.Options...)
	return Encoding{
		IDs:           safeconv.Uint32SliceToInt64Slice(output.IDs),
		AttentionMask: safeconv.Uint32SliceToInt64Slice(output.AttentionMask),
	}
}

func decodeRust(ids []int64, tokenizer *Tokenizer, skipSpecialTokens bool) string {
	return tokenizer.RustTokenizer.Tokenizer.Decode(safeconv.Int64SliceToUint32Slice(ids), skipSpecialTokens)
}
