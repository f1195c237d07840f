package backends

import (
	"bytes"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/knights-analytics/vlcollate/util/safeconv"
)

type GoTokenizer struct {
	Tokenizer *tokenizer.Tokenizer
}

func loadGoTokenizer(tokenizerBytes []byte, padToken string) (*Tokenizer, error) {
	tk, tkErr := pretrained.FromReader(bytes.NewReader(tokenizerBytes))
	if tkErr != nil {
		return nil, tkErr
	}
	padID, ok := tk.TokenToId(padToken)
	if !ok {
		return nil, errPadTokenNotFound(padToken)
	}
	return &Tokenizer{Runtime: "GO", GoTokenizer: &GoTokenizer{Tokenizer: tk}, padToken: padToken, padID: int64(padID), Destroy: func() error {
		return nil
	}}, nil
}

func encodeGo(tk *Tokenizer, text string) (Encoding, error) {
	output, err := tk.GoTokenizer.Tokenizer.EncodeSingle(text, true)
	if err != nil {
		return Encoding{}, err
	}
	return Encoding{
		IDs:           safeconv.IntSliceToInt64Slice(output.Ids),
		AttentionMask: safeconv.IntSliceToInt64Slice(output.AttentionMask),
	}, nil
}

func decodeGo(ids []int64, tokenizer *Tokenizer, skipSpecialTokens bool) string {
	return tokenizer.GoTokenizer.Tokenizer.Decode(safeconv.Int64SliceToIntSlice(ids), skipSpecialTokens)
}
