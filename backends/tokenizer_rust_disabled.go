//go:build !ORT && !ALL

package backends

import "errors"

type RustTokenizer struct{}

func loadRustTokenizer(_ []byte, _ string) (*Tokenizer, error) {
	return nil, errors.New("rust Tokenizer is not enabled, build with the ORT or ALL tag")
}

func encodeRust(_ *Tokenizer, _ string) Encoding {
	return Encoding{}
}

func decodeRust(_ []int64, _ *Tokenizer, _ bool) string {
	return ""
}
