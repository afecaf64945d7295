package relay

import "encoding/base32"

// Base32Codec implements BaseNCodec over the standard library's base32,
// using the unpadded alphabet so encoded text carries no filler bytes
// across carriers that charge by length.
type Base32Codec struct{}

func (Base32Codec) Encode(data []byte) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(data)
}

func (Base32Codec) Decode(text string) ([]byte, error) {
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(text)
}
