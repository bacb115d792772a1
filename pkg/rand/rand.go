// Package rand generates unguessable verification codes.
package rand

import (
	"crypto/rand"
	"io"
	"strings"
)

// CodeAlphabet is the character set verification codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Code draws length characters over CodeAlphabet from r. Rejection sampling
// keeps the distribution uniform: bytes past the largest multiple of the
// alphabet size are discarded.
func Code(r io.Reader, length int) (string, error) {
	limit := byte(256 - 256%len(CodeAlphabet))
	var sb strings.Builder
	sb.Grow(length)

	var buf [1]byte
	for sb.Len() < length {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", err
		}
		if buf[0] >= limit {
			continue
		}
		sb.WriteByte(CodeAlphabet[int(buf[0])%len(CodeAlphabet)])
	}
	return sb.String(), nil
}

// NewCode draws length characters from the crypto-strong default source.
func NewCode(length int) (string, error) {
	return Code(rand.Reader, length)
}
