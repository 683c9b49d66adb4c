package giftcards

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// codeAlphabet avoids characters that misread over the phone (I, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode produces a redeemable code like GC-7XKQ-M2NP-W4RT.
func GenerateCode() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("giftcards: generate code: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("GC")
	for i, b := range buf {
		if i%4 == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return sb.String(), nil
}
