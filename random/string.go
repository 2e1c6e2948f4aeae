package random

import (
	"math/rand/v2"
	"strings"
)

const (
	CharsetAlphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CharsetLowerDigits  = "abcdefghijklmnopqrstuvwxyz0123456789"
	CharsetDigits       = "0123456789"
)

// DefaultIDLength is the length of the random part of ID
const DefaultIDLength = 12

func String(r *rand.Rand, options string, length int) (s string) {
	rOptions := []rune(options)

	var temp = make([]rune, length)
	for index := range temp {
		temp[index] = rOptions[r.IntN(len(rOptions))]
	}
	return string(temp)
}

// ID builds identifiers like "tx-4k2m9q0z1b7c". Callers own transaction and
// merchant ids, this only helps when a caller has none at hand.
func ID(r *rand.Rand, prefix string) (id string) {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('-')
	}
	b.WriteString(String(r, CharsetLowerDigits, DefaultIDLength))
	return b.String()
}
