package api

import (
	"crypto/sha1"
	"encoding/hex"
	"math/rand/v2"
	"strconv"
	"strings"
)

const dsidLength = 8

// newDSID returns the per-request cache-busting token.
func newDSID() string {
	return shuffle(dsidBase())
}

// dsidBase takes 8 hex characters at a random offset of a SHA-1 digest
// and upper-cases the last four.
func dsidBase() string {
	sum := sha1.Sum([]byte(strconv.FormatUint(rand.Uint64(), 10)))
	digest := hex.EncodeToString(sum[:])

	offset := 1 + rand.IntN(30)
	base := digest[offset : offset+dsidLength]

	return base[:4] + strings.ToUpper(base[4:])
}

func shuffle(s string) string {
	b := []byte(s)
	rand.Shuffle(len(b), func(i, j int) {
		b[i], b[j] = b[j], b[i]
	})
	return string(b)
}
