package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	trackAlphabet     = "0123456789ABCDEF"
	referenceAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// RandomString returns n characters drawn uniformly from alphabet.
func RandomString(n int, alphabet string) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}

// NewTrackID returns a submission tracking code like TR3FA90C1B.
func NewTrackID() string {
	return "TR" + RandomString(8, trackAlphabet)
}

// NewClaimReference returns a claim reference like CL7KQ2M9XZ4A.
func NewClaimReference() string {
	return "CL" + RandomString(10, referenceAlphabet)
}
