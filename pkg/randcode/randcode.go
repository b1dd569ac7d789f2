// Package randcode generates random alphanumeric code suffixes.
package randcode

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Upper returns a cryptographically random string of n uppercase
// alphanumeric characters.
func Upper(n int) string {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		// rand.Int only fails when the source of randomness is broken,
		// which is not recoverable anyway.
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf)
}
