package rowstore

import (
	"crypto/rand"
	"math/big"
)

const (
	KeyLength   = 8
	keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// KeyGenerator produces candidate record keys.
type KeyGenerator func() (string, error)

var alphabetSize = big.NewInt(int64(len(keyAlphabet)))

// NewKey returns an 8 character lowercase base-36 token.
func NewKey() (string, error) {
	return RandomToken(KeyLength)
}

// RandomToken returns n characters drawn uniformly from [0-9a-z].
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = keyAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
