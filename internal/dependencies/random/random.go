package random

import (
	"crypto/rand"
	"fmt"
)

// Random draws secrets. It is an interface so tests can fix the secret.
type Random interface {
	// Digits returns n independent, uniformly random decimal digits.
	// Repeats are allowed.
	Digits(n int) string
}

// CryptoRandom reads from the operating system's secure source
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Digits rejects bytes >= 250 so each digit stays uniform
func (r *CryptoRandom) Digits(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("random: %v", err))
		}
		for _, b := range buf {
			if b < 250 && len(out) < n {
				out = append(out, '0'+b%10)
			}
		}
	}
	return string(out)
}
