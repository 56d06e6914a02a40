package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigits(t *testing.T) {
	r := New()

	assert.Empty(t, r.Digits(0))

	seen := map[rune]bool{}
	for range 50 {
		s := r.Digits(10)
		assert.Len(t, s, 10)
		for _, c := range s {
			assert.True(t, c >= '0' && c <= '9', "unexpected %q", c)
			seen[c] = true
		}
	}
	assert.Len(t, seen, 10, "500 draws should cover every digit")
}
