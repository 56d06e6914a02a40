package mocks

import (
	"strings"
	"sync"

	"github.com/mcoot/guessnumber-go/internal/dependencies/random"
)

// MockRandom hands out queued secrets in order
type MockRandom struct {
	mu      sync.Mutex
	secrets []string
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Digits returns the next queued secret, or n zeros once the queue is empty.
// A queued secret is returned as is even if its length differs from n.
func (r *MockRandom) Digits(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.secrets) == 0 {
		return strings.Repeat("0", n)
	}
	next := r.secrets[0]
	r.secrets = r.secrets[1:]
	return next
}

// QueueDigits adds secrets for Digits to return
func (r *MockRandom) QueueDigits(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets = append(r.secrets, secrets...)
}

// Pending reports how many queued secrets are unused
func (r *MockRandom) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.secrets)
}
