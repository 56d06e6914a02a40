package scoring

import (
	"fmt"

	"github.com/mcoot/guessnumber-go/internal/dependencies/random"
	"github.com/mcoot/guessnumber-go/internal/model"
)

// Service scores guesses against secrets and generates new secrets
type Service struct {
	random random.Random
}

// New creates a new scoring Service
func New(rng random.Random) *Service {
	return &Service{
		random: rng,
	}
}

// Score compares a guess with the secret. Exact counts digits matching in
// place; Total counts the multiset intersection of digits, so it is never
// less than Exact. Both strings must have the same length.
func (s *Service) Score(secret, guess string) model.GuessResult {
	result := model.GuessResult{Guess: guess}

	var secretCounts, guessCounts [10]int
	n := min(len(secret), len(guess))
	for i := 0; i < n; i++ {
		if secret[i] == guess[i] {
			result.Exact++
		}
		if d, ok := digit(secret[i]); ok {
			secretCounts[d]++
		}
		if d, ok := digit(guess[i]); ok {
			guessCounts[d]++
		}
	}
	for d := range secretCounts {
		result.Total += min(secretCounts[d], guessCounts[d])
	}

	return result
}

// GenerateSecret returns a string of the given number of uniformly random
// digits. Duplicates are allowed.
func (s *Service) GenerateSecret(digits int) (string, error) {
	if digits < model.MinDigits || digits > model.MaxDigits {
		return "", fmt.Errorf("%w: %d", model.ErrInvalidDigits, digits)
	}
	return s.random.Digits(digits), nil
}

// ValidateGuess checks that a guess is exactly the given length and
// contains only decimal digits
func (s *Service) ValidateGuess(guess string, digits int) error {
	if len(guess) != digits {
		return fmt.Errorf("%w: expected %d digits, got %d", model.ErrInvalidGuess, digits, len(guess))
	}
	for i := 0; i < len(guess); i++ {
		if _, ok := digit(guess[i]); !ok {
			return fmt.Errorf("%w: %q is not a digit", model.ErrInvalidGuess, guess[i])
		}
	}
	return nil
}

func digit(b byte) (int, bool) {
	if b < '0' || b > '9' {
		return 0, false
	}
	return int(b - '0'), true
}

// Interface for dependency injection
type ServiceInterface interface {
	Score(secret, guess string) model.GuessResult
	GenerateSecret(digits int) (string, error)
	ValidateGuess(guess string, digits int) error
}

var _ ServiceInterface = (*Service)(nil)
