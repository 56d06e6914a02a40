package scoring

import (
	"testing"

	"github.com/mcoot/guessnumber-go/internal/dependencies/mocks"
	"github.com/mcoot/guessnumber-go/internal/dependencies/random"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite
	random  *mocks.MockRandom
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.random = mocks.NewMockRandom()
	s.service = New(s.random)
}

// Score tests

func (s *ServiceSuite) TestScoreTransposedDigits() {
	result := s.service.Score("123", "132")

	s.Equal(1, result.Exact)
	s.Equal(3, result.Total)
	s.False(result.IsWin())
}

func (s *ServiceSuite) TestScoreExactMatchIsWin() {
	result := s.service.Score("4071", "4071")

	s.Equal(4, result.Exact)
	s.Equal(4, result.Total)
	s.True(result.IsWin())
}

func (s *ServiceSuite) TestScoreNoOverlap() {
	result := s.service.Score("1234", "5678")

	s.Equal(0, result.Exact)
	s.Equal(0, result.Total)
}

func (s *ServiceSuite) TestScoreDuplicatesCountedAsMultiset() {
	// secret has one 1, guess has three: only one can match
	result := s.service.Score("1234", "1111")
	s.Equal(1, result.Exact)
	s.Equal(1, result.Total)

	// two 5s in each, none in place
	result = s.service.Score("5500", "0055")
	s.Equal(0, result.Exact)
	s.Equal(4, result.Total)
}

func (s *ServiceSuite) TestScoreBounds() {
	cases := [][2]string{
		{"000", "000"},
		{"123", "321"},
		{"9988776655", "5566778899"},
		{"1122", "2211"},
		{"3141592653", "2718281828"},
	}
	for _, c := range cases {
		result := s.service.Score(c[0], c[1])
		s.GreaterOrEqual(result.Exact, 0, c)
		s.LessOrEqual(result.Exact, result.Total, c)
		s.LessOrEqual(result.Total, len(c[0]), c)
	}
}

func (s *ServiceSuite) TestScoreIsSymmetricInTotal() {
	a := s.service.Score("1223", "3321")
	b := s.service.Score("3321", "1223")

	s.Equal(a.Exact, b.Exact)
	s.Equal(a.Total, b.Total)
}

// GenerateSecret tests

func (s *ServiceSuite) TestGenerateSecretUsesRandom() {
	s.random.QueueDigits("0042")

	secret, err := s.service.GenerateSecret(4)

	s.Require().NoError(err)
	s.Equal("0042", secret)
}

func (s *ServiceSuite) TestGenerateSecretRejectsOutOfRange() {
	_, err := s.service.GenerateSecret(2)
	s.ErrorIs(err, model.ErrInvalidDigits)

	_, err = s.service.GenerateSecret(11)
	s.ErrorIs(err, model.ErrInvalidDigits)
}

func (s *ServiceSuite) TestGenerateSecretRoundTripWins() {
	service := New(random.New())
	for digits := model.MinDigits; digits <= model.MaxDigits; digits++ {
		secret, err := service.GenerateSecret(digits)
		s.Require().NoError(err)
		s.Require().NoError(service.ValidateGuess(secret, digits))

		result := service.Score(secret, secret)
		s.Equal(digits, result.Exact)
		s.True(result.IsWin())
	}
}

// ValidateGuess tests

func (s *ServiceSuite) TestValidateGuess() {
	s.NoError(s.service.ValidateGuess("0123", 4))
	s.ErrorIs(s.service.ValidateGuess("012", 4), model.ErrInvalidGuess)
	s.ErrorIs(s.service.ValidateGuess("01234", 4), model.ErrInvalidGuess)
	s.ErrorIs(s.service.ValidateGuess("01a3", 4), model.ErrInvalidGuess)
	s.ErrorIs(s.service.ValidateGuess("-123", 4), model.ErrInvalidGuess)
}
