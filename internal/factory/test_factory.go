package factory

import (
	"fmt"
	"time"

	"github.com/mcoot/guessnumber-go/internal/dependencies/mocks"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/relay"
	"github.com/mcoot/guessnumber-go/internal/storage/memory"
	"github.com/mcoot/guessnumber-go/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked
// dependencies. Participant IDs are handed out as p1, p2, ...
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	n := 0
	ids := func() model.ParticipantID {
		n++
		return model.ParticipantID(fmt.Sprintf("p%d", n))
	}

	app := newWithDependencies(store, mockClock, mockRandom, relay.DefaultConfig(), ids, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
