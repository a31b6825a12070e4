package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection_IncrementStopsAtMax(t *testing.T) {
	for _, mode := range Modes() {
		s, err := NewSelection().SwitchMode(mode)
		require.NoError(t, err)

		for i := 0; i < MaxDuration(mode)+10; i++ {
			s = s.Increment()
			assert.LessOrEqual(t, s.Duration, MaxDuration(mode))
		}
		assert.Equal(t, MaxDuration(mode), s.Duration)
	}
}

func TestSelection_DecrementStopsAtZero(t *testing.T) {
	s := NewSelection()
	s = s.Decrement()
	assert.Equal(t, 0, s.Duration)
	s = s.Decrement()
	assert.Equal(t, 0, s.Duration)
}

func TestSelection_SwitchModeResetsDuration(t *testing.T) {
	s := Selection{Mode: ModeDays, Duration: 40}

	s, err := s.SwitchMode(ModeHours)
	require.NoError(t, err)
	assert.Equal(t, Selection{Mode: ModeHours, Duration: 1}, s)

	unchanged, err := s.SwitchMode(RentalMode("weeks"))
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, s, unchanged)
}

func TestSelection_SetDurationClamps(t *testing.T) {
	s := Selection{Mode: ModeHours, Duration: 1}
	assert.Equal(t, 24, s.SetDuration(100).Duration)
	assert.Equal(t, 0, s.SetDuration(-3).Duration)
	assert.Equal(t, 7, s.SetDuration(7).Duration)
}

func TestSelection_QuoteAndRentalData(t *testing.T) {
	s := Selection{Mode: ModeMinutes, Duration: 30}

	cost, err := s.Quote(Car{OpeningFee: 500, PricePerMinute: 90})
	require.NoError(t, err)
	assert.Equal(t, int64(500), cost.TotalCost)
	assert.Equal(t, int64(0), cost.BaseCost)

	assert.Equal(t, RentalData{CarID: 42, RentalType: ModeMinutes, Duration: 30}, s.RentalData(42))
}
