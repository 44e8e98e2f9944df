package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClampDay(t *testing.T) {
	cases := []struct {
		name  string
		month time.Time
		day   int
		want  time.Time
	}{
		{"leap february", date(2024, 2, 1), 31, date(2024, 2, 29)},
		{"plain february", date(2023, 2, 1), 31, date(2023, 2, 28)},
		{"thirty day month", date(2024, 4, 1), 31, date(2024, 4, 30)},
		{"in range", date(2024, 1, 1), 5, date(2024, 1, 5)},
		{"below range", date(2024, 1, 1), 0, date(2024, 1, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClampDay(tc.month, tc.day))
		})
	}
}

func TestMonthStart(t *testing.T) {
	assert.Equal(t, date(2024, 3, 1), MonthStart(time.Date(2024, 3, 17, 15, 4, 5, 0, time.UTC)))
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-01")
	require.NoError(t, err)
	assert.Equal(t, date(2025, 1, 1), m)

	m, err = ParseMonth("2025-01-18")
	require.NoError(t, err)
	assert.Equal(t, date(2025, 1, 1), m)

	_, err = ParseMonth("janvier")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 3, DaysBetween(date(2024, 2, 28), date(2024, 3, 2)))
	assert.Equal(t, 0, DaysBetween(date(2024, 2, 28), date(2024, 2, 28)))
}
