package application

import (
	"testing"
	"time"

	"chainnotes/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID(testUser))
	assert.NoError(t, ValidateUserID("65a1f0c2e4b0a1b2c3d4e5f6"))
	assert.ErrorIs(t, ValidateUserID(""), domain.ErrUnauthorized)
	assert.ErrorIs(t, ValidateUserID("   "), domain.ErrUnauthorized)
	assert.ErrorIs(t, ValidateUserID("65a1f0c2e4b0a1b2c3d4e5fz"), domain.ErrUnknownUser)
	assert.ErrorIs(t, ValidateUserID("bob"), domain.ErrUnknownUser)
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-05":                time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"2024-03-05T10:11:12Z":      time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC),
		"2024-03-05T10:11:12":       time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC),
		"2024-03-05 10:11:12":       time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC),
		"2024/03/05":                time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"2024-03-05T12:00:00+02:00": time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		"Jan 2 2024":                time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		"Mar 5, 2024":               time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"March 5 2024":              time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"5 Mar 2024":                time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		"2024-03":                   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"2024":                      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, ok := ParseDate(raw)
		if assert.True(t, ok, raw) {
			assert.True(t, want.Equal(got), "%s: got %s", raw, got)
		}
	}

	for _, raw := range []string{"", "not-a-date", "2024-13-01", "2024-02-30", "2024-13", "24", "Feb 30 2024"} {
		_, ok := ParseDate(raw)
		assert.False(t, ok, raw)
	}
}
