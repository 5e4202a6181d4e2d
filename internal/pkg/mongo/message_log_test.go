package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogCollectionName(t *testing.T) {
	day := time.Date(2025, 9, 1, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "message-log-20250901", LogCollectionName(day))
}

func TestLogCollectionDate(t *testing.T) {
	date, ok := LogCollectionDate("message-log-20250901")
	assert.True(t, ok)
	assert.Equal(t, 2025, date.Year())
	assert.Equal(t, time.September, date.Month())
	assert.Equal(t, 1, date.Day())
}

func TestLogCollectionDateInvalid(t *testing.T) {
	_, ok := LogCollectionDate("message-log-garbage")
	assert.False(t, ok)

	_, ok = LogCollectionDate("message-s-5")
	assert.False(t, ok)
}

func TestLogCollectionNameRoundTrip(t *testing.T) {
	now := time.Now()
	date, ok := LogCollectionDate(LogCollectionName(now))
	assert.True(t, ok)
	assert.Equal(t, now.Format("20060102"), date.Format("20060102"))
}
