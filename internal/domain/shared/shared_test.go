package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesKind(t *testing.T) {
	wrapped := fmt.Errorf("enroll: %w", ErrCourseNotFound)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, errors.Is(wrapped, ErrCourseNotFound))
	assert.False(t, IsAlreadyExists(wrapped))
	assert.True(t, IsValidation(ErrInvalidAmount))
}

func TestWrapError_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("wallet", "Credit", ErrServiceUnavailable, "store failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "wallet.Credit: store failed: connection reset", err.Error())
}

func TestParseUserID(t *testing.T) {
	id, err := ParseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, UserID(42), id)

	_, err = ParseUserID("-1")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = ParseUserID("abc")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
}

func TestEvents_CarryIdentityAndPayload(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	e := NewCourseEnrolledEvent(7, 3, 100, at)

	assert.Equal(t, EventCourseEnrolled, e.EventType())
	assert.Equal(t, at, e.OccurredAt())
	assert.Equal(t, "enrollment:7:3", e.AggregateID())
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, int64(100), e.Payload()["paid"])
}
