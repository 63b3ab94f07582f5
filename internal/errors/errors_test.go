package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotice(t *testing.T) {
	rejected := NewRequestError("assign the session", "ALREADY_ASSIGNED", nil)
	assert.Equal(t, CodeRequestRejected, rejected.Code)
	assert.Equal(t, "Could not assign the session: ALREADY_ASSIGNED", rejected.Notice())

	failed := NewRequestError("assign the session", "", errors.New("boom"))
	assert.Equal(t, CodeRequestFailed, failed.Code)
	assert.Equal(t, "Could not assign the session. Please try again.", failed.Notice())

	popup := ErrPopupBlocked()
	assert.Contains(t, popup.Notice(), "popups")
}

func TestUserFacing(t *testing.T) {
	assert.True(t, NewRequestError("x", "", nil).UserFacing())
	assert.True(t, ErrPopupBlocked().UserFacing())
	assert.False(t, ErrSessionMissing().UserFacing())
	assert.False(t, ErrChannelClosed().UserFacing())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError(CodeDialFailed, "dial failed", cause)
	assert.ErrorIs(t, err, cause)
}
