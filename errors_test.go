package h2wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKindWhenSet(t *testing.T) {
	err := NewError(0, KindConnectionClosed, "read failed")
	assert.True(t, errors.Is(err, ErrConnectionClosed))
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestError_IsMatchesByCodeWhenKindUnset(t *testing.T) {
	err := NewStreamError(7, ErrCodeFlowControl, "window exceeded")
	sentinel := &Error{Code: ErrCodeFlowControl}
	assert.True(t, errors.Is(err, sentinel))

	scopedSentinel := &Error{Code: ErrCodeFlowControl, StreamID: 7}
	assert.True(t, errors.Is(err, scopedSentinel))

	wrongStream := &Error{Code: ErrCodeFlowControl, StreamID: 9}
	assert.False(t, errors.Is(err, wrongStream))
}

func TestError_ErrorMessageFormatting(t *testing.T) {
	connErr := NewError(0, KindMissingPreface, "expected client preface")
	assert.Contains(t, connErr.Error(), "MissingPreface")
	assert.Contains(t, connErr.Error(), "expected client preface")

	streamErr := NewStreamError(5, ErrCodeCancel, "cancelled by test")
	assert.Contains(t, streamErr.Error(), "CANCEL")
	assert.Contains(t, streamErr.Error(), "stream 5")
}

func TestError_UnwrapReturnsNilWhenNotWrapped(t *testing.T) {
	err := NewError(ErrCodeInternal, KindNone, "boom")
	assert.Nil(t, err.Unwrap())
}

func TestErrorCode_StringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "PROTOCOL_ERROR", ErrCodeProtocol.String())
	assert.Contains(t, ErrorCode(0xff).String(), "UNKNOWN_ERROR")
}

func TestKind_StringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "TooManyStreams", KindTooManyStreams.String())
	assert.Equal(t, "None", KindNone.String())
}
