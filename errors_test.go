package trickplay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindLoadFailed, "load", errFake))

	assert.ErrorIs(t, err, KindLoadFailed)
	assert.NotErrorIs(t, err, KindCaptureFailed)
	assert.ErrorIs(t, err, errFake, "cause stays reachable")
	assert.Equal(t, KindLoadFailed, KindOf(err))

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "load", e.Op)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "trickplay: capture: capture-failed: fake backend failure",
		newError(KindCaptureFailed, "capture", errFake).Error())
	assert.Equal(t, "trickplay: seek: seek-or-render-fault",
		newError(KindSeekOrRenderFault, "seek", nil).Error())
	assert.Equal(t, "trickplay: output-failed", KindOutputFailed.Error())
}

func TestErrClosed_IsCancelled(t *testing.T) {
	assert.ErrorIs(t, ErrClosed, KindCancelled)
	assert.Equal(t, KindCancelled, KindOf(ErrClosed))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(nil))
	assert.Equal(t, ErrorKind(0), KindOf(context.Canceled))
	assert.Equal(t, KindOutputFailed, KindOf(KindOutputFailed))
	assert.Equal(t, "unknown", ErrorKind(0).String())
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unknown", SessionState(9).String())
}
