package errors_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := mserrors.New(mserrors.KindTransportError, "gemini", "Connect", cause)

	assert.Equal(t, mserrors.KindTransportError, err.Kind)
	assert.Equal(t, "gemini", err.Component)
	assert.Equal(t, "Connect", err.Operation)
	assert.Equal(t, 0, err.StatusCode)
	assert.Nil(t, err.Details)
	assert.Equal(t, cause, err.Cause)
}

func TestNewf(t *testing.T) {
	err := mserrors.Newf(mserrors.KindHandshakeFailed, "credentials", "FetchAPIKey", "missing %s", "apiKey")

	assert.Equal(t, "missing apiKey", err.Message())
	assert.Equal(t, "[credentials] FetchAPIKey <handshake_failed>: missing apiKey", err.Error())
}

func TestError_NoCause(t *testing.T) {
	err := mserrors.New(mserrors.KindUnknown, "session", "Connect", nil)

	assert.Equal(t, "[session] Connect", err.Error())
	assert.Equal(t, "Connect", err.Message())
}

func TestError_WithStatusCode(t *testing.T) {
	err := mserrors.New(mserrors.KindHandshakeFailed, "credentials", "FetchAPIKey", fmt.Errorf("bad gateway")).
		WithStatusCode(502)

	assert.Equal(t, "[credentials] FetchAPIKey <handshake_failed> (status 502): bad gateway", err.Error())
}

func TestError_BuilderChaining(t *testing.T) {
	err := mserrors.New(mserrors.KindProviderError, "openai", "HandleEvent", nil)
	details := map[string]any{"code": "rate_limited"}

	result := err.WithStatusCode(429).WithDetails(details)

	assert.Same(t, err, result)
	assert.Equal(t, 429, result.StatusCode)
	assert.Equal(t, details, result.Details)
}

func TestUnwrap_ErrorsIs(t *testing.T) {
	err := mserrors.New(mserrors.KindTransportError, "wsconn", "Receive", io.EOF)

	assert.True(t, errors.Is(err, io.EOF))
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	inner := mserrors.New(mserrors.KindDeviceUnavailable, "capture", "Start", nil)
	wrapped := fmt.Errorf("outer: %w", inner)

	var target *mserrors.Error
	require.True(t, errors.As(wrapped, &target))
	assert.Same(t, inner, target)
}

func TestKindOf(t *testing.T) {
	inner := mserrors.New(mserrors.KindPermissionDenied, "capture", "Start", nil)

	assert.Equal(t, mserrors.KindPermissionDenied, mserrors.KindOf(fmt.Errorf("wrap: %w", inner)))
	assert.Equal(t, mserrors.KindUnknown, mserrors.KindOf(io.EOF))
	assert.Equal(t, mserrors.KindUnknown, mserrors.KindOf(nil))
}

func TestIsKind(t *testing.T) {
	err := mserrors.New(mserrors.KindConfigurationConflict, "session", "SetConfig", nil)

	assert.True(t, mserrors.IsKind(err, mserrors.KindConfigurationConflict))
	assert.False(t, mserrors.IsKind(err, mserrors.KindProviderError))
	assert.False(t, mserrors.IsKind(nil, mserrors.KindUnknown))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, mserrors.Wrap(nil, mserrors.KindTransportError, "x", "y"))

	kinded := mserrors.New(mserrors.KindProviderError, "openai", "Event", nil)
	assert.Same(t, kinded, mserrors.Wrap(kinded, mserrors.KindTransportError, "x", "y"))

	plain := mserrors.Wrap(io.ErrUnexpectedEOF, mserrors.KindTransportError, "gemini", "Receive")
	assert.True(t, mserrors.IsKind(plain, mserrors.KindTransportError))
	assert.True(t, errors.Is(plain, io.ErrUnexpectedEOF))
}

func TestKind_Fatal(t *testing.T) {
	assert.True(t, mserrors.KindTransportError.Fatal())
	assert.True(t, mserrors.KindProviderError.Fatal())
	assert.False(t, mserrors.KindHandshakeFailed.Fatal())
	assert.False(t, mserrors.KindConfigurationConflict.Fatal())
	assert.Equal(t, "unknown", mserrors.KindUnknown.String())
}
