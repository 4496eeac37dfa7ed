package provider

import (
	"context"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestWrapClassifiesDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := Wrap(ctx, "whisper", "transcription failed", ctx.Err())
	assert.Equal(t, CodeTimeout, err.Code)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrapDefaultsToUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(context.Background(), "llm", "chat completion failed", cause)
	assert.Equal(t, CodeUnavailable, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "llm: unavailable")
}

func TestCodeOfUnwrapsChain(t *testing.T) {
	err := fmt.Errorf("stage 1: %w", NewError("deepface", CodeInvalidOutput, "bad json", nil))
	assert.Equal(t, CodeInvalidOutput, CodeOf(err))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}
