package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassification(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		retryable bool
	}{
		{ErrCodeUnsupportedFormat, CategoryParse, false},
		{ErrCodeEmbeddingFailed, CategoryEmbedding, true},
		{ErrCodeStorageIO, CategoryStorage, true},
		{ErrCodeQueryTooShort, CategoryValidation, false},
		{ErrCodeChunkSemantic, CategoryParse, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := New(ErrCodeParseFailed, "corrupt payload", nil)
	target := New(ErrCodeParseFailed, "", nil)

	assert.True(t, stderrors.Is(err, target))
	assert.False(t, stderrors.Is(err, New(ErrCodeStorageIO, "", nil)))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("disk detached")
	err := Wrap(ErrCodeStorageIO, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, IsRetryable(err))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStorageIO, nil))
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return New(ErrCodeParseFailed, "deterministic", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesRetryable(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return New(ErrCodeEmbeddingFailed, "transient", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error {
		return New(ErrCodeEmbeddingFailed, "never reached", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}
