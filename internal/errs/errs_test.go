package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsQuotaExceededMatchesWrappedPlatformError(t *testing.T) {
	base := &PlatformError{Code: PlatformErrorQuotaExceeded, Platform: "youtube", Reason: "429"}
	wrapped := fmt.Errorf("download: %w", base)

	assert.True(t, IsQuotaExceeded(wrapped))
}

func TestIsQuotaExceededFalseForOtherCodes(t *testing.T) {
	err := &PlatformError{Code: PlatformErrorDownloadFailed, Platform: "youtube", Reason: "disk full"}
	assert.False(t, IsQuotaExceeded(err))
}

func TestIsQuotaExceededFalseForUnrelatedError(t *testing.T) {
	assert.False(t, IsQuotaExceeded(errors.New("boom")))
}

func TestTruncateTailKeepsSuffix(t *testing.T) {
	assert.Equal(t, "hello", TruncateTail("hello", 10))
	assert.Equal(t, "world", TruncateTail("helloworld", 5))
	assert.Equal(t, "", TruncateTail("", 5))
}

func TestStoreErrorUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	err := &StoreError{Op: "create memory", Err: inner}
	assert.ErrorIs(t, err, inner)
}
