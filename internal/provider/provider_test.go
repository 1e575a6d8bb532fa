package provider

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableStatus(t *testing.T) {
	assert.True(t, RetryableStatus(429))
	assert.True(t, RetryableStatus(408))
	assert.True(t, RetryableStatus(500))
	assert.True(t, RetryableStatus(503))
	assert.False(t, RetryableStatus(400))
	assert.False(t, RetryableStatus(401))
	assert.False(t, RetryableStatus(404))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("invalid argument")))
	assert.True(t, IsRetryable(fmt.Errorf("read: %w", io.ErrUnexpectedEOF)))
	assert.True(t, IsRetryable(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
}

func TestEnsureTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://x/v1/", ensureTrailingSlash("http://x/v1"))
	assert.Equal(t, "http://x/v1/", ensureTrailingSlash("http://x/v1/"))
}
