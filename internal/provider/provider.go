// Package provider builds clients for OpenAI-compatible model services and classifies
// their failures as transient or permanent.
package provider

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// NewClient returns an OpenAI-compatible client. The SDK's own retries are disabled;
// callers wrap each call in a retry.Policy so budgets are set per call type.
func NewClient(baseURL, apiKey string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(ensureTrailingSlash(baseURL)))
	}
	return openai.NewClient(opts...)
}

// IsRetryable reports whether err is a transient service failure: rate limiting,
// server-side errors, request timeouts, or network failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return RetryableStatus(apiErr.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// RetryableStatus reports whether an HTTP status code indicates a transient failure.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func ensureTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
