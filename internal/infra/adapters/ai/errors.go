package ai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"

	"product-content-ai/internal/domain"
)

// KindForStatus maps an HTTP status code to the uniform error kind.
func KindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.KindAuth
	case status == http.StatusRequestTimeout:
		return domain.KindTransient
	case status >= 400 && status < 500:
		return domain.KindInvalidRequest
	case status >= 500:
		return domain.KindTransient
	default:
		return domain.KindUnknown
	}
}

// statusError returns a ProviderError for status, or nil for 2xx.
func statusError(provider string, status int, err error) *domain.ProviderError {
	if status >= 200 && status < 300 {
		return nil
	}
	return domain.NewProviderError(provider, KindForStatus(status), status, err)
}

var statusInMessage = regexp.MustCompile(`(?i)(?:error|status|http|code)[^0-9]{0,12}([1-5][0-9]{2})\b`)

// statusFromMessage digs an HTTP status out of an SDK error string. Zero if none.
func statusFromMessage(msg string) int {
	m := statusInMessage.FindStringSubmatch(msg)
	if len(m) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// classifyErr turns an arbitrary SDK or transport error into a ProviderError.
// Callers that know the status should use statusError instead.
func classifyErr(provider string, err error) *domain.ProviderError {
	if err == nil {
		return nil
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(provider, domain.KindTransient, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewProviderError(provider, domain.KindTransient, 0, err)
	}
	if status := statusFromMessage(err.Error()); status != 0 {
		return domain.NewProviderError(provider, KindForStatus(status), status, err)
	}
	return domain.NewProviderError(provider, domain.KindUnknown, 0, err)
}
