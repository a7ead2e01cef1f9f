package resilience

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want int
	}{
		{"rate limit", New(KindSecurity, SubRateLimit, SeverityHigh, true, "too many requests", nil), http.StatusTooManyRequests},
		{"security violation", New(KindSecurity, SubXSS, SeverityHigh, false, "forbidden chars", nil), http.StatusForbidden},
		{"auth", New(KindAuth, "", SeverityMedium, false, "bad token", nil), http.StatusUnauthorized},
		{"validation", New(KindValidation, "", SeverityMedium, false, "bad input", nil), http.StatusBadRequest},
		{"not found", New(KindStorage, SubNotFound, SeverityLow, false, "missing", nil), http.StatusNotFound},
		{"storage corruption", New(KindStorage, SubCorruption, SeverityCritical, false, "corrupt", nil), http.StatusInternalServerError},
		{"network error", New(KindBlockchain, SubNetwork, SeverityMedium, true, "timeout", nil), http.StatusServiceUnavailable},
		{"circuit breaker open", New(KindCircuitBreaker, "", SeverityHigh, false, "open", nil), http.StatusServiceUnavailable},
		{"config", New(KindConfig, "", SeverityHigh, false, "bad config", nil), http.StatusInternalServerError},
		{"generic", New(KindGeneric, "", SeverityMedium, false, "oops", nil), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestHTTPStatus_NonRelayErrorDefaultsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindBlockchain, SubNetwork, SeverityMedium, true, "x", nil)))
	assert.False(t, IsRetryable(New(KindValidation, "", SeverityMedium, false, "x", nil)))
	assert.False(t, IsRetryable(assertErr{}))
}
