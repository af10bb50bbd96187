package metrics

import "time"

// BackendCall records one REST backend round trip. status is 0 when no
// response was received.
func BackendCall(resource, method string, status int, duration time.Duration) {
	BackendCallsTotal.WithLabelValues(resource, method, OutcomeClass(status)).Inc()
	BackendCallDuration.WithLabelValues(resource, method).Observe(duration.Seconds())
}

// ListLoaded records a list load for a screen.
func ListLoaded(screen string, ok bool) {
	ListLoadsTotal.WithLabelValues(screen, result(ok)).Inc()
}

// FormSubmitted records a form submission outcome. result is one of
// "ok", "invalid" (local or server validation) or "failed".
func FormSubmitted(screen, mode, result string) {
	FormSubmissionsTotal.WithLabelValues(screen, mode, result).Inc()
}

// LoginAttempt records a sign-in attempt. result is one of "ok", "invalid",
// "rejected", "failed" or "rate_limited".
func LoginAttempt(result string) {
	LoginsTotal.WithLabelValues(result).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
