package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// RateLimiter Tests
// =============================================================================

func newTestRateLimiter(max int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(max, window, newTestLogger())
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_BlocksAfterMaxFailures(t *testing.T) {
	rl, _ := newTestRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if rl.Blocked("192.168.1.1") {
			t.Fatalf("attempt %d should not be blocked", i+1)
		}
		rl.RecordFailure("192.168.1.1")
	}

	if !rl.Blocked("192.168.1.1") {
		t.Error("expected key to be blocked after 3 failures")
	}
	if rl.Blocked("192.168.1.2") {
		t.Error("other keys must not be affected")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl, now := newTestRateLimiter(1, time.Minute)
	rl.RecordFailure("ip")

	if got := rl.TimeUntilReset("ip"); got != time.Minute {
		t.Errorf("TimeUntilReset = %v, want 1m", got)
	}

	*now = now.Add(61 * time.Second)
	if rl.Blocked("ip") {
		t.Error("expected block to lapse after the window")
	}
	if got := rl.TimeUntilReset("ip"); got != 0 {
		t.Errorf("TimeUntilReset = %v, want 0", got)
	}
	if n := rl.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d entries, want 1", n)
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl, _ := newTestRateLimiter(1, time.Minute)
	rl.RecordFailure("ip")
	rl.Reset("ip")

	if rl.Blocked("ip") {
		t.Error("expected Reset to clear the block")
	}
}

func TestRateLimiter_RunStopsWithContext(t *testing.T) {
	rl, _ := newTestRateLimiter(1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// =============================================================================
// LoginRateLimiter Tests
// =============================================================================

// loginHandler fails unless the password is "right".
var loginHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("password") != "right" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
})

func postLogin(h http.Handler, ip, password string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/login", strings.NewReader("email=a%40b.in&password="+password))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = ip + ":1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimiter_BlocksAfterFailures(t *testing.T) {
	a := NewLoginRateLimiter(2, 15*time.Minute, newTestLogger())
	h := a.Limit(loginHandler)

	for i := 0; i < 2; i++ {
		if rec := postLogin(h, "10.0.0.1", "wrong", nil); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("attempt %d: status = %d", i+1, rec.Code)
		}
	}

	rec := postLogin(h, "10.0.0.1", "right", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), "Too many sign-in attempts") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	// Other clients are unaffected.
	if rec := postLogin(h, "10.0.0.2", "right", nil); rec.Code != http.StatusSeeOther {
		t.Errorf("other ip status = %d, want 303", rec.Code)
	}
}

func TestLoginRateLimiter_SuccessResetsCounter(t *testing.T) {
	a := NewLoginRateLimiter(2, 15*time.Minute, newTestLogger())
	h := a.Limit(loginHandler)

	postLogin(h, "10.0.0.1", "wrong", nil)
	postLogin(h, "10.0.0.1", "right", nil)
	postLogin(h, "10.0.0.1", "wrong", nil)

	if rec := postLogin(h, "10.0.0.1", "right", nil); rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303 after counter reset", rec.Code)
	}
}

func TestLoginRateLimiter_ResponseFormats(t *testing.T) {
	a := NewLoginRateLimiter(1, time.Minute, newTestLogger())
	h := a.Limit(loginHandler)
	postLogin(h, "10.0.0.9", "wrong", nil)

	rec := postLogin(h, "10.0.0.9", "right", map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusOK || rec.Header().Get("HX-Retarget") != "#login-error" {
		t.Errorf("htmx: status = %d, retarget = %q", rec.Code, rec.Header().Get("HX-Retarget"))
	}

	rec = postLogin(h, "10.0.0.9", "right", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusTooManyRequests || !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		t.Errorf("json: status = %d, content type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.1:80", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
