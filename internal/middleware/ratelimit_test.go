package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterAllow(t *testing.T) {
	rl, _ := newTestLimiter()
	limit := Limit{Scope: "login", Requests: 5, Window: time.Minute}

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("1.2.3.4", limit); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, retry := rl.Allow("1.2.3.4", limit)
	if ok {
		t.Error("6th request should be denied")
	}
	if retry != time.Minute {
		t.Errorf("retry = %v, want %v", retry, time.Minute)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl, clock := newTestLimiter()
	limit := Limit{Scope: "login", Requests: 3, Window: 10 * time.Second}

	for i := 0; i < 3; i++ {
		rl.Allow("key", limit)
	}
	if ok, _ := rl.Allow("key", limit); ok {
		t.Error("should be blocked within window")
	}

	clock.advance(10 * time.Second)

	if ok, _ := rl.Allow("key", limit); !ok {
		t.Error("should be allowed after window resets")
	}
}

func TestRateLimiterScopesAreSeparate(t *testing.T) {
	rl, _ := newTestLimiter()
	login := Limit{Scope: "login", Requests: 1, Window: time.Minute}
	register := Limit{Scope: "register", Requests: 1, Window: time.Minute}

	rl.Allow("key", login)
	if ok, _ := rl.Allow("key", register); !ok {
		t.Error("register should not share the login budget")
	}
	if ok, _ := rl.Allow("key", login); ok {
		t.Error("second login should be denied")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.Allow("expired", Limit{Scope: "s", Requests: 5, Window: time.Second})
	clock.advance(2 * time.Second)
	rl.Allow("active", Limit{Scope: "s", Requests: 5, Window: time.Minute})

	rl.Cleanup()

	if got := rl.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
	if _, ok := rl.windows["s|active"]; !ok {
		t.Error("active window should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter()
	keyFunc := func(r *http.Request) string { return "test" }
	limit := Limit{Scope: "test", Requests: 2, Window: 30 * time.Second}

	handler := RateLimit(rl, limit, keyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want %q", got, "30")
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", body["code"])
	}
}

func TestRealIPIgnoresForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := RealIP(r); got != "10.0.0.1" {
		t.Errorf("RealIP = %q, want %q", got, "10.0.0.1")
	}
}

func TestClientIPResolve(t *testing.T) {
	c, err := NewClientIP([]string{"10.0.0.0/8", "192.0.2.1"})
	if err != nil {
		t.Fatalf("NewClientIP: %v", err)
	}

	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"untrusted peer ignores header", "198.51.100.9", "203.0.113.50:5555", "203.0.113.50"},
		{"trusted peer uses last hop", "198.51.100.9", "10.0.0.1:5555", "198.51.100.9"},
		{"spoofed leading hops are skipped", "1.1.1.1, 2.2.2.2, 198.51.100.9", "10.0.0.1:5555", "198.51.100.9"},
		{"chain of trusted proxies", "198.51.100.9, 10.1.2.3", "192.0.2.1:443", "198.51.100.9"},
		{"trusted peer without header", "", "10.0.0.1:5555", "10.0.0.1"},
		{"all hops trusted", "10.9.9.9", "10.0.0.1:5555", "10.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := c.Resolve(r); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPWithoutProxiesIgnoresHeader(t *testing.T) {
	c, err := NewClientIP(nil)
	if err != nil {
		t.Fatalf("NewClientIP: %v", err)
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.50:5555"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	if got := c.Resolve(r); got != "203.0.113.50" {
		t.Errorf("Resolve = %q, want %q", got, "203.0.113.50")
	}
}

func TestNewClientIPRejectsGarbage(t *testing.T) {
	for _, p := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := NewClientIP([]string{p}); err == nil {
			t.Errorf("NewClientIP(%q) succeeded, want error", p)
		}
	}
}

func TestRotatingForwardedForDoesNotEvadeLimit(t *testing.T) {
	rl, _ := newTestLimiter()
	c, err := NewClientIP(nil)
	if err != nil {
		t.Fatalf("NewClientIP: %v", err)
	}
	limit := Limit{Scope: "login", Requests: 2, Window: time.Minute}
	handler := RateLimit(rl, limit, c.Resolve)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest("POST", "/auth/login", nil)
		r.RemoteAddr = "203.0.113.50:5555"
		r.Header.Set("X-Forwarded-For", "198.51.100."+strconv.Itoa(i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", last, http.StatusTooManyRequests)
	}
}
