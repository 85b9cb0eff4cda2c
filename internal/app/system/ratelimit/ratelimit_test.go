package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Window(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Close()

	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("first two hits should pass")
	}
	if l.Allow("k") {
		t.Fatal("third hit should be limited")
	}
	if !l.Allow("other") {
		t.Fatal("keys must be independent")
	}

	now = now.Add(time.Minute + time.Second)
	if !l.Allow("k") {
		t.Fatal("new window should reset the count")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Close()

	l.Allow("k")
	l.Reset("k")
	if !l.Allow("k") {
		t.Fatal("Reset should clear the key")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:5555", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.1:5555", "5.6.7.8"},
		{"no port", nil, "10.0.0.9", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/login", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttemptLimiter_PerEmail(t *testing.T) {
	a := NewAttemptLimiter()
	defer a.Close()

	r := httptest.NewRequest("POST", "/login", nil)
	for i := 0; i < 5; i++ {
		if !a.Check(r, "Jane@Camp.Example") {
			t.Fatalf("attempt %d unexpectedly limited", i+1)
		}
	}
	if a.Check(r, "jane@camp.example") {
		t.Fatal("sixth attempt for the same email should be limited")
	}

	a.Succeeded("jane@camp.example")
	if !a.Check(r, "jane@camp.example") {
		t.Fatal("Succeeded should clear the email counter")
	}
}
