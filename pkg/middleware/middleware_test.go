package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bipedhq/armor/pkg/auth"
	"github.com/bipedhq/armor/pkg/csrf"
	"github.com/bipedhq/armor/pkg/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestChain_Order(t *testing.T) {
	var order []string

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(tag("first"), tag("second"), tag("third"))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(&ratelimit.Config{MaxClients: 100}, nil)
	handler := RateLimit(RateLimitOptions{
		Quota:   limiter,
		Preset:  ratelimit.Preset{Name: "test", MaxRequests: 2, Window: time.Minute},
		KeyFunc: func(r *http.Request) string { return r.RemoteAddr },
	})(okHandler())

	// First two requests pass with decreasing remaining
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("X-RateLimit-Limit = %q, want %q", got, "2")
		}
	}

	// Third is rejected with the machine-readable body
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "0")
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on rejection")
	}

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retry_after"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "Rate limit exceeded" {
		t.Errorf("error = %q", body.Error)
	}
	if !strings.Contains(body.Message, "2 requests per") {
		t.Errorf("message = %q, want quota description", body.Message)
	}
	if body.RetryAfter <= 0 {
		t.Errorf("retry_after = %d, want positive", body.RetryAfter)
	}

	// A different client is unaffected
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.8:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_NilQuotaPassesThrough(t *testing.T) {
	handler := RateLimit(RateLimitOptions{
		KeyFunc: func(r *http.Request) string { return "x" },
	})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCSRF(t *testing.T) {
	guard := csrf.NewGuard(nil, nil)
	token, err := guard.IssueToken("session-1")
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	handler := CSRF(CSRFOptions{
		Guard: guard,
		SessionID: func(r *http.Request) string {
			c, err := r.Cookie("session")
			if err != nil {
				return ""
			}
			return c.Value
		},
	})(okHandler())

	tests := []struct {
		name       string
		method     string
		session    string
		token      string
		wantStatus int
	}{
		{"GET passes without token", http.MethodGet, "", "", http.StatusOK},
		{"HEAD passes without token", http.MethodHead, "", "", http.StatusOK},
		{"OPTIONS passes without token", http.MethodOptions, "", "", http.StatusOK},
		{"POST with valid token", http.MethodPost, "session-1", token, http.StatusOK},
		{"POST without token", http.MethodPost, "session-1", "", http.StatusForbidden},
		{"POST with wrong token", http.MethodPost, "session-1", "forged", http.StatusForbidden},
		{"POST with another session's token", http.MethodPost, "session-2", token, http.StatusForbidden},
		{"POST without session", http.MethodPost, "", token, http.StatusForbidden},
		{"DELETE without token", http.MethodDelete, "session-1", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/resource", nil)
			if tt.session != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.session})
			}
			if tt.token != "" {
				req.Header.Set(CSRFTokenHeader, tt.token)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	authority, err := auth.NewAuthority("integration-test-secret-0123456789abcdef", "biped", nil)
	if err != nil {
		t.Fatalf("NewAuthority() failed: %v", err)
	}

	token, err := authority.Issue("user1", "member", "api", time.Hour)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	var captured *auth.Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireAuth(AuthOptions{
		Authority: authority,
		Audience:  "api",
		Issuer:    "biped",
	})(inner)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid bearer token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme accepted", "bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured = nil

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if captured == nil {
					t.Fatal("claims missing from context")
				}
				if captured.Subject != "user1" {
					t.Errorf("subject = %q, want %q", captured.Subject, "user1")
				}
			}
		})
	}
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	authority, _ := auth.NewAuthority("integration-test-secret-0123456789abcdef", "biped", nil)
	token, _ := authority.Issue("user1", "member", "api", time.Hour)

	claims, err := authority.Verify(token, "api", "biped")
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	authority.RevokeClaims(claims)

	handler := RequireAuth(AuthOptions{
		Authority: authority,
		Audience:  "api",
		Issuer:    "biped",
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	authority, _ := auth.NewAuthority("integration-test-secret-0123456789abcdef", "biped", nil)

	adminToken, _ := authority.Issue("root", "admin", "api", time.Hour)
	memberToken, _ := authority.Issue("user1", "member", "api", time.Hour)

	handler := Chain(
		RequireAuth(AuthOptions{Authority: authority, Audience: "api", Issuer: "biped"}),
		RequireRole("admin"),
	)(okHandler())

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"admin allowed", adminToken, http.StatusOK},
		{"member forbidden", memberToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	handler := RequireRole("admin")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	})
	handler := RequestID()(inner)

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if seen == "" {
			t.Error("request ID missing from context")
		}
		if rec.Header().Get(RequestIDHeader) != seen {
			t.Error("response header should echo the request ID")
		}
	})

	t.Run("honors sanitized client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "trace-123")

		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "trace-123" {
			t.Errorf("request ID = %q, want %q", seen, "trace-123")
		}
	})

	t.Run("strips hostile characters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc\ndef<script>")

		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "abcdefscript" {
			t.Errorf("request ID = %q, want %q", seen, "abcdefscript")
		}
	})

	t.Run("caps length", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 200))

		handler.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) != 64 {
			t.Errorf("request ID length = %d, want 64", len(seen))
		}
	})
}

func TestBodySizeLimit(t *testing.T) {
	handler := BodySizeLimit(16)(okHandler())

	t.Run("small body passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small"))
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("oversized declared length rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})
}

func TestPanicRecovery(t *testing.T) {
	handler := PanicRecovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "Internal server error" {
		t.Errorf("error = %q, panic detail must not leak", body.Error)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(&SecurityHeadersConfig{TLSEnabled: true})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	}
	for header, value := range want {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy missing")
	}

	// Without TLS no HSTS
	handler = SecurityHeaders(nil)(okHandler())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should be absent without TLS")
	}
}

func TestClientIP(t *testing.T) {
	trusted := ParseTrustedProxies("10.0.0.0/8")

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		trusted    bool
		want       string
	}{
		{"direct client", "203.0.113.7:1234", "", "", true, "203.0.113.7"},
		{"forwarded via trusted proxy", "10.0.0.1:1234", "198.51.100.9, 10.0.0.1", "", true, "198.51.100.9"},
		{"x-real-ip via trusted proxy", "10.0.0.1:1234", "", "198.51.100.9", true, "198.51.100.9"},
		{"spoofed header from untrusted peer", "203.0.113.7:1234", "198.51.100.9", "", true, "203.0.113.7"},
		{"no proxies configured", "10.0.0.1:1234", "198.51.100.9", "", false, "10.0.0.1"},
		{"unparseable remote", "not-an-address", "", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			networks := trusted
			if !tt.trusted {
				networks = nil
			}

			if got := ClientIP(req, networks); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"empty", "", 0},
		{"single cidr", "10.0.0.0/8", 1},
		{"single ip gets mask", "192.168.1.1", 1},
		{"ipv6 ip gets mask", "::1", 1},
		{"mixed with garbage", "10.0.0.0/8, not-an-ip, 192.168.1.1", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTrustedProxies(tt.input); len(got) != tt.count {
				t.Errorf("ParseTrustedProxies(%q) returned %d networks, want %d", tt.input, len(got), tt.count)
			}
		})
	}
}
