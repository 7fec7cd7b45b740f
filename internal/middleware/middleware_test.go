package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func protectedHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context()) + "|" + GetUserEmail(r.Context())))
	})
}

func TestJWTAuth_ValidToken(t *testing.T) {
	auth := NewJWTAuth("secret")
	token, err := auth.GenerateAccessToken("user_abc", "a@b.c", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	auth.Middleware(protectedHandler(t)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "user_abc|a@b.c" {
		t.Fatalf("expected identity in context, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestJWTAuth_SubjectClaimAndRequiredExpiry(t *testing.T) {
	auth := NewJWTAuth("secret")

	hosted, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "8f14e45f-ceea-467a-9575-6d3c1a0a0b11",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(auth.Secret)
	if err != nil {
		t.Fatal(err)
	}
	userID, _, err := auth.ParseToken(hosted)
	if err != nil || userID != "8f14e45f-ceea-467a-9575-6d3c1a0a0b11" {
		t.Fatalf("expected sub to identify the user, got %q %v", userID, err)
	}

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user_abc"}).SignedString(auth.Secret)
	if _, _, err := auth.ParseToken(noExpiry); err == nil {
		t.Fatal("tokens without exp should be rejected")
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": "user_abc",
		"exp":     time.Now().Add(time.Minute).Unix(),
	}).SignedString(auth.Secret)
	if _, _, err := auth.ParseToken(hs512); err == nil {
		t.Fatal("only HS256 tokens should be accepted")
	}
}

func TestJWTAuth_Rejections(t *testing.T) {
	auth := NewJWTAuth("secret")
	expired, _ := auth.GenerateAccessToken("user_abc", "", -time.Minute)
	foreign, _ := NewJWTAuth("other").GenerateAccessToken("user_abc", "", time.Minute)
	noUser, _ := auth.GenerateAccessToken("", "", time.Minute)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"not bearer", "Token abc", "UNAUTHORIZED"},
		{"wrong secret", "Bearer " + foreign, "UNAUTHORIZED"},
		{"expired", "Bearer " + expired, "TOKEN_EXPIRED"},
		{"no user id", "Bearer " + noUser, "UNAUTHORIZED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			auth.Middleware(protectedHandler(t)).ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			json.NewDecoder(rr.Body).Decode(&body)
			if body.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, body.Error.Code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated id echoed, got %q / %q", seen, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "req-1" || rr.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("caller id should be kept")
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS("http://localhost:5173/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plan", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("preflight should be answered by the middleware")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" || !called {
		t.Fatalf("foreign origin should pass through without CORS headers")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/create-subscription", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestRateLimiter_WindowResetsAndKeysByUser(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/workspace/generate", nil)
		req.RemoteAddr = "10.0.0.2:5555"
		if userID != "" {
			req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	if rr := send("user_a"); rr.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rr.Code)
	}
	rr := send("user_a")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}
	// Same IP, different user.
	if rr := send("user_b"); rr.Code != http.StatusOK {
		t.Fatalf("other user should have its own window, got %d", rr.Code)
	}

	now = now.Add(time.Minute)
	if rr := send("user_a"); rr.Code != http.StatusOK {
		t.Fatalf("new window should pass, got %d", rr.Code)
	}
}
