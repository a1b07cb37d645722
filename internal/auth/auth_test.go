package auth

import (
	"net/http/httptest"
	"testing"
)

func TestSignAndFromToken_Roundtrip(t *testing.T) {
	r := NewResolver([]byte("test-secret"))

	token, err := r.Sign("user-42")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	p, err := r.FromToken(token)
	if err != nil {
		t.Fatalf("FromToken failed: %v", err)
	}
	if p.Subject != "user-42" {
		t.Errorf("Subject = %q, want user-42", p.Subject)
	}
}

func TestFromToken_WrongSecret(t *testing.T) {
	token, err := NewResolver([]byte("secret-a")).Sign("user-1")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := NewResolver([]byte("secret-b")).FromToken(token); err == nil {
		t.Error("FromToken should reject a token signed with another secret")
	}
}

func TestFromToken_Garbage(t *testing.T) {
	r := NewResolver([]byte("test-secret"))
	if _, err := r.FromToken("not.a.jwt"); err == nil {
		t.Error("FromToken should reject malformed tokens")
	}
}

func TestFromRequest_NoHeader(t *testing.T) {
	r := NewResolver([]byte("test-secret"))
	req := httptest.NewRequest("GET", "/events/upcoming", nil)

	p, err := r.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest failed: %v", err)
	}
	if p != nil {
		t.Errorf("principal = %v, want nil for an anonymous request", p)
	}
}

func TestFromRequest_BearerToken(t *testing.T) {
	r := NewResolver([]byte("test-secret"))
	token, err := r.Sign("user-7")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/events/upcoming", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	p, err := r.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest failed: %v", err)
	}
	if p == nil || p.Subject != "user-7" {
		t.Errorf("principal = %v, want subject user-7", p)
	}
}

func TestFromRequest_NotBearer(t *testing.T) {
	r := NewResolver([]byte("test-secret"))
	req := httptest.NewRequest("GET", "/events/upcoming", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	if _, err := r.FromRequest(req); err == nil {
		t.Error("FromRequest should reject non-bearer authorization")
	}
}
