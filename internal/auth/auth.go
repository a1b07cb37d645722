// Package auth resolves caller principals from bearer tokens.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Principal identifies an authenticated caller. A nil *Principal means
// "no resolved caller" and is rejected by the facade before any store access.
type Principal struct {
	Subject string
}

// Resolver validates HS256-signed bearer tokens and extracts the subject.
type Resolver struct {
	secret []byte
}

func NewResolver(secret []byte) *Resolver {
	return &Resolver{secret: secret}
}

// FromToken parses and validates a raw JWT, returning the principal.
func (r *Resolver) FromToken(raw string) (*Principal, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &Principal{Subject: sub}, nil
}

// FromRequest resolves the principal from an Authorization: Bearer header.
// Returns (nil, nil) when the header is absent; the caller decides whether
// anonymous access is an error.
func (r *Resolver) FromRequest(req *http.Request) (*Principal, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}

	return r.FromToken(strings.TrimSpace(raw))
}

// Sign issues an HS256 token for the given subject. Used by tests and the
// local token helper in cmd/agendad.
func (r *Resolver) Sign(subject string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
	})
	return token.SignedString(r.secret)
}
