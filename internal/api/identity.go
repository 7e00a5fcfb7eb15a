// ABOUTME: Identity resolution for API requests.
// ABOUTME: Bearer tokens map to user ids; test routes trust the X-User-Id header.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnauthenticated means no user could be resolved for a request.
var ErrUnauthenticated = errors.New("unauthenticated")

// HeaderUserID carries the user id on test routes.
const HeaderUserID = "X-User-Id"

// IdentityResolver maps a request to a user id.
type IdentityResolver interface {
	Resolve(r *http.Request) (int64, error)
}

// TokenResolver resolves "Authorization: Bearer <token>" against a token map.
type TokenResolver struct {
	tokens map[string]int64
}

// NewTokenResolver copies tokens into a resolver.
func NewTokenResolver(tokens map[string]int64) *TokenResolver {
	t := &TokenResolver{tokens: make(map[string]int64, len(tokens))}
	for k, v := range tokens {
		t.tokens[k] = v
	}
	return t
}

func (t *TokenResolver) Resolve(r *http.Request) (int64, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return 0, ErrUnauthenticated
	}
	uid, ok := t.tokens[strings.TrimSpace(token)]
	if !ok || uid <= 0 {
		return 0, ErrUnauthenticated
	}
	return uid, nil
}

// HeaderResolver reads the user id from the X-User-Id header.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return 0, ErrUnauthenticated
	}
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || uid <= 0 {
		return 0, ErrUnauthenticated
	}
	return uid, nil
}
