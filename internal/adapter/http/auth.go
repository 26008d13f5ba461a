package http

import (
	"fmt"
	"strings"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// TokenDirectory maps static bearer tokens to callers.
type TokenDirectory map[string]domain.Caller

// anonymous is the caller of requests without a bearer token.
var anonymous = domain.Caller{Subject: "anonymous"}

// ParseTokens reads a directory in the form
// "token=Perm1|Perm2,other=SuperAdmin". Each token is its own subject.
func ParseTokens(s string) (TokenDirectory, error) {
	dir := make(TokenDirectory)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		token, perms, ok := strings.Cut(entry, "=")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return nil, fmt.Errorf("malformed token entry %q", entry)
		}

		caller := domain.Caller{Subject: "token:" + abbreviate(token)}
		for _, p := range strings.Split(perms, "|") {
			if p = strings.TrimSpace(p); p != "" {
				caller.Permissions = append(caller.Permissions, domain.Permission(p))
			}
		}
		dir[token] = caller
	}
	return dir, nil
}

// Resolve returns the caller for an Authorization header value. A missing
// header is the anonymous caller; an unknown token is an error.
func (d TokenDirectory) Resolve(header string) (domain.Caller, error) {
	if header == "" {
		return anonymous, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return domain.Caller{}, fmt.Errorf("unsupported authorization scheme")
	}
	caller, ok := d[strings.TrimSpace(token)]
	if !ok {
		return domain.Caller{}, fmt.Errorf("unknown bearer token")
	}
	return caller, nil
}

func abbreviate(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[:4] + "…"
}
