// Package api implements HTTP handlers and helpers for the genetic route optimizer service.
package api

import (
    "context"
    "net/http"
    "strings"

    "cvrpga/internal/auth"
)

type Principal struct {
    Tenant string
    Role   string // admin, user
}

type principalKey struct{}

// getPrincipal returns the verified principal when auth is enabled; otherwise
// it reads the X-Tenant-Id and X-Role headers set by an upstream gateway.
func (s *Server) getPrincipal(r *http.Request) Principal {
    if p, ok := r.Context().Value(principalKey{}).(Principal); ok { return p }
    tenant := r.Header.Get("X-Tenant-Id")
    role := r.Header.Get("X-Role")
    if tenant == "" {
        tenant = "t_demo"
    }
    if role == "" {
        role = "user"
    }
    return Principal{Tenant: tenant, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// RequireAuth verifies the bearer token on /v1/ and /graphql/ paths when a
// verifier is configured. Browsers cannot set headers on WebSocket upgrades,
// so /graphql/ws also accepts ?access_token=.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if s.Auth == nil || !(strings.HasPrefix(r.URL.Path, "/v1/") || strings.HasPrefix(r.URL.Path, "/graphql/")) {
            next.ServeHTTP(w, r)
            return
        }
        tok := bearerToken(r)
        if tok == "" {
            w.Header().Set("WWW-Authenticate", "Bearer")
            writeProblem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required", r.URL.Path)
            return
        }
        ap, err := s.Auth.Verify(tok)
        if err != nil {
            w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
            writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
            return
        }
        ctx := context.WithValue(r.Context(), principalKey{}, fromAuth(ap))
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

func fromAuth(p auth.Principal) Principal { return Principal{Tenant: p.Tenant, Role: p.Role} }

func bearerToken(r *http.Request) string {
    authz := r.Header.Get("Authorization")
    if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
        return strings.TrimSpace(authz[7:])
    }
    if r.URL.Path == "/graphql/ws" {
        return r.URL.Query().Get("access_token")
    }
    return ""
}
