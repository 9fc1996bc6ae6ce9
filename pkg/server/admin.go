package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/types"
)

const defaultListWindow = 30 * 24 * time.Hour

// emailVerifier adapts an oidc verifier into a tokenVerifier.
func emailVerifier(v *oidc.IDTokenVerifier) tokenVerifier {
	return func(ctx context.Context, rawIDToken string) (string, error) {
		idToken, err := v.Verify(ctx, rawIDToken)
		if err != nil {
			return "", err
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return "", fmt.Errorf("failed to parse claims: %w", err)
		}
		return claims.Email, nil
	}
}

func (s *Server) authenticateToken(ctx context.Context, token string) (string, error) {
	var errs []error
	for providerName, verifier := range s.oidcVerifiers {
		email, err := verifier(ctx, token)
		if err == nil {
			return email, nil
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", errors.New("no valid audiences configured or token invalid")
}

func (s *Server) isAdmin(email string) bool {
	return email != "" && slices.Contains(s.adminEmails, email)
}

// adminMiddleware requires a bearer ID token issued to one of the admin
// emails unless auth is bypassed.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.bypassAuth {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}
		email, err := s.authenticateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "admin token validation failed", slog.Any("error", err))
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !s.isAdmin(email) {
			log.Ctx(ctx).WarnContext(ctx, "unauthorized access to admin endpoint", slog.String("email", email))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(log.WithAttrs(ctx, slog.String("admin", email))))
	})
}

// handleListQuotes lists the quotes created in [start, end). Both default to
// a window ending now.
func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	end := s.now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid end time", http.StatusBadRequest)
			return
		}
		end = t
	}
	start := end.Add(-defaultListWindow)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid start time", http.StatusBadRequest)
			return
		}
		start = t
	}
	if !start.Before(end) {
		writeJSONError(w, "start must be before end", http.StatusBadRequest)
		return
	}

	quotes, err := s.storage.ListQuotes(ctx, start, end)
	if err != nil {
		writeError(ctx, w, "failed to list quotes", err)
		return
	}

	// Always return an array, even if empty
	if quotes == nil {
		quotes = []types.Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}
