package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/infrastructure/auth"
)

type verifierStub struct {
	claims *auth.Claims
	err    error
}

func (v verifierStub) Verify(token string) (*auth.Claims, error) {
	return v.claims, v.err
}

func TestAuthMiddleware(t *testing.T) {
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "auth_failures_total"}, []string{"reason"})

	tests := []struct {
		name     string
		header   string
		verifier verifierStub
		status   int
		reason   string
	}{
		{"missing header", "", verifierStub{}, http.StatusUnauthorized, "missing"},
		{"not bearer", "Basic abc", verifierStub{}, http.StatusUnauthorized, "malformed"},
		{"expired", "Bearer tok", verifierStub{err: domain.ErrExpiredToken}, http.StatusUnauthorized, "expired"},
		{"valid", "Bearer tok", verifierStub{claims: &auth.Claims{UserID: "user-1", Role: domain.RoleViewer}}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *domain.User
			handler := AuthMiddleware(tt.verifier, failures)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = GetUserFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/outstanding", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
			if tt.reason != "" && testutil.ToFloat64(failures.WithLabelValues(tt.reason)) != 1 {
				t.Fatalf("expected failure counted under %s", tt.reason)
			}
			if tt.status == http.StatusOK && (seen == nil || seen.ID != "user-1") {
				t.Fatalf("expected user in context, got %+v", seen)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name   string
		user   *domain.User
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"viewer cannot pay", &domain.User{ID: "v", Role: domain.RoleViewer}, http.StatusForbidden},
		{"operator can pay", &domain.User{ID: "o", Role: domain.RoleOperator}, http.StatusCreated},
		{"admin can pay", &domain.User{ID: "a", Role: domain.RoleAdmin}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequirePermission(domain.ResourcePayment, domain.ActionCreate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
			if tt.user != nil {
				req = req.WithContext(withUser(req, tt.user))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestRecoveryWritesInternalError(t *testing.T) {
	var logs bytes.Buffer
	handler := Recovery(zerolog.New(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("nil residence"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/residences/res-1/breakdown", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(logs.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %s", logs.String())
	}
}

func TestLoggingMiddlewareLogsStatusAndUser(t *testing.T) {
	var logs bytes.Buffer
	handler := NewLoggingMiddleware(zerolog.New(&logs)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/residences/res-404/breakdown", nil)
	req = req.WithContext(withUser(req, &domain.User{ID: "user-9", Role: domain.RoleViewer}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := logs.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"user_id":"user-9"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func withUser(r *http.Request, u *domain.User) context.Context {
	return context.WithValue(r.Context(), UserContextKey, u)
}
