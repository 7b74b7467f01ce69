package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gaini88088/expert-pancake/internal/security"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

type fakeSessionSource struct {
	sessions map[string]*domain.Session
	err      error
}

func (f *fakeSessionSource) GetByID(_ context.Context, id string) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sessions[id], nil
}

// fakeActivity is safe for the detached touch goroutine; seen signals each
// recorded call.
type fakeActivity struct {
	mu      sync.Mutex
	touched []string
	seen    chan struct{}
}

func (f *fakeActivity) TouchActivity(_ context.Context, sessionID string) {
	f.mu.Lock()
	f.touched = append(f.touched, sessionID)
	f.mu.Unlock()
	if f.seen != nil {
		select {
		case f.seen <- struct{}{}:
		default:
		}
	}
}

func (f *fakeActivity) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.touched...)
}

func newTestAuth(t *testing.T, sessions *fakeSessionSource, activity *fakeActivity) (*Auth, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuth(tokens, sessions, activity, logger), tokens
}

func activeSession(id, userID string) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		ID:                id,
		UserID:            userID,
		DeviceFingerprint: "fp-1",
		DeviceClass:       domain.DeviceClassWebBrowser,
		TrustState:        domain.TrustStateTrusted,
		CreatedAt:         now,
		LastActiveAt:      now,
	}
}

func serveAuthed(auth *Auth, token string) (*httptest.ResponseRecorder, *http.Request) {
	var captured *http.Request
	h := auth.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/sessions", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, captured
}

func TestAuth_Require_MissingToken(t *testing.T) {
	auth, _ := newTestAuth(t, &fakeSessionSource{}, nil)

	rec, captured := serveAuthed(auth, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if captured != nil {
		t.Error("handler should not run without a token")
	}
}

func TestAuth_Require_GarbageToken(t *testing.T) {
	auth, _ := newTestAuth(t, &fakeSessionSource{}, nil)

	rec, _ := serveAuthed(auth, "not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_Require_ValidToken(t *testing.T) {
	sessions := &fakeSessionSource{sessions: map[string]*domain.Session{
		"session-1": activeSession("session-1", "user-1"),
	}}
	activity := &fakeActivity{seen: make(chan struct{}, 1)}
	auth, tokens := newTestAuth(t, sessions, activity)

	token, _, err := tokens.Issue("user-1", "session-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec, captured := serveAuthed(auth, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if captured == nil {
		t.Fatal("handler did not run")
	}
	userID, _ := GetUserID(captured.Context())
	if userID != "user-1" {
		t.Errorf("user_id = %q, want %q", userID, "user-1")
	}
	sessionID, _ := GetSessionID(captured.Context())
	if sessionID != "session-1" {
		t.Errorf("session_id = %q, want %q", sessionID, "session-1")
	}
	select {
	case <-activity.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("activity touch never happened")
	}
	if got := activity.snapshot(); len(got) != 1 || got[0] != "session-1" {
		t.Errorf("touched = %v, want [session-1]", got)
	}
}

func TestAuth_Require_RevokedSession(t *testing.T) {
	revoked := activeSession("session-1", "user-1")
	at := time.Now().UTC()
	revoked.RevokedAt = &at
	sessions := &fakeSessionSource{sessions: map[string]*domain.Session{"session-1": revoked}}
	auth, tokens := newTestAuth(t, sessions, nil)

	token, _, err := tokens.Issue("user-1", "session-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec, _ := serveAuthed(auth, token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_Require_SessionGone(t *testing.T) {
	auth, tokens := newTestAuth(t, &fakeSessionSource{}, nil)

	token, _, err := tokens.Issue("user-1", "session-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec, _ := serveAuthed(auth, token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_Require_UserMismatch(t *testing.T) {
	sessions := &fakeSessionSource{sessions: map[string]*domain.Session{
		"session-1": activeSession("session-1", "user-2"),
	}}
	auth, tokens := newTestAuth(t, sessions, nil)

	token, _, err := tokens.Issue("user-1", "session-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec, _ := serveAuthed(auth, token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"BEARER abc123", "abc123"},
		{"Bearer   abc123  ", "abc123"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := extractBearer(req); got != tc.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
