package middleware

import (
	"context"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "session-1")

	if got, ok := GetUserID(ctx); !ok || got != "user-1" {
		t.Errorf("GetUserID = %q, %v, want user-1, true", got, ok)
	}
	if got, ok := GetSessionID(ctx); !ok || got != "session-1" {
		t.Errorf("GetSessionID = %q, %v, want session-1, true", got, ok)
	}
}

func TestIdentityAbsent(t *testing.T) {
	ctx := context.Background()
	if got, ok := GetUserID(ctx); ok || got != "" {
		t.Errorf("GetUserID on bare context = %q, %v, want empty, false", got, ok)
	}
	if got, ok := GetSessionID(ctx); ok || got != "" {
		t.Errorf("GetSessionID on bare context = %q, %v, want empty, false", got, ok)
	}
}

func TestIdentityOverride(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "session-1")
	ctx = WithIdentity(ctx, "user-2", "session-2")

	if got, _ := GetUserID(ctx); got != "user-2" {
		t.Errorf("user id after override = %q, want user-2", got)
	}
	if got, _ := GetSessionID(ctx); got != "session-2" {
		t.Errorf("session id after override = %q, want session-2", got)
	}
}

func TestClientIP_RoundTrip(t *testing.T) {
	if got := ClientIP(context.Background()); got != "" {
		t.Errorf("ClientIP on bare context = %q, want empty", got)
	}
	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if got := ClientIP(ctx); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want 203.0.113.9", got)
	}
}
