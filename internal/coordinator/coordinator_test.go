package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	notifydomain "github.com/gaini88088/expert-pancake/internal/notify/domain"
	"github.com/gaini88088/expert-pancake/internal/platform/userlock"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
	sessionrepo "github.com/gaini88088/expert-pancake/internal/session/repository"
	sessionservice "github.com/gaini88088/expert-pancake/internal/session/service"
	"github.com/gaini88088/expert-pancake/internal/trust/engine"
	trustrepo "github.com/gaini88088/expert-pancake/internal/trust/repository"
	trustservice "github.com/gaini88088/expert-pancake/internal/trust/service"
)

type stubDispatcher struct {
	mu     sync.Mutex
	events []*notifydomain.Event
}

func (d *stubDispatcher) Dispatch(event *notifydomain.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *stubDispatcher) byType(t notifydomain.EventType) []*notifydomain.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*notifydomain.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type auditEntry struct {
	userID, sessionID, action, outcome, detail string
}

type stubAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *stubAudit) LogEvent(_ context.Context, userID, sessionID, action, outcome, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{userID, sessionID, action, outcome, detail})
}

func (a *stubAudit) find(action string) []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []auditEntry
	for _, e := range a.entries {
		if e.action == action {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	coord    *Coordinator
	manager  *sessionservice.Manager
	sessions *sessionrepo.MemoryRepository
	trust    *trustrepo.MemoryRepository
	events   *stubDispatcher
	audits   *stubAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := sessionrepo.NewMemoryRepository()
	trust := trustrepo.NewMemoryRepository()
	eng := engine.NewOPAEvaluator(logger)
	evaluator := trustservice.NewEvaluator(trust, sessions, eng, 500, logger)
	manager := sessionservice.NewManager(sessions, evaluator, userlock.NewManager(), 2*time.Second, logger)
	events := &stubDispatcher{}
	audits := &stubAudit{}
	return &testEnv{
		coord:    New(manager, events, audits, logger),
		manager:  manager,
		sessions: sessions,
		trust:    trust,
		events:   events,
		audits:   audits,
	}
}

func login(t *testing.T, env *testEnv, in LoginInput) *LoginResult {
	t.Helper()
	res, err := env.coord.LoginNewDevice(context.Background(), in)
	if err != nil {
		t.Fatalf("LoginNewDevice() error = %v", err)
	}
	return res
}

func TestCoordinator_LoginNewDevice(t *testing.T) {
	env := newTestEnv(t)

	res := login(t, env, LoginInput{
		UserID:            "user-1",
		DeviceFingerprint: "fp-laptop",
		DeviceClass:       domain.DeviceClassWebBrowser,
		IPAddress:         "203.0.113.10",
	})

	if res.Session == nil || res.Session.ID == "" {
		t.Fatal("LoginNewDevice() returned no session")
	}
	if res.OthersTerminated != 0 || res.BulkLogoutIncomplete {
		t.Errorf("unexpected displacement: %+v", res)
	}

	logins := env.events.byType(notifydomain.EventLogin)
	if len(logins) != 1 {
		t.Fatalf("login events = %d, want 1", len(logins))
	}
	if logins[0].SessionID != res.Session.ID {
		t.Errorf("login event session = %q, want %q", logins[0].SessionID, res.Session.ID)
	}

	audits := env.audits.find("login")
	if len(audits) != 1 || audits[0].outcome != "success" {
		t.Errorf("login audit entries = %+v, want one success", audits)
	}
}

func TestCoordinator_LoginNewDevice_WithBulkLogout(t *testing.T) {
	env := newTestEnv(t)

	login(t, env, LoginInput{UserID: "user-1", DeviceFingerprint: "fp-old-1", DeviceClass: domain.DeviceClassWebBrowser})
	login(t, env, LoginInput{UserID: "user-1", DeviceFingerprint: "fp-old-2", DeviceClass: domain.DeviceClassMobileApp})

	res := login(t, env, LoginInput{
		UserID:             "user-1",
		DeviceFingerprint:  "fp-new",
		DeviceClass:        domain.DeviceClassWebBrowser,
		LogoutOtherDevices: true,
	})

	if res.OthersTerminated != 2 {
		t.Errorf("OthersTerminated = %d, want 2", res.OthersTerminated)
	}
	if got := len(env.events.byType(notifydomain.EventSessionExpired)); got != 2 {
		t.Errorf("sessionExpired events = %d, want 2", got)
	}

	list, err := env.manager.List(context.Background(), "user-1", res.Session.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != res.Session.ID {
		t.Errorf("active sessions after displacement = %d, want only the new one", len(list))
	}

	audits := env.audits.find("logout_others")
	if len(audits) != 1 || audits[0].outcome != "success" {
		t.Errorf("logout_others audit entries = %+v, want one success", audits)
	}
}

func TestCoordinator_LoginNewDevice_SuspiciousRaisesAlert(t *testing.T) {
	env := newTestEnv(t)

	berlin := &domain.Location{Lat: 52.52, Lon: 13.405}
	first := login(t, env, LoginInput{
		UserID:            "user-1",
		DeviceFingerprint: "fp-home",
		DeviceClass:       domain.DeviceClassWebBrowser,
		Location:          berlin,
	})
	if first.Session.TrustState != domain.TrustStateTrusted {
		t.Fatalf("first login trust = %q, want trusted", first.Session.TrustState)
	}
	if err := env.trust.RecordVerifiedLogin(context.Background(), "user-1", "fp-home", time.Now().UTC()); err != nil {
		t.Fatalf("RecordVerifiedLogin() error = %v", err)
	}

	nyc := &domain.Location{Lat: 40.7128, Lon: -74.006}
	res := login(t, env, LoginInput{
		UserID:            "user-1",
		DeviceFingerprint: "fp-unknown",
		DeviceClass:       domain.DeviceClassWebBrowser,
		Location:          nyc,
	})

	if res.Session.TrustState != domain.TrustStateSuspicious {
		t.Fatalf("distant login trust = %q, want suspicious", res.Session.TrustState)
	}
	if !res.VerificationRequired {
		t.Error("VerificationRequired = false, want true for suspicious login")
	}
	alerts := env.events.byType(notifydomain.EventSecurityAlert)
	if len(alerts) != 1 {
		t.Fatalf("securityAlert events = %d, want 1", len(alerts))
	}
	if alerts[0].Meta["reason"] == "" {
		t.Error("securityAlert has no reason")
	}
}

func TestCoordinator_LoginNewDevice_CreateFails(t *testing.T) {
	env := newTestEnv(t)
	fake := &fakeSessions{createErr: errors.New("storage offline")}
	env.coord.sessions = fake

	_, err := env.coord.LoginNewDevice(context.Background(), LoginInput{
		UserID: "user-1", DeviceFingerprint: "fp-1", DeviceClass: domain.DeviceClassWebBrowser,
	})
	if err == nil {
		t.Fatal("LoginNewDevice() error = nil, want storage failure")
	}
	if len(env.events.events) != 0 {
		t.Errorf("events dispatched on failed login: %d", len(env.events.events))
	}
	audits := env.audits.find("login")
	if len(audits) != 1 || audits[0].outcome != "failure" {
		t.Errorf("login audit entries = %+v, want one failure", audits)
	}
}

func TestCoordinator_LoginNewDevice_BulkLogoutPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	sess := &domain.Session{
		ID: "sess-new", UserID: "user-1", DeviceFingerprint: "fp-new",
		DeviceClass: domain.DeviceClassWebBrowser, TrustState: domain.TrustStateTrusted,
	}
	displaced := &domain.Session{
		ID: "sess-old", UserID: "user-1", DeviceFingerprint: "fp-old",
		DeviceClass: domain.DeviceClassMobileApp, TrustState: domain.TrustStateTrusted,
	}
	fake := &fakeSessions{
		createRes:        &sessionservice.CreateResult{Session: sess},
		othersN:          1,
		othersTerminated: []*domain.Session{displaced},
		othersErr:        errors.New("storage offline"),
	}
	env.coord.sessions = fake

	res, err := env.coord.LoginNewDevice(context.Background(), LoginInput{
		UserID: "user-1", DeviceFingerprint: "fp-new",
		DeviceClass: domain.DeviceClassWebBrowser, LogoutOtherDevices: true,
	})
	if err != nil {
		t.Fatalf("LoginNewDevice() error = %v, want nil (login stands)", err)
	}
	if !res.BulkLogoutIncomplete {
		t.Error("BulkLogoutIncomplete = false, want true")
	}
	if res.OthersTerminated != 1 {
		t.Errorf("OthersTerminated = %d, want partial count 1", res.OthersTerminated)
	}
	if got := len(env.events.byType(notifydomain.EventLogin)); got != 1 {
		t.Errorf("login events = %d, want 1", got)
	}
	if got := len(env.events.byType(notifydomain.EventSessionExpired)); got != 1 {
		t.Errorf("sessionExpired events = %d, want 1 for the revoked session", got)
	}
	audits := env.audits.find("logout_others")
	if len(audits) != 1 || audits[0].outcome != "failure" {
		t.Errorf("logout_others audit entries = %+v, want one failure", audits)
	}
}

func TestCoordinator_Logout(t *testing.T) {
	env := newTestEnv(t)
	res := login(t, env, LoginInput{UserID: "user-1", DeviceFingerprint: "fp-1", DeviceClass: domain.DeviceClassWebBrowser})

	if err := env.coord.Logout(context.Background(), "user-1", res.Session.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	stored, _ := env.sessions.GetByID(context.Background(), res.Session.ID)
	if stored.Active() {
		t.Error("session still active after Logout")
	}
	audits := env.audits.find("logout")
	if len(audits) != 1 || audits[0].outcome != "success" {
		t.Errorf("logout audit entries = %+v, want one success", audits)
	}
}

func TestCoordinator_Logout_UnknownSession(t *testing.T) {
	env := newTestEnv(t)

	err := env.coord.Logout(context.Background(), "user-1", "no-such-session")
	if !errors.Is(err, sessionservice.ErrNotFound) {
		t.Fatalf("Logout() error = %v, want %v", err, sessionservice.ErrNotFound)
	}
	audits := env.audits.find("logout")
	if len(audits) != 1 || audits[0].outcome != "failure" {
		t.Errorf("logout audit entries = %+v, want one failure", audits)
	}
}

func TestCoordinator_RevokeOthers(t *testing.T) {
	env := newTestEnv(t)
	login(t, env, LoginInput{UserID: "user-1", DeviceFingerprint: "fp-a", DeviceClass: domain.DeviceClassWebBrowser})
	cur := login(t, env, LoginInput{UserID: "user-1", DeviceFingerprint: "fp-b", DeviceClass: domain.DeviceClassMobileApp})

	n, err := env.coord.RevokeOthers(context.Background(), "user-1", cur.Session.ID)
	if err != nil {
		t.Fatalf("RevokeOthers() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RevokeOthers() = %d, want 1", n)
	}
	if got := len(env.events.byType(notifydomain.EventSessionExpired)); got != 1 {
		t.Errorf("sessionExpired events = %d, want 1", got)
	}
}

func TestCoordinator_EmergencyLogout(t *testing.T) {
	env := newTestEnv(t)
	login(t, env, LoginInput{UserID: "user-1", DeviceFingerprint: "fp-a", DeviceClass: domain.DeviceClassWebBrowser})
	login(t, env, LoginInput{UserID: "user-1", DeviceFingerprint: "fp-b", DeviceClass: domain.DeviceClassMobileApp})

	n, err := env.coord.EmergencyLogout(context.Background(), "user-1", "device reported stolen")
	if err != nil {
		t.Fatalf("EmergencyLogout() error = %v", err)
	}
	if n != 2 {
		t.Errorf("EmergencyLogout() = %d, want 2", n)
	}
	list, _ := env.manager.List(context.Background(), "user-1", "")
	if len(list) != 0 {
		t.Errorf("active sessions after emergency logout = %d, want 0", len(list))
	}
	if got := len(env.events.byType(notifydomain.EventLogoutAll)); got != 1 {
		t.Errorf("logoutAll events = %d, want 1", got)
	}
	alerts := env.events.byType(notifydomain.EventSecurityAlert)
	if len(alerts) != 1 {
		t.Fatalf("securityAlert events = %d, want 1", len(alerts))
	}
	if alerts[0].Meta["reason"] != "device reported stolen" {
		t.Errorf("alert reason = %q, want the caller's reason", alerts[0].Meta["reason"])
	}
	audits := env.audits.find("emergency_logout")
	if len(audits) != 1 || audits[0].outcome != "success" {
		t.Errorf("emergency_logout audit entries = %+v, want one success", audits)
	}
}

// fakeSessions injects failures the real manager cannot produce on demand.
type fakeSessions struct {
	createRes        *sessionservice.CreateResult
	createErr        error
	othersN          int
	othersTerminated []*domain.Session
	othersErr        error
}

func (f *fakeSessions) Create(context.Context, string, string, domain.DeviceClass, string, *domain.Location) (*sessionservice.CreateResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createRes, nil
}

func (f *fakeSessions) Terminate(context.Context, string, string) error { return nil }

func (f *fakeSessions) TerminateAllOthers(context.Context, string, string) (int, []*domain.Session, error) {
	return f.othersN, f.othersTerminated, f.othersErr
}

func (f *fakeSessions) TerminateAll(context.Context, string) (int, []*domain.Session, error) {
	return 0, nil, nil
}
