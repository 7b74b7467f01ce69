package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
	"github.com/gaini88088/expert-pancake/internal/notify/repository"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		event       *domain.Event
		wantSubject string
		wantInBody  string
		wantUrgent  bool
	}{
		{
			name: "login",
			event: domain.NewEvent(domain.EventLogin, "user-1").
				WithSession("sess-1", "fp-1", "web-browser", "203.0.113.9"),
			wantSubject: "New sign-in to your account",
			wantInBody:  "203.0.113.9",
		},
		{
			name:        "logout all",
			event:       domain.NewEvent(domain.EventLogoutAll, "user-1"),
			wantSubject: "All sessions signed out",
			wantInBody:  "signed out",
		},
		{
			name: "session expired",
			event: domain.NewEvent(domain.EventSessionExpired, "user-1").
				WithSession("sess-1", "fp-1", "mobile-app", ""),
			wantSubject: "A session expired",
			wantInBody:  "mobile-app",
		},
		{
			name: "security alert with reason",
			event: domain.NewEvent(domain.EventSecurityAlert, "user-1").
				WithMeta("reason", "sign-in from an unusual location"),
			wantSubject: "Security alert",
			wantInBody:  "unusual location",
			wantUrgent:  true,
		},
		{
			name:        "unknown type gets generic envelope",
			event:       domain.NewEvent(domain.EventType("future-thing"), "user-1"),
			wantSubject: "Account notification",
			wantInBody:  "future-thing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Render(tt.event)
			if msg.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", msg.Subject, tt.wantSubject)
			}
			if !strings.Contains(msg.Body, tt.wantInBody) {
				t.Errorf("Body = %q, want it to contain %q", msg.Body, tt.wantInBody)
			}
			if msg.Urgent != tt.wantUrgent {
				t.Errorf("Urgent = %v, want %v", msg.Urgent, tt.wantUrgent)
			}
			if msg.UserID != "user-1" {
				t.Errorf("UserID = %q, want user-1", msg.UserID)
			}
		})
	}
}

func TestWebhookClient_Send(t *testing.T) {
	var got Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "gateway-token" {
			t.Errorf("Authorization = %q, want gateway-token", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL, "gateway-token")
	msg := Message{EventID: "ev-1", UserID: "user-1", Subject: "hi", Body: "there"}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.EventID != "ev-1" || got.Subject != "hi" {
		t.Errorf("gateway received %+v, want the sent message", got)
	}
}

func TestWebhookClient_Send_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL, "")
	err := client.Send(context.Background(), Message{EventID: "ev-1"})
	if err == nil {
		t.Fatal("Send() error = nil, want gateway failure")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestWebhookClient_Send_NoURL(t *testing.T) {
	client := NewWebhookClient("", "")
	if err := client.Send(context.Background(), Message{}); err == nil {
		t.Error("Send() error = nil, want configuration error")
	}
}

type stubSender struct {
	sent []Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func newTestHandler(sender Sender, log repository.Repository) *Handler {
	return NewHandler(sender, log, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func eventJSON(t *testing.T, event *domain.Event) []byte {
	t.Helper()
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func TestHandler_HandleMessage_RecordsDelivered(t *testing.T) {
	sender := &stubSender{}
	log := repository.NewMemoryRepository()
	h := newTestHandler(sender, log)

	event := domain.NewEvent(domain.EventLogin, "user-1").WithSession("sess-1", "fp", "web-browser", "")
	h.HandleMessage(context.Background(), eventJSON(t, event))

	if len(sender.sent) != 1 {
		t.Fatalf("sender called %d times, want 1", len(sender.sent))
	}
	recs, err := log.ListRecentByUser(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("ListRecentByUser() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("delivery log has %d records, want 1", len(recs))
	}
	if recs[0].Outcome != domain.OutcomeDelivered || recs[0].Channel != "webhook" {
		t.Errorf("record = %s/%s, want webhook/delivered", recs[0].Channel, recs[0].Outcome)
	}
}

func TestHandler_HandleMessage_RecordsFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("gateway down")}
	log := repository.NewMemoryRepository()
	h := newTestHandler(sender, log)

	event := domain.NewEvent(domain.EventSecurityAlert, "user-1")
	h.HandleMessage(context.Background(), eventJSON(t, event))

	recs, _ := log.ListRecentByUser(context.Background(), "user-1", 10)
	if len(recs) != 1 {
		t.Fatalf("delivery log has %d records, want 1", len(recs))
	}
	if recs[0].Outcome != domain.OutcomeFailed {
		t.Errorf("Outcome = %q, want %q", recs[0].Outcome, domain.OutcomeFailed)
	}
	if !strings.Contains(recs[0].Detail, "gateway down") {
		t.Errorf("Detail = %q, want the send error", recs[0].Detail)
	}
}

func TestHandler_HandleMessage_LogChannelWithoutSender(t *testing.T) {
	log := repository.NewMemoryRepository()
	h := newTestHandler(nil, log)

	event := domain.NewEvent(domain.EventLogoutAll, "user-1")
	h.HandleMessage(context.Background(), eventJSON(t, event))

	recs, _ := log.ListRecentByUser(context.Background(), "user-1", 10)
	if len(recs) != 1 {
		t.Fatalf("delivery log has %d records, want 1", len(recs))
	}
	if recs[0].Channel != "log" || recs[0].Outcome != domain.OutcomeDelivered {
		t.Errorf("record = %s/%s, want log/delivered", recs[0].Channel, recs[0].Outcome)
	}
}

func TestHandler_HandleMessage_MalformedPayload(t *testing.T) {
	sender := &stubSender{}
	log := repository.NewMemoryRepository()
	h := newTestHandler(sender, log)

	h.HandleMessage(context.Background(), []byte("{not json"))
	h.HandleMessage(context.Background(), eventJSON(t, &domain.Event{ID: "ev-1"}))

	if len(sender.sent) != 0 {
		t.Errorf("sender called %d times for bad payloads, want 0", len(sender.sent))
	}
	recs, _ := log.ListRecentByUser(context.Background(), "", 10)
	if len(recs) != 0 {
		t.Errorf("delivery log has %d records for bad payloads, want 0", len(recs))
	}
}
