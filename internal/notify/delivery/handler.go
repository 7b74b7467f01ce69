package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
	"github.com/gaini88088/expert-pancake/internal/notify/loki"
	"github.com/gaini88088/expert-pancake/internal/notify/repository"
)

// Sender pushes a rendered message to the user-facing channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Handler processes one consumed event: render, send, record the outcome.
// Each message is rendered and sent at most once; a failed send is recorded
// and the worker moves on to the next message.
type Handler struct {
	sender Sender
	log    repository.Repository
	loki   *loki.Client
	logger *slog.Logger
	nowF   func() time.Time
}

// NewHandler returns a handler. sender may be nil, in which case deliveries
// go to the structured log only. log may be nil to skip outcome recording,
// and an empty lokiURL disables the Loki mirror.
func NewHandler(sender Sender, log repository.Repository, lokiURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		sender: sender,
		log:    log,
		logger: logger.With("component", "delivery"),
		nowF:   func() time.Time { return time.Now().UTC() },
	}
	if lokiURL != "" {
		h.loki = loki.New(lokiURL)
	}
	return h
}

// HandleMessage consumes one raw event payload. Malformed payloads and
// failed deliveries are logged, never returned, so the consume loop keeps
// draining the topic.
func (h *Handler) HandleMessage(ctx context.Context, raw []byte) {
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		h.logger.Warn("dropping malformed event payload", "error", err)
		return
	}
	if event.UserID == "" {
		h.logger.Warn("dropping event without user", "event_id", event.ID)
		return
	}

	msg := Render(&event)

	channel := "log"
	outcome := domain.OutcomeDelivered
	detail := ""
	if h.sender != nil {
		channel = "webhook"
		if err := h.sender.Send(ctx, msg); err != nil {
			outcome = domain.OutcomeFailed
			detail = err.Error()
			h.logger.Warn("webhook delivery failed",
				"event_id", event.ID, "event_type", string(event.Type), "error", err)
		}
	} else {
		h.logger.Info("delivered to log",
			"event_id", event.ID, "event_type", string(event.Type),
			"user_id", event.UserID, "subject", msg.Subject)
	}

	if h.log != nil {
		rec := &domain.DeliveryRecord{
			EventID:   event.ID,
			UserID:    event.UserID,
			EventType: string(event.Type),
			Channel:   channel,
			Outcome:   outcome,
			Detail:    detail,
			CreatedAt: h.nowF(),
		}
		if err := h.log.Save(ctx, rec); err != nil {
			h.logger.Warn("delivery log write failed", "event_id", event.ID, "error", err)
		}
	}

	if h.loki != nil {
		if err := h.loki.PushEventJSON(ctx, raw); err != nil {
			h.logger.Warn("loki push failed", "event_id", event.ID, "error", err)
		}
	}
}
