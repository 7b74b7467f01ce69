// Package sweeper retires sessions whose devices went quiet and purges
// revoked rows past retention. It is the only writer that expires sessions.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaini88088/expert-pancake/internal/audit"
	notifydomain "github.com/gaini88088/expert-pancake/internal/notify/domain"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

// StaleLister finds expiry candidates and purges old revoked rows.
type StaleLister interface {
	ListStale(ctx context.Context, class domain.DeviceClass, cutoff time.Time) ([]*domain.Session, error)
	ListStaleUnclassified(ctx context.Context, cutoff time.Time) ([]*domain.Session, error)
	PurgeRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionExpirer revokes a stale session after re-checking it under the
// user's lock.
type SessionExpirer interface {
	Expire(ctx context.Context, userID, sessionID string, staleBefore time.Time) (*domain.Session, bool, error)
}

// EventDispatcher hands events to the notification channel without blocking.
type EventDispatcher interface {
	Dispatch(event *notifydomain.Event)
}

// Summary reports one sweep cycle.
type Summary struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
	Purged  int64
}

// Sweeper owns the periodic expiry cycle.
type Sweeper struct {
	store     StaleLister
	sessions  SessionExpirer
	events    EventDispatcher
	audit     audit.AuditLogger
	policy    domain.ExpiryPolicy
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	nowF      func() time.Time

	expired metric.Int64Counter
}

// New returns a Sweeper. interval is how often Run sweeps; retention is how
// long revoked rows stay visible before purging.
func New(store StaleLister, sessions SessionExpirer, events EventDispatcher, auditLog audit.AuditLogger,
	policy domain.ExpiryPolicy, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("github.com/gaini88088/expert-pancake/internal/session/sweeper")
	expired, err := meter.Int64Counter("sessions.expired",
		metric.WithDescription("Sessions revoked by the expiry sweeper"))
	if err != nil {
		otel.Handle(err)
	}
	return &Sweeper{
		store:     store,
		sessions:  sessions,
		events:    events,
		audit:     auditLog,
		policy:    policy,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "sweeper"),
		nowF:      func() time.Time { return time.Now().UTC() },
		expired:   expired,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle: expire stale sessions per device class, then purge
// revoked rows past retention. One session's failure never aborts the cycle;
// cancellation is honored between sessions.
func (s *Sweeper) Sweep(ctx context.Context) Summary {
	started := s.nowF()
	var sum Summary

	classes := []domain.DeviceClass{
		domain.DeviceClassWebBrowser,
		domain.DeviceClassMobileApp,
		domain.DeviceClassDesktopApp,
	}
	for _, class := range classes {
		if ctx.Err() != nil {
			return sum
		}
		cutoff := started.Add(-s.policy.ThresholdFor(class))
		candidates, err := s.store.ListStale(ctx, class, cutoff)
		if err != nil {
			s.logger.Warn("stale listing failed", "device_class", string(class), "error", err)
			continue
		}
		s.expireBatch(ctx, candidates, cutoff, &sum)
	}

	if ctx.Err() == nil {
		cutoff := started.Add(-s.policy.Default)
		candidates, err := s.store.ListStaleUnclassified(ctx, cutoff)
		if err != nil {
			s.logger.Warn("stale listing failed", "device_class", "unclassified", "error", err)
		} else {
			s.expireBatch(ctx, candidates, cutoff, &sum)
		}
	}

	if ctx.Err() == nil && s.retention > 0 {
		purged, err := s.store.PurgeRevokedBefore(ctx, started.Add(-s.retention))
		if err != nil {
			s.logger.Warn("purge failed", "error", err)
		} else {
			sum.Purged = purged
		}
	}

	s.logger.Info("sweep finished",
		"scanned", sum.Scanned, "expired", sum.Expired, "skipped", sum.Skipped,
		"failed", sum.Failed, "purged", sum.Purged,
		"elapsed", s.nowF().Sub(started))
	return sum
}

func (s *Sweeper) expireBatch(ctx context.Context, candidates []*domain.Session, cutoff time.Time, sum *Summary) {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return
		}
		sum.Scanned++
		sess, expired, err := s.sessions.Expire(ctx, candidate.UserID, candidate.ID, cutoff)
		if err != nil {
			sum.Failed++
			s.logger.Warn("expiry failed", "session_id", candidate.ID, "error", err)
			continue
		}
		if !expired {
			// Activity or a logout won the race; nothing to announce.
			sum.Skipped++
			continue
		}
		sum.Expired++
		s.expired.Add(ctx, 1, metric.WithAttributes(
			attribute.String("device_class", string(sess.DeviceClass))))
		s.events.Dispatch(notifydomain.NewEvent(notifydomain.EventSessionExpired, sess.UserID).
			WithSession(sess.ID, sess.DeviceFingerprint, string(sess.DeviceClass), sess.IPAddress))
		s.audit.LogEvent(ctx, sess.UserID, sess.ID, audit.ActionSessionExpired, audit.OutcomeSuccess,
			string(sess.DeviceClass))
	}
}
