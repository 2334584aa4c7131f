// Package sweep implements one pass of the reminder scan-and-deliver job:
// select due unsent reminders, resolve their owners to email addresses in a
// single batch lookup, send each one independently, and stamp successes.
//
// The job is designed to be re-run safely. Nothing is retried in-process;
// a reminder that could not be sent stays pending and the next scheduled
// invocation picks it up again. Delivery is at-least-once: two overlapping
// invocations can both select a reminder before either stamps it, and a
// lost stamp after a successful send means a duplicate on the next pass.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/metrics"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/models"
)

// ReminderStore is the slice of the reminder table the sweep consumes.
type ReminderStore interface {
	DueUnsent(ctx context.Context, from, to time.Time, limit int) ([]models.Reminder, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// ProfileStore resolves owner ids to delivery targets.
type ProfileStore interface {
	EmailsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Recipient, error)
}

// Mailer submits one transactional email and reports success or failure.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string, isBodyHTML bool) error
}

// Summary is the observable output of one pass, returned to the trigger.
type Summary struct {
	Candidates     int       `json:"candidates"`
	SendsAttempted int       `json:"sends_attempted"`
	Sent           int       `json:"sent"`
	Failed         int       `json:"failed"`
	SkippedNoEmail int       `json:"skipped_no_email"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
}

// Options configures a Sweeper.
type Options struct {
	Lookback   time.Duration
	Lookahead  time.Duration
	BatchLimit int

	// Limiter paces outbound submissions within one pass. Nil disables pacing.
	Limiter *rate.Limiter

	// Now overrides the wall clock. Nil means time.Now.
	Now func() time.Time
}

// Sweeper runs reminder sweep passes against injected collaborators.
type Sweeper struct {
	reminders ReminderStore
	profiles  ProfileStore
	mailer    Mailer
	metrics   *metrics.Metrics
	log       *slog.Logger
	opts      Options
}

func New(reminders ReminderStore, profiles ProfileStore, mailer Mailer, m *metrics.Metrics, log *slog.Logger, opts Options) *Sweeper {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		reminders: reminders,
		profiles:  profiles,
		mailer:    mailer,
		metrics:   m,
		log:       log,
		opts:      opts,
	}
}

// Run performs one pass. The returned error is non-nil only when the
// selection query itself fails; every per-reminder problem is absorbed
// into the summary and the reminder stays pending for the next pass.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	start := s.opts.Now()
	w := NewWindow(start, s.opts.Lookback, s.opts.Lookahead)
	sum := Summary{StartedAt: start}

	s.metrics.SweepRuns.Add(1)

	reminders, err := s.reminders.DueUnsent(ctx, w.From, w.To, s.opts.BatchLimit)
	if err != nil {
		s.metrics.StoreErrors.Add(1)
		s.metrics.SweepFailures.Add(1)
		return sum, fmt.Errorf("sweep selection: %w", err)
	}
	sum.Candidates = len(reminders)
	s.metrics.Candidates.Add(int64(len(reminders)))

	if len(reminders) == 0 {
		sum.DurationMs = time.Since(start).Milliseconds()
		return sum, nil
	}

	recipients, err := s.profiles.EmailsByUserIDs(ctx, distinctOwners(reminders))
	if err != nil {
		// Not fatal: the whole batch stays pending and the next
		// invocation retries it.
		s.metrics.StoreErrors.Add(1)
		s.log.Error("recipient lookup failed, leaving batch pending", "candidates", len(reminders), "error", err)
		sum.Failed = len(reminders)
		sum.DurationMs = time.Since(start).Milliseconds()
		return sum, nil
	}

	for _, r := range reminders {
		s.deliver(ctx, r, recipients[r.UserID], &sum)
	}

	sum.DurationMs = time.Since(start).Milliseconds()
	s.metrics.TotalSweepTimeMs.Add(sum.DurationMs)
	s.log.Info("sweep complete",
		"candidates", sum.Candidates,
		"attempted", sum.SendsAttempted,
		"sent", sum.Sent,
		"failed", sum.Failed,
		"skipped_no_email", sum.SkippedNoEmail,
		"duration_ms", sum.DurationMs,
	)
	return sum, nil
}

// deliver handles one reminder. Its failures never propagate; they are
// logged and counted so the rest of the batch keeps going.
func (s *Sweeper) deliver(ctx context.Context, r models.Reminder, rec models.Recipient, sum *Summary) {
	if rec.Email == "" {
		// Policy: owners with no resolvable address are stamped
		// sent-without-send, otherwise the row would sit in the
		// window-adjacent backlog and be reconsidered forever.
		if _, err := s.reminders.MarkSent(ctx, r.ID, s.opts.Now()); err != nil {
			s.log.Error("failed to stamp no-email reminder", "reminder_id", r.ID, "error", err)
		}
		s.metrics.SkippedNoEmail.Add(1)
		sum.SkippedNoEmail++
		return
	}

	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			s.log.Warn("rate limiter interrupted, reminder stays pending", "reminder_id", r.ID, "error", err)
			sum.Failed++
			return
		}
	}

	subject, body := RenderEmail(rec.Language, r.Title, r.RemindAt)

	sum.SendsAttempted++
	s.metrics.SendsAttempted.Add(1)

	if err := s.mailer.Send(ctx, rec.Email, subject, body, true); err != nil {
		s.metrics.SendErrors.Add(1)
		s.log.Warn("send failed, reminder stays pending", "reminder_id", r.ID, "error", err)
		sum.Failed++
		return
	}

	sum.Sent++
	s.metrics.EmailsSent.Add(1)

	// Stamp only after the send was accepted. A failed stamp is absorbed:
	// the reminder will be re-sent next pass, duplicate over silent loss.
	stamped, err := s.reminders.MarkSent(ctx, r.ID, s.opts.Now())
	if err != nil {
		s.log.Error("mark-as-sent failed, reminder may be re-sent", "reminder_id", r.ID, "error", err)
		return
	}
	if !stamped {
		s.log.Info("reminder already stamped by a concurrent pass", "reminder_id", r.ID)
	}
}

func distinctOwners(reminders []models.Reminder) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(reminders))
	ids := make([]uuid.UUID, 0, len(reminders))
	for _, r := range reminders {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}
	return ids
}
