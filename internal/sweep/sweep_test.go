package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/metrics"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/models"
)

type fakeReminders struct {
	rows      []models.Reminder
	selectErr error
	markErr   error
	marked    map[uuid.UUID]time.Time
}

func newFakeReminders(rows ...models.Reminder) *fakeReminders {
	return &fakeReminders{rows: rows, marked: map[uuid.UUID]time.Time{}}
}

func (f *fakeReminders) DueUnsent(_ context.Context, from, to time.Time, limit int) ([]models.Reminder, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []models.Reminder
	for _, r := range f.rows {
		if !r.Pending() {
			continue
		}
		if _, ok := f.marked[r.ID]; ok {
			continue
		}
		if r.RemindAt.Before(from) || r.RemindAt.After(to) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReminders) MarkSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	if _, ok := f.marked[id]; ok {
		return false, nil
	}
	f.marked[id] = at
	return true, nil
}

type fakeProfiles struct {
	recipients map[uuid.UUID]models.Recipient
	err        error
	gotIDs     []uuid.UUID
}

func (f *fakeProfiles) EmailsByUserIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Recipient, error) {
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	out := map[uuid.UUID]models.Recipient{}
	for _, id := range ids {
		if rec, ok := f.recipients[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

type sentMail struct {
	to      string
	subject string
	body    string
	html    bool
}

type fakeMailer struct {
	sent    []sentMail
	failFor map[string]error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string, isBodyHTML bool) error {
	if err := f.failFor[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body, html: isBodyHTML})
	return nil
}

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestSweeper(reminders *fakeReminders, profiles *fakeProfiles, mailer *fakeMailer) *Sweeper {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(reminders, profiles, mailer, metrics.New(), log, Options{
		Lookback:   5 * time.Minute,
		Lookahead:  2 * time.Minute,
		BatchLimit: 50,
		Now:        func() time.Time { return testNow },
	})
}

func dueReminder(userID uuid.UUID, title string) models.Reminder {
	return models.Reminder{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    title,
		RemindAt: testNow.Add(-time.Minute),
	}
}

func TestSweepSendsDueReminderLocalized(t *testing.T) {
	owner := uuid.New()
	r := dueReminder(owner, "buy flowers")
	reminders := newFakeReminders(r)
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "a@example.com", Language: "fr"},
	}}
	mailer := &fakeMailer{}

	sum, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Candidates)
	assert.Equal(t, 1, sum.SendsAttempted)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 0, sum.SkippedNoEmail)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@example.com", mailer.sent[0].to)
	assert.Equal(t, "Rappel : buy flowers", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "C'est l'heure !")
	assert.True(t, mailer.sent[0].html)

	sentAt, ok := reminders.marked[r.ID]
	require.True(t, ok, "reminder must be stamped after a successful send")
	assert.False(t, sentAt.Before(sum.StartedAt))
}

func TestSweepWindowBoundaries(t *testing.T) {
	owner := uuid.New()
	atEdge := dueReminder(owner, "at lookback edge")
	atEdge.RemindAt = testNow.Add(-5 * time.Minute)
	justOutside := dueReminder(owner, "one ms too old")
	justOutside.RemindAt = testNow.Add(-5*time.Minute - time.Millisecond)
	ahead := dueReminder(owner, "at lookahead edge")
	ahead.RemindAt = testNow.Add(2 * time.Minute)
	tooFarAhead := dueReminder(owner, "beyond lookahead")
	tooFarAhead.RemindAt = testNow.Add(2*time.Minute + time.Millisecond)

	reminders := newFakeReminders(atEdge, justOutside, ahead, tooFarAhead)
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "edge@example.com", Language: "en"},
	}}
	mailer := &fakeMailer{}

	sum, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Candidates)
	assert.Equal(t, 2, sum.Sent)
	assert.Contains(t, reminders.marked, atEdge.ID)
	assert.Contains(t, reminders.marked, ahead.ID)
	assert.NotContains(t, reminders.marked, justOutside.ID)
	assert.NotContains(t, reminders.marked, tooFarAhead.ID)
}

func TestSweepNoEmailPolicy(t *testing.T) {
	// An owner with no resolvable address: the reminder is stamped
	// without a send so it never comes back, and the outcome is the
	// same every time the same input runs.
	for i := 0; i < 2; i++ {
		owner := uuid.New()
		r := dueReminder(owner, "orphaned")
		reminders := newFakeReminders(r)
		profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{}}
		mailer := &fakeMailer{}

		sum, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, sum.Candidates, "run %d", i)
		assert.Equal(t, 1, sum.SkippedNoEmail, "run %d", i)
		assert.Equal(t, 0, sum.SendsAttempted, "run %d", i)
		assert.Empty(t, mailer.sent, "run %d", i)
		assert.Contains(t, reminders.marked, r.ID, "run %d", i)
	}
}

func TestSweepSendFailureLeavesPending(t *testing.T) {
	owner := uuid.New()
	r := dueReminder(owner, "flaky")
	reminders := newFakeReminders(r)
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "down@example.com", Language: "en"},
	}}
	mailer := &fakeMailer{failFor: map[string]error{"down@example.com": errors.New("smtp 451")}}
	s := newTestSweeper(reminders, profiles, mailer)

	sum, err := s.Run(context.Background())
	require.NoError(t, err, "a per-reminder failure must not fail the invocation")
	assert.Equal(t, 1, sum.SendsAttempted)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 0, sum.Sent)
	assert.NotContains(t, reminders.marked, r.ID, "failed send must not be stamped")

	// Next invocation retries it once the mailer recovers.
	mailer.failFor = nil
	sum, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Contains(t, reminders.marked, r.ID)
}

func TestSweepSelectionErrorIsFatal(t *testing.T) {
	reminders := newFakeReminders()
	reminders.selectErr = errors.New("store unreachable")
	profiles := &fakeProfiles{}
	mailer := &fakeMailer{}

	_, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "store unreachable")
	assert.Empty(t, mailer.sent)
}

func TestSweepRecipientLookupErrorLeavesBatchPending(t *testing.T) {
	owner := uuid.New()
	r := dueReminder(owner, "stuck")
	reminders := newFakeReminders(r)
	profiles := &fakeProfiles{err: errors.New("profiles unreachable")}
	mailer := &fakeMailer{}

	sum, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.NoError(t, err, "only the selection query is fatal")
	assert.Equal(t, 1, sum.Candidates)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 0, sum.SendsAttempted)
	assert.Empty(t, reminders.marked)
}

func TestSweepIdempotentSecondPass(t *testing.T) {
	owner := uuid.New()
	reminders := newFakeReminders(dueReminder(owner, "once"), dueReminder(owner, "twice"))
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "b@example.com", Language: "en"},
	}}
	mailer := &fakeMailer{}
	s := newTestSweeper(reminders, profiles, mailer)

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Sent)

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Candidates)
	assert.Equal(t, 0, second.Sent)
	assert.Len(t, mailer.sent, 2, "no new sends on an unchanged store")
}

func TestSweepBatchCap(t *testing.T) {
	owner := uuid.New()
	var rows []models.Reminder
	for i := 0; i < 120; i++ {
		rows = append(rows, dueReminder(owner, fmt.Sprintf("bulk-%d", i)))
	}
	reminders := newFakeReminders(rows...)
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "bulk@example.com", Language: "en"},
	}}
	mailer := &fakeMailer{}
	s := newTestSweeper(reminders, profiles, mailer)

	sum, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, sum.Candidates)
	assert.Equal(t, 50, sum.Sent)
	assert.Len(t, reminders.marked, 50, "the rest stays pending for later passes")

	// Subsequent invocations drain the backlog.
	for _, want := range []int{50, 20, 0} {
		sum, err = s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, sum.Sent)
	}
	assert.Len(t, reminders.marked, 120)
}

func TestSweepBatchesOwnerLookup(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	reminders := newFakeReminders(
		dueReminder(owner, "a"),
		dueReminder(owner, "b"),
		dueReminder(other, "c"),
	)
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "o@example.com"},
		other: {Email: "p@example.com"},
	}}
	mailer := &fakeMailer{}

	_, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, profiles.gotIDs, 2, "one lookup over distinct owners")
}

func TestSweepMarkFailureIsAcceptedDuplicateRisk(t *testing.T) {
	owner := uuid.New()
	r := dueReminder(owner, "double")
	reminders := newFakeReminders(r)
	reminders.markErr = errors.New("write timeout")
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "dup@example.com", Language: "en"},
	}}
	mailer := &fakeMailer{}

	sum, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.NoError(t, err, "a lost stamp is not an invocation failure")
	assert.Equal(t, 1, sum.Sent)
	require.Len(t, mailer.sent, 1)

	// The reminder was never stamped, so the next pass sends it again.
	reminders.markErr = nil
	sum, err = newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Len(t, mailer.sent, 2)
}

func TestSweepFallbackLanguage(t *testing.T) {
	owner := uuid.New()
	reminders := newFakeReminders(dueReminder(owner, "call mom"))
	profiles := &fakeProfiles{recipients: map[uuid.UUID]models.Recipient{
		owner: {Email: "c@example.com", Language: "de"},
	}}
	mailer := &fakeMailer{}

	_, err := newTestSweeper(reminders, profiles, mailer).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.True(t, strings.HasPrefix(mailer.sent[0].subject, "Reminder:"),
		"unsupported language falls back to English, got %q", mailer.sent[0].subject)
}
