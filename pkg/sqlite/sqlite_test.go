package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB("")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations(context.Background()))
	return database
}

func insertVolunteer(t *testing.T, database *DB, firstName string) db.Volunteer {
	t.Helper()
	now := time.Now().UTC()
	v := db.Volunteer{
		ID:             uuid.New().String(),
		RegistrationID: "REG-" + firstName,
		FirstName:      firstName,
		Status:         model.VolunteerActive,
		ApprovalStatus: model.ApprovalApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, database.InsertVolunteer(context.Background(), &v))
	return v
}

func insertEvent(t *testing.T, database *DB, name string) db.Event {
	t.Helper()
	now := time.Now().UTC()
	e := db.Event{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    model.EventPlanned,
		StartDate: now,
		EndDate:   now.Add(2 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, database.InsertEvent(context.Background(), &e))
	return e
}

func newCredit(volunteerID string, amount int, key string) *db.PointsCredit {
	return &db.PointsCredit{
		ID:             uuid.New().String(),
		VolunteerID:    volunteerID,
		Amount:         amount,
		Source:         model.CreditManual,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
}

func assertLedgerInvariant(t *testing.T, l *db.PointsLedger) {
	t.Helper()
	assert.Equal(t, l.Points, l.VerifiedPoints+l.PendingPoints, "points must equal verified + pending")
	assert.GreaterOrEqual(t, l.VerifiedPoints, 0)
	assert.GreaterOrEqual(t, l.PendingPoints, 0)
}

func TestCreditPoints_CreatesLedgerAndAppendsNotes(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := insertVolunteer(t, database, "Alice")

	credit := newCredit(v.ID, 10, "k1")
	credit.Note = "first"
	ledger, err := database.CreditPoints(ctx, credit)
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.Points)
	assert.Equal(t, 10, ledger.PendingPoints)
	assert.Equal(t, 0, ledger.VerifiedPoints)
	assert.Equal(t, "first", ledger.Notes)

	credit = newCredit(v.ID, 5, "k2")
	credit.Note = "second"
	ledger, err = database.CreditPoints(ctx, credit)
	require.NoError(t, err)
	assert.Equal(t, 15, ledger.Points)
	assert.Equal(t, "first\nsecond", ledger.Notes)
	assertLedgerInvariant(t, ledger)

	ledger, err = database.CreditPoints(ctx, newCredit(v.ID, 1, "k3"))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", ledger.Notes, "empty note leaves the log untouched")
}

func TestCreditPoints_DuplicateKeyLeavesBalanceUnchanged(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := insertVolunteer(t, database, "Bob")

	_, err := database.CreditPoints(ctx, newCredit(v.ID, 10, "event:e1:"+v.ID))
	require.NoError(t, err)

	_, err = database.CreditPoints(ctx, newCredit(v.ID, 10, "event:e1:"+v.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrDuplicateCredit))

	ledger, err := database.GetLedger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.Points)

	credits, err := database.ListCredits(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, credits, 1)
}

func TestCreditPoints_ConcurrentCreditsNeverLoseUpdates(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := insertVolunteer(t, database, "Carol")

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := database.CreditPoints(ctx, newCredit(v.ID, 3, fmt.Sprintf("k-%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ledger, err := database.GetLedger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, workers*3, ledger.Points)
	assert.Equal(t, workers*3, ledger.PendingPoints)
	assertLedgerInvariant(t, ledger)
}

func TestVerifyPoints(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := insertVolunteer(t, database, "Dan")
	_, err := database.CreditPoints(ctx, newCredit(v.ID, 15, "k1"))
	require.NoError(t, err)

	at := time.Now().UTC()
	ledger, err := database.VerifyPoints(ctx, v.ID, 10, at)
	require.NoError(t, err)
	assert.Equal(t, 15, ledger.Points)
	assert.Equal(t, 10, ledger.VerifiedPoints)
	assert.Equal(t, 5, ledger.PendingPoints)
	require.NotNil(t, ledger.LastVerifiedAt)
	assertLedgerInvariant(t, ledger)

	_, err = database.VerifyPoints(ctx, v.ID, 6, at)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidAmount))

	ledger, err = database.GetLedger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, ledger.PendingPoints, "failed verification changes nothing")

	_, err = database.VerifyPoints(ctx, "missing", 1, at)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestInsertAssignment_DuplicatePairConflicts(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := insertVolunteer(t, database, "Eve")
	e := insertEvent(t, database, "Food bank")

	now := time.Now().UTC()
	a := db.Assignment{ID: uuid.New().String(), VolunteerID: v.ID, EventID: e.ID, Role: "volunteer", Attendance: model.AttendancePending, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, database.InsertAssignment(ctx, &a))

	dup := a
	dup.ID = uuid.New().String()
	err := database.InsertAssignment(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))

	assignments, err := database.ListAssignmentsByEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
}

func TestMarkEventCompleted_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	e := insertEvent(t, database, "Cleanup")

	completed, err := database.MarkEventCompleted(ctx, e.ID, "admin-1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, model.EventCompleted, completed.Status)
	assert.Equal(t, "admin-1", completed.CompletedBy)

	_, err = database.MarkEventCompleted(ctx, e.ID, "admin-2", time.Now().UTC())
	assert.True(t, errors.Is(err, model.ErrConflict))

	_, err = database.MarkEventCompleted(ctx, "missing", "admin-1", time.Now().UTC())
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSoftDeleteEvent_HidesEvent(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	e := insertEvent(t, database, "Gala")

	require.NoError(t, database.SoftDeleteEvent(ctx, e.ID, time.Now().UTC()))

	_, err := database.GetEvent(ctx, e.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	events, total, err := database.ListEvents(ctx, db.EventFilter{}, db.NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 0, total)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := insertVolunteer(t, database, "Finn")
	e := insertEvent(t, database, "Marathon")

	boom := errors.New("boom")
	err := database.WithTx(ctx, func(tx db.Database) error {
		if _, err := tx.MarkEventCompleted(ctx, e.ID, "admin", time.Now().UTC()); err != nil {
			return err
		}
		if _, err := tx.CreditPoints(ctx, newCredit(v.ID, 10, "k1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	event, err := database.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventPlanned, event.Status)

	_, err = database.GetLedger(ctx, v.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestTransitionSubmission_GuardsStatus(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := insertVolunteer(t, database, "Gus")
	e := insertEvent(t, database, "Workshop")

	now := time.Now().UTC()
	s := db.WorkSubmission{ID: uuid.New().String(), VolunteerID: v.ID, EventID: e.ID, WorkTitle: "Posters", Status: model.SubmissionSubmitted, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, database.InsertSubmission(ctx, &s))

	reviewable := []model.SubmissionStatus{model.SubmissionSubmitted, model.SubmissionUnderReview}
	review := db.SubmissionReview{Status: model.SubmissionApproved, PointsAwarded: 20, ReviewedBy: "admin", ReviewedAt: now}

	updated, err := database.TransitionSubmission(ctx, s.ID, reviewable, review)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionApproved, updated.Status)
	assert.Equal(t, 20, updated.PointsAwarded)

	_, err = database.TransitionSubmission(ctx, s.ID, reviewable, review)
	assert.True(t, errors.Is(err, model.ErrInvalidState))
}
