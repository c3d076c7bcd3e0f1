package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
	"github.com/jakechorley/volunteer-ledger/pkg/sqlite"
)

const testActor = "admin-1"

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	database, err := sqlite.NewDB("")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations(context.Background()))
	return database
}

func addVolunteer(t *testing.T, database db.Database, firstName string) db.Volunteer {
	t.Helper()
	at := time.Now().UTC()
	v := db.Volunteer{
		ID:             uuid.New().String(),
		RegistrationID: "REG-" + uuid.New().String()[:8],
		FirstName:      firstName,
		LastName:       "Tester",
		Email:          firstName + "@example.org",
		Status:         model.VolunteerActive,
		ApprovalStatus: model.ApprovalApproved,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	require.NoError(t, database.InsertVolunteer(context.Background(), &v))
	return v
}

func addEvent(t *testing.T, database db.Database, name string) db.Event {
	t.Helper()
	at := time.Now().UTC()
	e := db.Event{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    model.EventPlanned,
		StartDate: at,
		EndDate:   at.Add(3 * time.Hour),
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, database.InsertEvent(context.Background(), &e))
	return e
}

// assign links a volunteer to an event and sets attendance
func assign(t *testing.T, database db.Database, event db.Event, volunteer db.Volunteer, attendance model.Attendance) db.Assignment {
	t.Helper()
	ctx := context.Background()
	a, err := AssignVolunteer(ctx, database, NoopAuditor{}, zap.NewNop(), testActor, event.ID, volunteer.ID, "", "")
	require.NoError(t, err)
	if attendance != model.AttendancePending {
		a, err = UpdateAttendance(ctx, database, NoopAuditor{}, zap.NewNop(), testActor, event.ID, a.ID, attendance, "")
		require.NoError(t, err)
	}
	return *a
}

func requireLedger(t *testing.T, database db.Database, volunteerID string) *db.PointsLedger {
	t.Helper()
	l, err := database.GetLedger(context.Background(), volunteerID)
	require.NoError(t, err)
	assert.Equal(t, l.Points, l.VerifiedPoints+l.PendingPoints, "points must equal verified + pending")
	assert.GreaterOrEqual(t, l.VerifiedPoints, 0)
	assert.GreaterOrEqual(t, l.PendingPoints, 0)
	return l
}

func requireNoLedger(t *testing.T, database db.Database, volunteerID string) {
	t.Helper()
	_, err := database.GetLedger(context.Background(), volunteerID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

// recordingAuditor keeps every entry in memory
type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAuditor) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAuditor) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, len(r.entries))
	for i, e := range r.entries {
		actions[i] = e.Action
	}
	return actions
}

// failingCredits fails every credit for one volunteer, inside and outside transactions
type failingCredits struct {
	db.Database
	failFor string
}

func (f *failingCredits) WithTx(ctx context.Context, fn func(tx db.Database) error) error {
	return f.Database.WithTx(ctx, func(tx db.Database) error {
		return fn(&failingCredits{Database: tx, failFor: f.failFor})
	})
}

func (f *failingCredits) CreditPoints(ctx context.Context, credit *db.PointsCredit) (*db.PointsLedger, error) {
	if credit.VolunteerID == f.failFor {
		return nil, errors.New("disk full")
	}
	return f.Database.CreditPoints(ctx, credit)
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	at, err := time.Parse(dateLayout, value)
	require.NoError(t, err)
	return at
}
