package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

func TestCreditPoints(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	auditor := &recordingAuditor{}
	v := addVolunteer(t, database, "Nia")

	ledger, err := CreditPoints(ctx, database, auditor, zap.NewNop(), testActor, v.ID, 7, "stayed late")
	require.NoError(t, err)
	assert.Equal(t, 7, ledger.Points)
	assert.Equal(t, 7, ledger.PendingPoints)
	assert.Contains(t, ledger.Notes, "Manual credit: 7 points (stayed late)")

	ledger, err = CreditPoints(ctx, database, auditor, zap.NewNop(), testActor, v.ID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.Points)

	credits, err := ListCredits(ctx, database, zap.NewNop(), v.ID)
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.NotEqual(t, credits[0].IdempotencyKey, credits[1].IdempotencyKey)
	for _, c := range credits {
		assert.Equal(t, model.CreditManual, c.Source)
		assert.Equal(t, testActor, c.ActorID)
	}

	assert.Equal(t, []string{"credit_points", "credit_points"}, auditor.actions())
}

func TestCreditPoints_Rejects(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := addVolunteer(t, database, "Omar")

	tests := []struct {
		name        string
		volunteerID string
		amount      int
		wantErr     error
	}{
		{name: "zero amount", volunteerID: v.ID, amount: 0, wantErr: model.ErrInvalidAmount},
		{name: "negative amount", volunteerID: v.ID, amount: -4, wantErr: model.ErrInvalidAmount},
		{name: "beyond ledger range", volunteerID: v.ID, amount: model.MaxPoints + 1, wantErr: model.ErrInvalidAmount},
		{name: "unknown volunteer", volunteerID: "missing", amount: 5, wantErr: model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreditPoints(ctx, database, NoopAuditor{}, zap.NewNop(), testActor, tt.volunteerID, tt.amount, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	requireNoLedger(t, database, v.ID)
}

func TestVerifyPoints(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	auditor := &recordingAuditor{}
	v := addVolunteer(t, database, "Pia")

	_, err := CreditPoints(ctx, database, NoopAuditor{}, zap.NewNop(), testActor, v.ID, 20, "")
	require.NoError(t, err)

	ledger, err := VerifyPoints(ctx, database, auditor, zap.NewNop(), testActor, v.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, 20, ledger.Points)
	assert.Equal(t, 15, ledger.VerifiedPoints)
	assert.Equal(t, 5, ledger.PendingPoints)
	require.NotNil(t, ledger.LastVerifiedAt)

	ledger, err = VerifyPoints(ctx, database, auditor, zap.NewNop(), testActor, v.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, ledger.VerifiedPoints)
	assert.Equal(t, 0, ledger.PendingPoints)

	require.Len(t, auditor.entries, 2)
	assert.Equal(t, map[string]any{"verifiedPoints": 15, "pendingPoints": 5}, auditor.entries[1].OldData)
	assert.Equal(t, map[string]any{"verifiedPoints": 20, "pendingPoints": 0}, auditor.entries[1].NewData)

	requireLedger(t, database, v.ID)
}

func TestVerifyPoints_Rejects(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := addVolunteer(t, database, "Quinn")
	noLedger := addVolunteer(t, database, "Rae")

	_, err := CreditPoints(ctx, database, NoopAuditor{}, zap.NewNop(), testActor, v.ID, 10, "")
	require.NoError(t, err)

	tests := []struct {
		name        string
		volunteerID string
		amount      int
		wantErr     error
	}{
		{name: "more than pending", volunteerID: v.ID, amount: 11, wantErr: model.ErrInvalidAmount},
		{name: "zero", volunteerID: v.ID, amount: 0, wantErr: model.ErrInvalidAmount},
		{name: "negative", volunteerID: v.ID, amount: -1, wantErr: model.ErrInvalidAmount},
		{name: "no ledger", volunteerID: noLedger.ID, amount: 1, wantErr: model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyPoints(ctx, database, NoopAuditor{}, zap.NewNop(), testActor, tt.volunteerID, tt.amount)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	ledger := requireLedger(t, database, v.ID)
	assert.Equal(t, 0, ledger.VerifiedPoints, "rejected verifications change nothing")
	assert.Equal(t, 10, ledger.PendingPoints)
}

func TestListCredits_EmptyForVolunteerWithoutCredits(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	v := addVolunteer(t, database, "Sam")

	credits, err := ListCredits(ctx, database, zap.NewNop(), v.ID)
	require.NoError(t, err)
	assert.NotNil(t, credits)
	assert.Empty(t, credits)

	_, err = ListCredits(ctx, database, zap.NewNop(), "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestListLedgerStandings(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	for i, points := range []int{5, 30, 12} {
		v := addVolunteer(t, database, fmt.Sprintf("Vol%d", i))
		_, err := CreditPoints(ctx, database, NoopAuditor{}, zap.NewNop(), testActor, v.ID, points, "")
		require.NoError(t, err)
	}

	standings, total, err := ListLedgerStandings(ctx, database, zap.NewNop(), db.NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, standings, 2)
	assert.Equal(t, 30, standings[0].Points)
	assert.Equal(t, "Vol1 Tester", standings[0].VolunteerName)
	assert.Equal(t, "Vol1@example.org", standings[0].Email)
	assert.Equal(t, 12, standings[1].Points)

	standings, _, err = ListLedgerStandings(ctx, database, zap.NewNop(), db.NewPage(2, 2))
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, 5, standings[0].Points)
}

func TestLedgerNote(t *testing.T) {
	at := mustDate(t, "2026-10-19")
	assert.Equal(t, `[2026-10-19] Event "Food bank": 10 points (present)`, ledgerNote(at, `Event "Food bank"`, 10, "present"))
	assert.Equal(t, `[2026-10-19] Manual credit: 4 points`, ledgerNote(at, "Manual credit", 4, ""))
}
