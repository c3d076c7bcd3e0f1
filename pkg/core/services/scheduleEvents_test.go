package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
)

func TestScheduleEvents(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	auditor := &recordingAuditor{}

	schedule := config.EventSchedule{
		Name:            "Sunday food bank",
		RRule:           "FREQ=WEEKLY;BYDAY=SU",
		Location:        "Community hall",
		DurationMinutes: 180,
	}
	from := mustDate(t, "2026-10-19")

	result, err := ScheduleEvents(ctx, database, auditor, zap.NewNop(), testActor, schedule, from, 3)
	require.NoError(t, err)
	require.Len(t, result.Created, 3)
	assert.Empty(t, result.Skipped)

	wantNames := []string{"Sunday food bank 2026-10-25", "Sunday food bank 2026-11-01", "Sunday food bank 2026-11-08"}
	for i, event := range result.Created {
		assert.Equal(t, wantNames[i], event.Name)
		assert.Equal(t, "Community hall", event.Location)
		assert.Equal(t, model.EventPlanned, event.Status)
		assert.Equal(t, 3*time.Hour, event.EndDate.Sub(event.StartDate))
		assert.Equal(t, time.Sunday, event.StartDate.Weekday())
	}

	again, err := ScheduleEvents(ctx, database, auditor, zap.NewNop(), testActor, schedule, from, 3)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 3)

	assert.Len(t, auditor.actions(), 3)
}

func TestScheduleEvents_Errors(t *testing.T) {
	database := newTestDB(t)
	from := mustDate(t, "2026-10-19")

	_, err := ScheduleEvents(context.Background(), database, NoopAuditor{}, zap.NewNop(), testActor,
		config.EventSchedule{Name: "x", RRule: "FREQ=WEEKLY", DurationMinutes: 60}, from, 0)
	assert.Error(t, err)

	_, err = ScheduleEvents(context.Background(), database, NoopAuditor{}, zap.NewNop(), testActor,
		config.EventSchedule{Name: "x", RRule: "FREQ=SOMETIMES", DurationMinutes: 60}, from, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse rrule")
}

func TestScheduleEvents_StopsWhenRuleEnds(t *testing.T) {
	database := newTestDB(t)
	from := mustDate(t, "2026-10-19")

	result, err := ScheduleEvents(context.Background(), database, NoopAuditor{}, zap.NewNop(), testActor,
		config.EventSchedule{Name: "Daily", RRule: "FREQ=DAILY;COUNT=2", DurationMinutes: 60}, from, 5)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
}
