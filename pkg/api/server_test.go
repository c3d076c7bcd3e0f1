package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
	"github.com/jakechorley/volunteer-ledger/pkg/sqlite"
)

var testSecret = []byte("test-secret-0123456789")

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Errors     map[string]string `json:"errors"`
	Pagination *Pagination       `json:"pagination"`
}

type testServer struct {
	t        *testing.T
	server   Server
	database db.Database
	registry *prometheus.Registry
	admin    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := sqlite.NewDB("")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations(context.Background()))

	registry := prometheus.NewRegistry()
	srv := NewServer(&Options{
		DisableReqLogs: true,
		JWTSecret:      testSecret,
		Database:       database,
		Auditor:        services.NoopAuditor{},
		Completion:     config.DefaultConfig().Completion,
		Logger:         zap.NewNop(),
		Registry:       registry,
	})

	return &testServer{
		t:        t,
		server:   srv,
		database: database,
		registry: registry,
		admin:    token(t, "admin-1", RoleAdmin),
	}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	signed, err := GenerateToken(testSecret, subject, "Test User", role, time.Hour)
	require.NoError(t, err)
	return signed
}

// do sends a request with an optional JSON body and bearer token
func (s *testServer) do(method, path, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *testServer) registerVolunteer(firstName string) db.Volunteer {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/volunteers", s.admin, map[string]string{
		"registrationId": "REG-" + firstName,
		"firstName":      firstName,
		"email":          firstName + "@example.org",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var v db.Volunteer
	require.NoError(s.t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *testServer) createEvent(name string) db.Event {
	s.t.Helper()
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	rec, env := s.do(http.MethodPost, "/events", s.admin, map[string]any{
		"name":      name,
		"startDate": start,
		"endDate":   start.Add(4 * time.Hour),
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var e db.Event
	require.NoError(s.t, json.Unmarshal(env.Data, &e))
	return e
}

func (s *testServer) assign(eventID, volunteerID, attendance string) db.Assignment {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/events/"+eventID+"/volunteers", s.admin, map[string]string{"volunteerId": volunteerID})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var a db.Assignment
	require.NoError(s.t, json.Unmarshal(env.Data, &a))

	if attendance != "" {
		rec, env = s.do(http.MethodPut, "/events/"+eventID+"/volunteers/"+a.ID, s.admin, map[string]string{"attendance": attendance})
		require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(s.t, json.Unmarshal(env.Data, &a))
	}
	return a
}

func (s *testServer) ledger(volunteerID string) db.PointsLedger {
	s.t.Helper()
	rec, env := s.do(http.MethodGet, "/volunteers/"+volunteerID+"/points", s.admin, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var l db.PointsLedger
	require.NoError(s.t, json.Unmarshal(env.Data, &l))
	return l
}

func TestHealthzAndMetrics_NoToken(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	expired, err := GenerateToken(testSecret, "admin-1", "", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	forged, err := GenerateToken([]byte("another-secret-0123456"), "admin-1", "", RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		bearer   string
		expected int
	}{
		{"no token", http.MethodGet, "", http.StatusUnauthorized},
		{"expired token", http.MethodGet, expired, http.StatusUnauthorized},
		{"wrong signing key", http.MethodGet, forged, http.StatusUnauthorized},
		{"volunteer may read", http.MethodGet, token(t, "vol-1", RoleVolunteer), http.StatusOK},
		{"volunteer may not create", http.MethodPost, token(t, "vol-1", RoleVolunteer), http.StatusForbidden},
		{"staff may create", http.MethodPost, token(t, "staff-1", RoleStaff), http.StatusCreated},
	}

	start := time.Now().UTC()
	body := map[string]any{"name": "Food bank", "startDate": start, "endDate": start.Add(time.Hour)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload any
			if tt.method == http.MethodPost {
				payload = body
			}
			rec, env := s.do(tt.method, "/events", tt.bearer, payload)
			assert.Equal(t, tt.expected, rec.Code, rec.Body.String())
			if tt.expected >= http.StatusBadRequest {
				assert.False(t, env.Success)
				assert.NotEmpty(t, env.Message)
			}
		})
	}
}

func TestCompleteEvent(t *testing.T) {
	s := newTestServer(t)
	event := s.createEvent("Beach cleanup")
	alice := s.registerVolunteer("Alice")
	bob := s.registerVolunteer("Bob")
	carol := s.registerVolunteer("Carol")
	s.assign(event.ID, alice.ID, "present")
	s.assign(event.ID, bob.ID, "absent")
	s.assign(event.ID, carol.ID, "")

	rec, env := s.do(http.MethodPut, "/events/"+event.ID+"/complete", s.admin, map[string]any{
		"volunteerPoints": []map[string]any{{"volunteerId": bob.ID, "points": 4, "notes": "drove the van"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "Event completed successfully. Points assigned to 3 volunteers.", env.Message)

	var result services.CompletionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 19, result.TotalPointsAwarded)
	assert.Equal(t, "completed", string(result.Event.Status))

	assert.Equal(t, 10, s.ledger(alice.ID).PendingPoints)
	assert.Equal(t, 4, s.ledger(bob.ID).PendingPoints)
	assert.Equal(t, 5, s.ledger(carol.ID).PendingPoints)

	rec, env = s.do(http.MethodPut, "/events/"+event.ID+"/complete", s.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, 10, s.ledger(alice.ID).Points)

	count, err := testCounterValue(s.registry, "ledger_events_completed_total")
	require.NoError(t, err)
	assert.Equal(t, float64(1), count)
}

func TestCompleteEvent_Failures(t *testing.T) {
	s := newTestServer(t)
	empty := s.createEvent("Empty event")
	staffed := s.createEvent("Staffed event")
	alice := s.registerVolunteer("Alice")
	s.assign(staffed.ID, alice.ID, "present")

	t.Run("unknown event", func(t *testing.T) {
		rec, _ := s.do(http.MethodPut, "/events/missing/complete", s.admin, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no volunteers assigned", func(t *testing.T) {
		rec, env := s.do(http.MethodPut, "/events/"+empty.ID+"/complete", s.admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, env.Success)
	})

	t.Run("negative override", func(t *testing.T) {
		rec, env := s.do(http.MethodPut, "/events/"+staffed.ID+"/complete", s.admin, map[string]any{
			"volunteerPoints": []map[string]any{{"volunteerId": alice.ID, "points": -3}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Errors, "volunteerPoints[0].points")
	})

	t.Run("negative default", func(t *testing.T) {
		rec, env := s.do(http.MethodPut, "/events/"+staffed.ID+"/complete", s.admin, map[string]any{
			"defaultPointsForPresent": -1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Errors, "defaultPointsForPresent")
	})

	t.Run("override without points", func(t *testing.T) {
		rec, env := s.do(http.MethodPut, "/events/"+staffed.ID+"/complete", s.admin, map[string]any{
			"volunteerPoints": []map[string]any{{"volunteerId": alice.ID, "notes": "forgot points"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, env.Errors, "volunteerPoints[0].points")
	})

	t.Run("volunteer listed twice", func(t *testing.T) {
		rec, env := s.do(http.MethodPut, "/events/"+staffed.ID+"/complete", s.admin, map[string]any{
			"volunteerPoints": []map[string]any{
				{"volunteerId": alice.ID, "points": 3},
				{"volunteerId": alice.ID, "points": 7},
			},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, env.Errors, "volunteerPoints[1].volunteerId")
	})

	t.Run("override beyond ledger range", func(t *testing.T) {
		rec, env := s.do(http.MethodPut, "/events/"+staffed.ID+"/complete", s.admin, map[string]any{
			"volunteerPoints": []map[string]any{{"volunteerId": alice.ID, "points": int64(1) << 31}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, env.Errors, "volunteerPoints[0].points")
	})

	// nothing was credited by the refused attempts
	rec, _ := s.do(http.MethodGet, "/volunteers/"+alice.ID+"/points", s.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := s.do(http.MethodGet, "/events/"+staffed.ID, s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var event db.Event
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.NotEqual(t, "completed", string(event.Status))
}

func TestCreditPoints_BeyondLedgerRange(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerVolunteer("Alice")

	rec, env := s.do(http.MethodPost, "/volunteers/"+alice.ID+"/points", s.admin, map[string]any{"points": int64(1) << 31})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, env.Errors, "points")

	rec, _ = s.do(http.MethodGet, "/volunteers/"+alice.ID+"/points", s.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompletionSummary(t *testing.T) {
	s := newTestServer(t)
	event := s.createEvent("Food bank")
	alice := s.registerVolunteer("Alice")
	s.assign(event.ID, alice.ID, "present")

	rec, env := s.do(http.MethodGet, "/events/"+event.ID+"/completion-summary", token(t, "vol-9", RoleVolunteer), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary services.CompletionSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, event.ID, summary.Event.ID)
	assert.Equal(t, 1, summary.Summary.Present)
	require.Len(t, summary.Volunteers, 1)
	assert.Equal(t, 0, summary.Volunteers[0].CurrentPoints)
}

func TestVerifyPoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerVolunteer("Alice")

	rec, _ := s.do(http.MethodPost, "/volunteers/"+alice.ID+"/points", s.admin, map[string]any{"points": 12, "note": "setup crew"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := s.do(http.MethodPut, "/volunteers/verify-points", s.admin, map[string]any{"volunteerId": alice.ID, "pointsToVerify": 13})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = s.do(http.MethodPut, "/volunteers/verify-points", s.admin, map[string]any{"volunteerId": alice.ID, "pointsToVerify": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPut, "/volunteers/verify-points", s.admin, map[string]any{"volunteerId": alice.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodPut, "/volunteers/verify-points", s.admin, map[string]any{"volunteerId": alice.ID, "pointsToVerify": 12})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ledger db.PointsLedger
	require.NoError(t, json.Unmarshal(env.Data, &ledger))
	assert.Equal(t, 12, ledger.Points)
	assert.Equal(t, 12, ledger.VerifiedPoints)
	assert.Equal(t, 0, ledger.PendingPoints)

	rec, _ = s.do(http.MethodPut, "/volunteers/verify-points", token(t, alice.ID, RoleVolunteer), map[string]any{"volunteerId": alice.ID, "pointsToVerify": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReviewSubmission(t *testing.T) {
	s := newTestServer(t)
	event := s.createEvent("Food bank")
	alice := s.registerVolunteer("Alice")
	bob := s.registerVolunteer("Bob")
	aliceToken := token(t, alice.ID, RoleVolunteer)

	rec, _ := s.do(http.MethodPost, "/volunteers/work-submissions", aliceToken, map[string]string{
		"volunteerId": bob.ID,
		"eventId":     event.ID,
		"workTitle":   "Not my work",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := s.do(http.MethodPost, "/volunteers/work-submissions", aliceToken, map[string]string{
		"eventId":   event.ID,
		"workTitle": "Sorted donations",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var submission db.WorkSubmission
	require.NoError(t, json.Unmarshal(env.Data, &submission))
	assert.Equal(t, alice.ID, submission.VolunteerID)

	path := "/volunteers/work-submissions/" + submission.ID + "/review"

	rec, _ = s.do(http.MethodPut, path, aliceToken, map[string]any{"status": "approved", "pointsAwarded": 20})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPut, path, s.admin, map[string]any{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPut, path, s.admin, map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodPut, path, s.admin, map[string]any{"status": "approved", "pointsAwarded": 20, "reviewNotes": "thanks"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Submission approved successfully", env.Message)
	assert.Equal(t, 20, s.ledger(alice.ID).PendingPoints)

	rec, env = s.do(http.MethodPut, path, s.admin, map[string]any{"status": "approved", "pointsAwarded": 20, "reviewNotes": "thanks"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result services.ReviewResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.AlreadyReviewed)
	assert.Equal(t, 20, s.ledger(alice.ID).Points)

	rec, _ = s.do(http.MethodPut, path, s.admin, map[string]any{"status": "rejected", "rejectionReason": "changed my mind"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPut, "/volunteers/work-submissions/missing/review", s.admin, map[string]any{"status": "approved", "pointsAwarded": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignVolunteer_Conflict(t *testing.T) {
	s := newTestServer(t)
	event := s.createEvent("Food bank")
	alice := s.registerVolunteer("Alice")
	s.assign(event.ID, alice.ID, "")

	rec, env := s.do(http.MethodPost, "/events/"+event.ID+"/volunteers", s.admin, map[string]string{"volunteerId": alice.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, env = s.do(http.MethodPost, "/events/"+event.ID+"/volunteers", s.admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Errors, "volunteerId")
}

func TestPagination(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"Ana", "Ben", "Cy"} {
		s.registerVolunteer(name)
	}

	rec, env := s.do(http.MethodGet, "/volunteers?page=2&limit=2", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, env.Pagination)
	assert.Equal(t, Pagination{
		CurrentPage:  2,
		ItemsPerPage: 2,
		TotalItems:   3,
		TotalPages:   2,
		HasNextPage:  false,
		HasPrevPage:  true,
	}, *env.Pagination)

	var volunteers []db.Volunteer
	require.NoError(t, json.Unmarshal(env.Data, &volunteers))
	assert.Len(t, volunteers, 1)

	rec, env = s.do(http.MethodGet, "/volunteers/points", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, "[]", string(env.Data))
	assert.Equal(t, db.DefaultPageSize, env.Pagination.ItemsPerPage)
}

func testCounterValue(gatherer prometheus.Gatherer, name string) (float64, error) {
	families, err := gatherer.Gather()
	if err != nil {
		return 0, err
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total, nil
	}
	return 0, nil
}
