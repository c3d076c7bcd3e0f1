package gmailclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

type sentMail struct {
	path string
	raw  string
	at   time.Time
}

func newTestClient(t *testing.T, interval time.Duration) (*Client, func() []sentMail) {
	t.Helper()
	var mu sync.Mutex
	var sent []sentMail

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg gmail.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		raw, err := base64.URLEncoding.DecodeString(msg.Raw)
		require.NoError(t, err)

		mu.Lock()
		sent = append(sent, sentMail{path: r.URL.Path, raw: string(raw), at: time.Now()})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"m1"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClientWithOptions(context.Background(),
		config.GoogleConfig{GmailSender: "ledger@example.org"},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	client.interval = interval

	return client, func() []sentMail {
		mu.Lock()
		defer mu.Unlock()
		return append([]sentMail(nil), sent...)
	}
}

func TestSendEmail(t *testing.T) {
	client, sent := newTestClient(t, 0)

	require.NoError(t, client.SendEmail("alice@example.org", "Hello", "Body text"))

	mails := sent()
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].path, "/users/me/messages/send")
	assert.Contains(t, mails[0].raw, "From: ledger@example.org\r\n")
	assert.Contains(t, mails[0].raw, "To: alice@example.org\r\n")
	assert.Contains(t, mails[0].raw, "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(mails[0].raw, "\r\n\r\nBody text"))
}

func TestSendEmail_Throttles(t *testing.T) {
	interval := 50 * time.Millisecond
	client, sent := newTestClient(t, interval)

	require.NoError(t, client.SendEmail("a@example.org", "1", "x"))
	require.NoError(t, client.SendEmail("b@example.org", "2", "x"))

	mails := sent()
	require.Len(t, mails, 2)
	assert.GreaterOrEqual(t, mails[1].at.Sub(mails[0].at), interval-5*time.Millisecond)
}

func TestNotifyReview(t *testing.T) {
	client, sent := newTestClient(t, 0)
	volunteer := db.Volunteer{FirstName: "Alice", Email: "alice@example.org"}

	err := client.NotifyReview(context.Background(), volunteer, db.WorkSubmission{
		WorkTitle:     "Sorted donations",
		Status:        model.SubmissionApproved,
		PointsAwarded: 20,
		ReviewNotes:   "great job",
	})
	require.NoError(t, err)

	mails := sent()
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].raw, `Subject: Your work "Sorted donations" was approved`)
	assert.Contains(t, mails[0].raw, "20 points")
	assert.Contains(t, mails[0].raw, "Reviewer notes: great job")
}

func TestNotifyReview_CancelledContext(t *testing.T) {
	client, sent := newTestClient(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.NotifyReview(ctx, db.Volunteer{Email: "a@example.org"}, db.WorkSubmission{Status: model.SubmissionRejected})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sent())
}

func TestReviewEmail_Rejected(t *testing.T) {
	subject, body := reviewEmail(
		db.Volunteer{FirstName: "Bob"},
		db.WorkSubmission{WorkTitle: "Flyers", Status: model.SubmissionRejected, RejectionReason: "duplicate claim"},
	)

	assert.Equal(t, `Update on your work "Flyers"`, subject)
	assert.True(t, strings.HasPrefix(body, "Hi Bob,"))
	assert.Contains(t, body, "Reason: duplicate claim")
	assert.NotContains(t, body, "points")
}
