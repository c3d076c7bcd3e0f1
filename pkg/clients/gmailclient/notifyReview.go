package gmailclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// NotifyReview emails a volunteer the outcome of a work submission review
func (c *Client) NotifyReview(ctx context.Context, volunteer db.Volunteer, submission db.WorkSubmission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body := reviewEmail(volunteer, submission)
	return c.SendEmail(volunteer.Email, subject, body)
}

func reviewEmail(volunteer db.Volunteer, submission db.WorkSubmission) (subject, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", volunteer.FirstName)

	switch submission.Status {
	case model.SubmissionApproved:
		subject = fmt.Sprintf("Your work %q was approved", submission.WorkTitle)
		fmt.Fprintf(&b, "Thank you! Your work %q has been approved and %d points were added to your balance.\n",
			submission.WorkTitle, submission.PointsAwarded)
		b.WriteString("They will show as pending until a coordinator verifies them.\n")
	default:
		subject = fmt.Sprintf("Update on your work %q", submission.WorkTitle)
		fmt.Fprintf(&b, "Your work %q was not approved this time.\n", submission.WorkTitle)
		if submission.RejectionReason != "" {
			fmt.Fprintf(&b, "\nReason: %s\n", submission.RejectionReason)
		}
	}

	if submission.ReviewNotes != "" {
		fmt.Fprintf(&b, "\nReviewer notes: %s\n", submission.ReviewNotes)
	}
	b.WriteString("\nThank you for volunteering with us.\n")

	return subject, b.String()
}
