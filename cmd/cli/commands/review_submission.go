package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jakechorley/volunteer-ledger/pkg/core/model"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
)

// VerifyPointsCmd creates the verifyPoints command
func VerifyPointsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verifyPoints <volunteer_id> <points>",
		Short: "Move points from pending to verified for a volunteer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("points must be a number: %w", err)
			}

			ledger, err := services.VerifyPoints(app.Ctx, app.Database, app.Auditor, app.Logger, app.Actor, args[0], points)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Verified %d points\n\n", points)
			fmt.Printf("Total:    %d\n", ledger.Points)
			fmt.Printf("Verified: %d\n", ledger.VerifiedPoints)
			fmt.Printf("Pending:  %d\n\n", ledger.PendingPoints)
			return nil
		},
	}
}

// ReviewSubmissionCmd creates the reviewSubmission command
func ReviewSubmissionCmd(app *AppContext) *cobra.Command {
	var (
		points int
		notes  string
		reason string
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "reviewSubmission <submission_id> <approve|reject>",
		Short: "Approve or reject a work submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var decision model.ReviewDecision
			switch args[1] {
			case "approve", string(model.DecisionApproved):
				decision = model.DecisionApproved
			case "reject", string(model.DecisionRejected):
				decision = model.DecisionRejected
			default:
				return fmt.Errorf("decision must be approve or reject, got %q", args[1])
			}

			var notifier services.ReviewNotifier
			if notify {
				gmail, err := app.GmailClient()
				if err != nil {
					return err
				}
				notifier = gmail
			}

			result, err := services.ReviewSubmission(app.Ctx, app.Database, app.Auditor, notifier, app.Logger, app.Actor, args[0], services.ReviewInput{
				Decision:        decision,
				PointsAwarded:   points,
				ReviewNotes:     notes,
				RejectionReason: reason,
			})
			if err != nil {
				return err
			}

			if result.AlreadyReviewed {
				fmt.Printf("\nSubmission %s was already %s. Nothing changed.\n\n", result.Submission.ID, result.Submission.Status)
				return nil
			}

			fmt.Printf("\n✓ Submission %q %s\n", result.Submission.WorkTitle, result.Submission.Status)
			if result.Ledger != nil {
				fmt.Printf("  Credited %d points. Balance: %d (%d pending)\n", result.Submission.PointsAwarded, result.Ledger.Points, result.Ledger.PendingPoints)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&points, "points", 0, "points to award on approval")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	cmd.Flags().BoolVar(&notify, "notify", false, "email the volunteer the outcome")

	return cmd
}
