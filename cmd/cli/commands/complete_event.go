package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
)

// CompleteEventCmd creates the completeEvent command
func CompleteEventCmd(app *AppContext) *cobra.Command {
	var (
		present   int
		absent    int
		pending   int
		overrides []string
	)

	cmd := &cobra.Command{
		Use:   "completeEvent <event_id>",
		Short: "Mark an event completed and credit points to every assigned volunteer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := services.DefaultPolicy(app.Cfg.Completion)
			if cmd.Flags().Changed("present") {
				policy.DefaultPointsForPresent = present
			}
			if cmd.Flags().Changed("absent") {
				policy.DefaultPointsForAbsent = absent
			}
			if cmd.Flags().Changed("pending") {
				policy.DefaultPointsForPending = pending
			}
			for _, raw := range overrides {
				volunteerID, override, err := parseOverride(raw)
				if err != nil {
					return err
				}
				policy.Overrides[volunteerID] = override
			}

			app.Logger.Debug("completeEvent command",
				zap.String("event_id", args[0]),
				zap.Int("overrides", len(policy.Overrides)))

			result, err := services.CompleteEvent(app.Ctx, app.Database, app.Auditor, app.Logger, app.Actor, args[0], policy)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Event completed successfully. Points assigned to %d volunteers.\n\n", result.TotalVolunteers)
			fmt.Printf("Event: %s (%s)\n\n", result.Event.Name, result.Event.ID)
			for _, line := range result.PointsAssigned {
				marker := ""
				if line.Overridden {
					marker = " (override)"
				}
				fmt.Printf("  %-30s %-8s %4d%s\n", line.VolunteerName, line.Attendance, line.PointsAwarded, marker)
			}
			fmt.Printf("\nTotal points awarded: %d\n\n", result.TotalPointsAwarded)

			return nil
		},
	}

	cmd.Flags().IntVar(&present, "present", 0, "points for volunteers marked present (default from config)")
	cmd.Flags().IntVar(&absent, "absent", 0, "points for volunteers marked absent (default from config)")
	cmd.Flags().IntVar(&pending, "pending", 0, "points for volunteers with pending attendance (default from config)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "explicit points for one volunteer, as volunteerId=points[:note] (repeatable)")

	return cmd
}

// parseOverride reads volunteerId=points[:note]
func parseOverride(raw string) (string, services.PointsOverride, error) {
	volunteerID, rest, found := strings.Cut(raw, "=")
	volunteerID = strings.TrimSpace(volunteerID)
	if !found || volunteerID == "" {
		return "", services.PointsOverride{}, fmt.Errorf("override must look like volunteerId=points[:note], got %q", raw)
	}

	pointsText, note, _ := strings.Cut(rest, ":")
	points, err := strconv.Atoi(strings.TrimSpace(pointsText))
	if err != nil {
		return "", services.PointsOverride{}, fmt.Errorf("override points for %s must be a number: %w", volunteerID, err)
	}

	return volunteerID, services.PointsOverride{Points: points, Notes: strings.TrimSpace(note)}, nil
}
