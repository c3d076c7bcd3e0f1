package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
)

// ScheduleEventsCmd creates the scheduleEvents command
func ScheduleEventsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduleEvents <schedule_name> <count>",
		Short: "Create planned events for the next occurrences of a recurring schedule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := app.Cfg.Schedule(args[0])
			if err != nil {
				return err
			}
			count, err := strconv.Atoi(args[1])
			if err != nil || count < 1 {
				return fmt.Errorf("count must be a positive integer, got: %s", args[1])
			}

			result, err := services.ScheduleEvents(app.Ctx, app.Database, app.Auditor, app.Logger, app.Actor, *schedule, time.Now(), count)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Scheduled %d events for %q\n\n", len(result.Created), schedule.Name)
			for _, event := range result.Created {
				fmt.Printf("  %s  %s\n", event.StartDate.Format("2006-01-02 15:04 (Monday)"), event.Name)
			}
			if len(result.Skipped) > 0 {
				fmt.Printf("\nSkipped %d occurrences that already have an event:\n", len(result.Skipped))
				for _, at := range result.Skipped {
					fmt.Printf("  %s\n", at.Format("2006-01-02 (Monday)"))
				}
			}
			fmt.Println()

			return nil
		},
	}
}

// PublishLedgerCmd creates the publishLedger command
func PublishLedgerCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publishLedger",
		Short: "Write every volunteer's balance to a new tab of the ledger spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := app.SheetsClient()
			if err != nil {
				return err
			}

			result, err := services.PublishLedger(app.Ctx, app.Database, sheets, app.Logger, app.Cfg.Google.LedgerSheetID)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Published %d volunteers to tab %q\n\n", result.Rows, result.SheetTitle)
			return nil
		},
	}
}
