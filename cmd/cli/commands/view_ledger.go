package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// ViewLedgerCmd creates the viewLedger command
func ViewLedgerCmd(app *AppContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "viewLedger",
		Short: "Show volunteer points standings, highest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("viewLedger command", zap.Int("limit", limit))

			standings, total, err := services.ListLedgerStandings(app.Ctx, app.Database, app.Logger, db.NewPage(1, limit))
			if err != nil {
				return err
			}

			renderLedger(os.Stdout, standings, total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", db.DefaultPageSize, "number of volunteers to show")

	return cmd
}

// renderLedger prints standings as a table. Pending points are yellow, fully verified balances green.
func renderLedger(w io.Writer, standings []services.LedgerStanding, total int) {
	if len(standings) == 0 {
		fmt.Fprintln(w, "\nNo points have been credited yet.")
		return
	}

	nameColWidth := 20
	for _, s := range standings {
		if len(s.VolunteerName)+2 > nameColWidth {
			nameColWidth = len(s.VolunteerName) + 2
		}
	}

	fmt.Fprintf(w, "\nPoints ledger (%d of %d volunteers)\n\n", len(standings), total)
	fmt.Fprintf(w, "%-4s%-*s%8s%10s%9s  %s\n", "#", nameColWidth, "Volunteer", "Total", "Verified", "Pending", "Last verified")
	fmt.Fprintln(w, strings.Repeat("-", 4+nameColWidth+8+10+9+2+13))

	for i, s := range standings {
		lastVerified := colorDim + "never" + colorReset
		if s.LastVerifiedAt != nil {
			lastVerified = s.LastVerifiedAt.Format("2006-01-02")
		}

		totalColor := colorGreen
		if s.PendingPoints > 0 {
			totalColor = colorYellow
		}

		fmt.Fprintf(w, "%-4d%-*s%s%8d%s%10d%9d  %s\n",
			i+1, nameColWidth, s.VolunteerName,
			totalColor, s.Points, colorReset,
			s.VerifiedPoints, s.PendingPoints, lastVerified)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Legend:")
	fmt.Fprintf(w, "  %sTotal%s = every point is verified\n", colorGreen, colorReset)
	fmt.Fprintf(w, "  %sTotal%s = some points await verification\n", colorYellow, colorReset)
}
