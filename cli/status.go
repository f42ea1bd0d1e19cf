// ABOUTME: Status command showing sync state and recent runs
// ABOUTME: Reads the local state database only
package cli

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/card2box/db"
)

// StatusCommand prints the last sync state and the most recent runs.
func StatusCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Number of runs to show")
	_ = fs.Parse(args)

	database, err := app.DB()
	if err != nil {
		return err
	}

	states, err := db.ListSyncStates(database)
	if err != nil {
		return fmt.Errorf("failed to get sync states: %w", err)
	}
	runs, err := db.RecentRuns(database, *limit)
	if err != nil {
		return fmt.Errorf("failed to get recent runs: %w", err)
	}

	fmt.Print(renderStatus(states, runs, time.Now()))
	return nil
}

func renderStatus(states []db.SyncState, runs []db.RunRecord, now time.Time) string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("card2box status"))
	s.WriteString("\n")

	if len(states) == 0 {
		s.WriteString(mutedStyle.Render("No runs recorded yet. Run 'card2box run' first."))
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(headerStyle.Render("Service Status"))
	s.WriteString("\n\n")
	for _, state := range states {
		last := "never"
		if state.LastSyncTime != nil {
			last = formatAgo(now.Sub(*state.LastSyncTime))
		}
		s.WriteString(serviceStyle.Render(state.Service))
		s.WriteString(statusStyle(state.Status).Render(fmt.Sprintf("%-8s", state.Status)))
		s.WriteString("  last sync " + last)
		s.WriteString("\n")
		if state.ErrorMessage != nil && *state.ErrorMessage != "" {
			s.WriteString("  " + errorStyle.Render(*state.ErrorMessage))
			s.WriteString("\n")
		}
	}

	if len(runs) == 0 {
		return s.String()
	}

	s.WriteString("\n")
	s.WriteString(headerStyle.Render("Recent Runs"))
	s.WriteString("\n\n")
	for _, run := range runs {
		line := fmt.Sprintf("%s  %-5s  %d contacts, %d entries, %d/%d photos",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Status,
			run.Contacts,
			run.Entries,
			run.ImagesUploaded,
			run.ImagesConsidered,
		)
		if run.AttributeSource != "" {
			line += fmt.Sprintf(", %d attributes from %s", run.Attributes, run.AttributeSource)
		}
		s.WriteString(statusStyle(run.Status).Render(line))
		s.WriteString("\n")
		if run.Message != "" {
			s.WriteString("  " + mutedStyle.Render(run.Message))
			s.WriteString("\n")
		}
	}

	return s.String()
}

func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
