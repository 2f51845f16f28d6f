package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/worker"
	"github.com/xavierca1/route2rise-console/internal/shell"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

func (a *app) dashboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "keep refreshing until interrupted")
	assignedTo := fs.String("assigned-to", "", "only leads of this owner")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.authorize(ctx, shell.ViewDashboard); err != nil {
		return err
	}

	if !*watch {
		stats, err := usecase.LoadDashboard(ctx, a.leads, *assignedTo)
		if err != nil {
			return fmt.Errorf("error loading dashboard: %s", usecase.Message(err))
		}
		if *asJSON {
			return printJSON(os.Stdout, stats)
		}
		renderDashboard(os.Stdout, worker.StateReady, stats)
		return nil
	}

	poller := worker.NewDashboardPoller(a.leads, a.log.Named("dashboard"),
		worker.WithInterval(a.cfg.PollInterval),
		worker.WithAssignee(*assignedTo),
		worker.WithListener(func(_ context.Context, u worker.Update) {
			// clear the screen and redraw from the last good snapshot
			fmt.Print("\033[H\033[2J")
			renderDashboard(os.Stdout, u.State, u.Stats)
			if u.Err != nil && u.Stats != nil {
				fmt.Printf("\nlast refresh failed at %s, showing previous data\n", time.Now().Format("15:04:05"))
			}
		}),
	)
	renderDashboard(os.Stdout, worker.StateLoading, nil)
	if err := poller.Mount(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	poller.Unmount()
	return nil
}

func renderDashboard(w io.Writer, state worker.ViewState, stats *entity.DashboardStats) {
	switch {
	case state == worker.StateLoading:
		fmt.Fprintln(w, "Loading...")
		return
	case stats == nil:
		fmt.Fprintln(w, "Error loading dashboard")
		return
	}

	fmt.Fprintln(w, "DASHBOARD")
	fmt.Fprintf(w, "Total leads: %d\n", stats.TotalLeads)
	for _, c := range usecase.SortedCounts(stats.LeadsByStatus) {
		fmt.Fprintf(w, "  %-20s %d\n", c.Key, c.Value)
	}

	fmt.Fprintln(w, "\nUPCOMING CALLS")
	if len(stats.UpcomingCalls) == 0 {
		fmt.Fprintln(w, "  No upcoming calls")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, lead := range stats.UpcomingCalls {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", lead.CompanyName, lead.Sector, formatDate(lead.NextFollowUpDate))
	}
	tw.Flush()

	fmt.Fprintln(w, "\nLEADS BY SECTOR")
	for _, c := range usecase.SortedCounts(stats.LeadsBySector) {
		fmt.Fprintf(w, "  %-20s %d\n", c.Key, c.Value)
	}

	if len(stats.LeadsByOwner) > 0 {
		fmt.Fprintln(w, "\nLEADS BY OWNER")
		for _, c := range usecase.SortedCounts(stats.LeadsByOwner) {
			fmt.Fprintf(w, "  %-20s %d\n", orDash(c.Key), c.Value)
		}
	}

	fmt.Fprintln(w, "\nRECENTLY UPDATED")
	if len(stats.RecentUpdates) == 0 {
		fmt.Fprintln(w, "  No recent updates")
		return
	}
	printLeads(w, stats.RecentUpdates)
}

func printLeads(w io.Writer, leads []entity.Lead) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tSECTOR\tSTATUS\tOWNER\tFOLLOW-UP\tUPDATED")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.CompanyName, l.Sector, l.Status, l.AssignedTo,
			formatDate(l.NextFollowUpDate), formatDate(l.UpdatedAt))
	}
	tw.Flush()
}

func formatDate(ts *entity.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
