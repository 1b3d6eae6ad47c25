package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/slipway-sh/slipway/pkg/journal"
)

var (
	journalPath = flag.String("journal", "/var/lib/slipway/journal.db", "Path to the effect journal")
	list        = flag.Bool("list", false, "List journal entries and exit")
	prune       = flag.Bool("prune", false, "Prune completed entries older than the retention window")
	olderThan   = flag.Duration("older-than", 7*24*time.Hour, "Retention window for --prune")
	dryRun      = flag.Bool("dry-run", false, "Show what would be pruned without making changes")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.Println("Slipway Journal Maintenance Tool")
	log.Println("================================")

	// Opening would create a fresh journal; a maintenance tool pointed
	// at the wrong path should fail loudly instead.
	if _, err := os.Stat(*journalPath); os.IsNotExist(err) {
		log.Fatalf("Journal not found at %s", *journalPath)
	}

	jnl, err := journal.Open(*journalPath)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer jnl.Close()

	open, completed, err := jnl.Counts()
	if err != nil {
		log.Fatalf("Failed to count entries: %v", err)
	}
	log.Printf("Journal: %s", *journalPath)
	log.Printf("Entries: %d open, %d completed", open, completed)

	switch {
	case *list:
		if err := listEntries(jnl); err != nil {
			log.Fatalf("Failed to list entries: %v", err)
		}
	case *prune:
		if err := pruneEntries(jnl, *olderThan, *dryRun); err != nil {
			log.Fatalf("Failed to prune entries: %v", err)
		}
	default:
		log.Println("Nothing to do. Use --list or --prune.")
	}
}

func listEntries(jnl *journal.Journal) error {
	entries, err := jnl.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Println("Journal is empty")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MESSAGE ID\tACTION\tAGENT\tBUILD\tDEPLOYMENT\tREGISTERED\tCOMPLETED\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\t%v\t%s\n",
			e.MessageID, e.Action, e.AgentName,
			orDash(e.BuildID), orDash(e.DeploymentID),
			e.RegistryUpserted, e.Completed,
			e.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func pruneEntries(jnl *journal.Journal, olderThan time.Duration, dryRun bool) error {
	cutoff := time.Now().Add(-olderThan)
	log.Printf("Pruning completed entries last updated before %s", cutoff.Format(time.RFC3339))

	if dryRun {
		entries, err := jnl.List()
		if err != nil {
			return err
		}
		count := 0
		for _, e := range entries {
			if !e.Completed || !e.UpdatedAt.Before(cutoff) {
				continue
			}
			count++
			log.Printf("  [DRY RUN] Would prune %s (%s %s, updated %s)",
				e.MessageID, e.Action, e.AgentName, e.UpdatedAt.Format(time.RFC3339))
		}
		log.Printf("Dry run completed. %d entries would be pruned.", count)
		log.Println("Run without --dry-run to prune them.")
		return nil
	}

	pruned, err := jnl.Prune(cutoff)
	if err != nil {
		return err
	}
	log.Printf("✓ Pruned %d completed entries", pruned)
	log.Println("Incomplete entries are kept: they mark commands that died mid-flight.")
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
