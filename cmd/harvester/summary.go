package main

import (
	"fmt"
	"io"
	"time"

	"github.com/aluiziolira/go-harvest/models"
	"github.com/aluiziolira/go-harvest/monitor"
)

func printSummary(w io.Writer, report *models.SessionReport, elapsed time.Duration) {
	if report == nil {
		return
	}
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	switch {
	case report.Aborted:
		fmt.Fprintln(w, "Session aborted")
	case report.Interrupted:
		fmt.Fprintln(w, "Session interrupted")
	default:
		fmt.Fprintln(w, "Session complete")
	}

	perSec := 0.0
	if elapsed.Seconds() > 0 {
		perSec = float64(report.RecordsWritten) / elapsed.Seconds()
	}
	fmt.Fprintf(w, "  Session:       %s\n", report.SessionID)
	fmt.Fprintf(w, "  Targets:       %d\n", report.Targets)
	fmt.Fprintf(w, "  Chunks:        %d/%d\n", report.ChunksCompleted, report.Chunks)
	fmt.Fprintf(w, "  Processed:     %d\n", report.Processed)
	fmt.Fprintf(w, "  Records:       %d\n", report.RecordsWritten)
	fmt.Fprintf(w, "  HTTP errors:   %d\n", report.HTTPFailures)
	fmt.Fprintf(w, "  Dropped:       %d\n", report.ConnectionFailures)
	fmt.Fprintf(w, "  Retry passes:  %d\n", report.RetryPasses)
	fmt.Fprintf(w, "  Duration:      %s\n", monitor.FormatDuration(elapsed))
	fmt.Fprintf(w, "  Records/sec:   %.2f\n", perSec)
	fmt.Fprintln(w, separator)
}
