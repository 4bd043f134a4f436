// Command frontierctl queries a running frontier poller for its latest
// ready set.
//
// Usage:
//
//	frontierctl -url http://localhost:8083 [-timeout 5s] [-stale-after 40s] [-json]
//
// The poller marks old snapshots with a staleness header. -stale-after also
// flags snapshots older than the given age when the header is absent.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HatiCode/frontier/pkg/client"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("frontierctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("url", getEnv("FRONTIER_URL", "http://localhost:8083"), "Base URL of the frontier poller")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	staleAfter := fs.Duration("stale-after", 0, "Treat snapshots older than this as stale (0 trusts the server)")
	asJSON := fs.Bool("json", false, "Print the raw snapshot as JSON")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	c := client.NewFrontierClientWithTimeout(*baseURL, *timeout)
	result, err := c.GetCurrent(context.Background())
	if errors.Is(err, client.ErrNoSnapshot) {
		fmt.Fprintln(stderr, "no poll cycle has completed yet")
		return 3
	}
	if err != nil {
		fmt.Fprintf(stderr, "frontierctl: %v\n", err)
		return 1
	}
	if *staleAfter > 0 && client.IsStale(result.Snapshot, *staleAfter) {
		result.Stale = true
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Snapshot); err != nil {
			fmt.Fprintf(stderr, "frontierctl: %v\n", err)
			return 1
		}
		return 0
	}

	printSummary(stdout, result)
	return 0
}

func printSummary(w io.Writer, r *client.Result) {
	snap := r.Snapshot
	fmt.Fprintf(w, "generated: %s\n", snap.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "margin:    %d\n", snap.Margin)
	fmt.Fprintf(w, "stale:     %t\n", r.Stale)
	if latest, ok := snap.Latest(); ok {
		fmt.Fprintf(w, "latest:    %d\n", latest)
	} else {
		fmt.Fprintln(w, "latest:    none")
	}
	fmt.Fprintf(w, "ready:     %d buckets\n", len(snap.Ready))
	for _, ts := range snap.Ready {
		fmt.Fprintf(w, "  %d\n", ts)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
