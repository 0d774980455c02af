package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"overmind.cash/internal/persistence/store"
)

// dbCmd queries the server's sqlite store: users, pending, transfers or stats.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/overmind.sqlite)")
	limit := fs.Int("limit", 20, "result limit (transfers)")
	_ = fs.Parse(args)

	q := "stats"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "overmind.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := store.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	var out any
	switch q {
	case "users":
		out, err = db.Users(ctx)
	case "pending":
		out, err = db.PendingWithdrawals().List(ctx)
	case "transfers":
		out, err = db.RecentTransfers(ctx, *limit)
	case "stats":
		out, err = db.Stats(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (users|pending|transfers|stats)\n", q)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
