package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"overmind.cash/internal/overmind"
	persistlog "overmind.cash/internal/persistence/log"
)

func TestReadTransfers_FiltersFailures(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewTransferLogger(dir)
	for _, e := range []overmind.TransferEntry{
		{ID: "1", Action: "LIKE", Atoms: 1, TxID: "a"},
		{ID: "2", Action: "WITHDRAW", Atoms: 5, Error: "broadcast failed"},
		{ID: "3", Action: "LIKE", Atoms: 1, Error: "broadcast failed"},
	} {
		if err := l.WriteTransfer(e); err != nil {
			t.Fatalf("WriteTransfer: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "transfers", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	names, err := transferLogs(filepath.Join(dir, "transfers"))
	if err != nil || len(names) != 1 {
		t.Fatalf("expected one log file, got %v %v", names, err)
	}
	if !strings.HasPrefix(names[0], "transfers-") || !strings.HasSuffix(names[0], ".jsonl.zst") {
		t.Fatalf("unexpected log name %q", names[0])
	}

	all, err := readTransfers(filepath.Join(dir, "transfers"), nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all three entries, got %d %v", len(all), err)
	}
	failed, err := readTransfers(filepath.Join(dir, "transfers"), func(e overmind.TransferEntry) bool { return !e.OK() && e.Action == "WITHDRAW" })
	if err != nil || len(failed) != 1 || failed[0].ID != "2" {
		t.Fatalf("unexpected failures: %+v %v", failed, err)
	}
}
