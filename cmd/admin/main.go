package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"overmind.cash/internal/overmind"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "stats":
			statsCmd(os.Args[2:])
			return
		case "transfers":
			transfersCmd(os.Args[2:])
			return
		case "failures":
			failuresCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd lists the transfer log files under the data directory.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	names, err := transferLogs(filepath.Join(*dataDir, "transfers"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

// failuresCmd prints failed transfer attempts from the JSONL log.
func failuresCmd(args []string) {
	fs := flag.NewFlagSet("failures", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	action := fs.String("action", "", "action filter (e.g. WITHDRAW)")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "transfers")
	entries, err := readTransfers(dir, func(e overmind.TransferEntry) bool {
		if e.OK() {
			return false
		}
		return *action == "" || strings.EqualFold(e.Action, *action)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read transfers:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		_ = enc.Encode(e)
	}
	fmt.Fprintf(os.Stderr, "%d failed transfers\n", len(entries))
}

func transferLogs(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "transfers-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// readTransfers decodes every rotated log in dir, oldest first, keeping the
// entries keep accepts.
func readTransfers(dir string, keep func(overmind.TransferEntry) bool) ([]overmind.TransferEntry, error) {
	names, err := transferLogs(dir)
	if err != nil {
		return nil, err
	}
	var out []overmind.TransferEntry
	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		sc := bufio.NewScanner(dec)
		sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
		for sc.Scan() {
			var e overmind.TransferEntry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				dec.Close()
				_ = f.Close()
				return nil, fmt.Errorf("%s: unmarshal: %w", name, err)
			}
			if keep == nil || keep(e) {
				out = append(out, e)
			}
		}
		// A log still being written may end in a partial frame.
		if err := sc.Err(); err != nil && len(out) == 0 {
			dec.Close()
			_ = f.Close()
			return nil, err
		}
		dec.Close()
		_ = f.Close()
	}
	return out, nil
}
