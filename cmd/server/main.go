package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"overmind.cash/internal/ledger"
	"overmind.cash/internal/overmind"
	persistlog "overmind.cash/internal/persistence/log"
	"overmind.cash/internal/persistence/store"
	"overmind.cash/internal/protocol"
	"overmind.cash/internal/transport/ws"
	"overmind.cash/internal/tuning"
	"overmind.cash/internal/wallet"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/economy.yaml", "path to economy.yaml")
		dataDir    = flag.String("data", "", "runtime data directory (default: $OVERMIND_DATA or ./data)")
		dbPath     = flag.String("db", "", "sqlite path (default: <data>/overmind.sqlite)")
		adminHTTP  = flag.Bool("admin_http", true, "serve loopback-only /admin/v1 endpoints")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	envCfg, err := tuning.LoadEnv()
	if err != nil {
		logger.Fatalf("load env: %v", err)
	}
	tune, err := tuning.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *configPath)
		tune = tuning.Defaults()
	}
	envCfg.Apply(&tune)
	if err := tune.Validate(); err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	if tune.TokenID == "" {
		logger.Fatalf("token id is required (token_id in %s or OVERMIND_TOKEN_ID)", *configPath)
	}

	data := strings.TrimSpace(*dataDir)
	if data == "" {
		data = envCfg.DataDir
	}
	_ = os.MkdirAll(data, 0o755)
	dbFile := strings.TrimSpace(*dbPath)
	if dbFile == "" {
		dbFile = filepath.Join(data, "overmind.sqlite")
	}

	ctx, cancel := signalContext()
	defer cancel()

	db, err := store.OpenSQLite(dbFile)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer db.Close()

	transferLog := persistlog.NewTransferLogger(data)
	defer transferLog.Close()

	chain, err := ledger.NewHTTPClient(ledger.HTTPConfig{
		Endpoint:          envCfg.LedgerURL,
		HTTPTimeout:       time.Duration(tune.Ledger.HTTPTimeoutMs) * time.Millisecond,
		RequestsPerSecond: tune.Ledger.RequestsPerSecond,
		Burst:             tune.Ledger.Burst,
	})
	if err != nil {
		logger.Fatalf("ledger client: %v", err)
	}
	signer, err := wallet.NewRemote(envCfg.WalletURL, envCfg.WalletToken, 0)
	if err != nil {
		logger.Fatalf("wallet client: %v", err)
	}
	treasury, err := signer.Derive(ctx, envCfg.TreasuryIndex)
	if err != nil {
		logger.Fatalf("derive treasury account %d: %v", envCfg.TreasuryIndex, err)
	}
	logger.Printf("treasury index=%d address=%s", treasury.Index, treasury.Address)

	botLog := log.New(os.Stdout, "[overmind] ", log.LstdFlags|log.Lmicroseconds)
	var notifier overmind.Notifier = overmind.NewLogNotifier(log.New(os.Stdout, "[notice] ", log.LstdFlags|log.Lmicroseconds))
	if u := strings.TrimSpace(envCfg.AdminWebhook); u != "" {
		notifier = overmind.NewWebhookNotifier(u, tune.AdminChat, 5*time.Second)
	}
	var members overmind.Membership
	if u := strings.TrimSpace(envCfg.MembersURL); u != "" {
		m, err := newHTTPMembership(u, envCfg.WalletToken, tune.ChatID, 5*time.Second)
		if err != nil {
			logger.Fatalf("membership client: %v", err)
		}
		members = m
	}

	bot, err := overmind.New(overmind.Config{Tuning: tune, Treasury: treasury}, overmind.Deps{
		Ledger:   chain,
		Wallet:   signer,
		Keys:     signer,
		Users:    db,
		Messages: db,
		Pending:  db.PendingWithdrawals(),
		Members:  members,
		Notifier: notifier,
		Audit:    persistlog.Tee{transferLog, db},
		Log:      botLog,
	})
	if err != nil {
		logger.Fatalf("overmind: %v", err)
	}

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("protocol schemas: %v", err)
	}
	counted := newCountingHandler(bot)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		writeMetrics(rw, counted, db)
	})
	if *adminHTTP {
		mux.HandleFunc("/admin/v1/stats", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			st, err := db.Stats(r.Context())
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(st)
		})
		mux.HandleFunc("/admin/v1/transfers", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			list, err := db.RecentTransfers(r.Context(), 100)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(list)
		})
	}
	mux.HandleFunc("/v1/events", ws.NewServer(counted, validator, ws.Config{
		AuthToken: envCfg.EventsToken,
		ChatID:    tune.ChatID,
		TokenID:   tune.TokenID,
	}, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s token=%s chat=%d", *addr, tune.TokenID, tune.ChatID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
