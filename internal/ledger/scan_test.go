package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/ledger"
	"overmind.cash/internal/ledger/ledgertest"
)

const userAddr = "ecash:qrfm48gr3zdgph6dt593hzlp587002ec4ysl59mavw"

var (
	userScript  = ledgertest.P2PKH(1)
	otherScript = ledgertest.P2PKH(2)
	now         = time.Unix(1_760_000_000, 0)
)

func withdrawQuery() ledger.Query {
	return ledger.Query{
		Address:      userAddr,
		SenderScript: userScript,
		Code:         empp.CodeWithdraw,
		Window:       24 * time.Hour,
		Now:          now,
	}
}

func TestHasRecentAction_NoHistory(t *testing.T) {
	f := ledgertest.New()
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected false for empty history")
	}
}

func TestHasRecentAction_MatchWithinWindow(t *testing.T) {
	f := ledgertest.New()
	f.SetHistory(userAddr, ledgertest.TaggedTx("01", userScript, empp.Withdraw{}, now.Unix()-3600))
	s := ledger.NewScanner(f, nil)
	if !s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected withdraw found")
	}
}

func TestHasRecentAction_OtherActionIgnored(t *testing.T) {
	f := ledgertest.New()
	f.SetHistory(userAddr, ledgertest.TaggedTx("01", userScript, empp.Like{MsgID: 9}, now.Unix()-3600))
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected like tag not to count as withdraw")
	}
}

func TestHasRecentAction_OlderThanWindow(t *testing.T) {
	f := ledgertest.New()
	f.SetHistory(userAddr, ledgertest.TaggedTx("01", userScript, empp.Withdraw{}, now.Unix()-90000))
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected tx older than 24h ignored")
	}
}

func TestHasRecentAction_NotSentByPrincipal(t *testing.T) {
	f := ledgertest.New()
	f.SetHistory(userAddr, ledgertest.TaggedTx("01", otherScript, empp.Withdraw{}, now.Unix()-60))
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected third-party tx ignored")
	}
}

func TestHasRecentAction_NoDataOutput(t *testing.T) {
	f := ledgertest.New()
	f.SetHistory(userAddr, ledger.Tx{
		TxID:          "01",
		Inputs:        []ledger.TxInput{{OutputScript: userScript}},
		Outputs:       []ledger.TxOutput{{OutputScript: otherScript, Token: &ledger.Token{TokenID: "t", Atoms: 50}}},
		TimeFirstSeen: now.Unix() - 60,
	})
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected tx without OP_RETURN ignored")
	}
}

func TestHasRecentAction_BlockTimeFallback(t *testing.T) {
	f := ledgertest.New()
	tx := ledgertest.TaggedTx("01", userScript, empp.Withdraw{}, 0)
	tx.Block = &ledger.BlockMeta{Height: 800000, Timestamp: now.Unix() - 90000}
	f.SetHistory(userAddr, tx)
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected block time to expire the tx")
	}

	tx.Block.Timestamp = now.Unix() - 60
	f.SetHistory(userAddr, tx)
	if !s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected recent block time to match")
	}
}

func TestHasRecentAction_UnknownTimeNotExpired(t *testing.T) {
	f := ledgertest.New()
	f.SetHistory(userAddr, ledgertest.TaggedTx("01", userScript, empp.Withdraw{}, 0))
	s := ledger.NewScanner(f, nil)
	if !s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected unknown-time tx treated as recent")
	}
}

func TestHasRecentAction_Pagination(t *testing.T) {
	f := ledgertest.New()
	var txs []ledger.Tx
	for i := 0; i < ledger.HistoryPageSize+5; i++ {
		txs = append(txs, ledgertest.TaggedTx(fmt.Sprintf("%02x", i), userScript, empp.Like{MsgID: uint32(i)}, now.Unix()-int64(i)))
	}
	txs = append(txs, ledgertest.TaggedTx("ff", userScript, empp.Withdraw{}, now.Unix()-100))
	f.SetHistory(userAddr, txs...)
	s := ledger.NewScanner(f, nil)
	if !s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected withdraw on second page found")
	}
	if f.HistoryCalls != 2 {
		t.Fatalf("expected 2 page fetches, got %d", f.HistoryCalls)
	}
}

func TestHasRecentAction_StopsAtOldTx(t *testing.T) {
	f := ledgertest.New()
	var txs []ledger.Tx
	txs = append(txs, ledgertest.TaggedTx("00", userScript, empp.Like{MsgID: 1}, now.Unix()-90000))
	for i := 1; i < ledger.HistoryPageSize+5; i++ {
		txs = append(txs, ledgertest.TaggedTx(fmt.Sprintf("%02x", i), userScript, empp.Withdraw{}, 0))
	}
	f.SetHistory(userAddr, txs...)
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected scan to stop at the first expired tx")
	}
	if f.HistoryCalls != 1 {
		t.Fatalf("expected a single page fetch, got %d", f.HistoryCalls)
	}
}

func TestHasRecentAction_FailsOpen(t *testing.T) {
	f := ledgertest.New()
	f.SetHistory(userAddr, ledgertest.TaggedTx("01", userScript, empp.Withdraw{}, now.Unix()-60))
	f.HistoryErr = errors.New("history error")
	s := ledger.NewScanner(f, nil)
	if s.HasRecentAction(context.Background(), withdrawQuery()) {
		t.Fatalf("expected fail open on ledger error")
	}
}
