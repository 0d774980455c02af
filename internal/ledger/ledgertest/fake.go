// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/ledger"
)

type Fake struct {
	mu      sync.Mutex
	history map[string][]ledger.Tx
	utxos   map[string][]ledger.Utxo

	// HistoryErr / UtxoErr force failures for every call when set.
	HistoryErr error
	UtxoErr    error

	HistoryCalls int
}

func New() *Fake {
	return &Fake{
		history: map[string][]ledger.Tx{},
		utxos:   map[string][]ledger.Utxo{},
	}
}

// SetHistory replaces the history of address; txs must be newest-first.
func (f *Fake) SetHistory(address string, txs ...ledger.Tx) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[address] = append([]ledger.Tx(nil), txs...)
}

// SetUtxos replaces the utxo set of address.
func (f *Fake) SetUtxos(address string, utxos ...ledger.Utxo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utxos[address] = append([]ledger.Utxo(nil), utxos...)
}

// SetTokenBalance replaces the utxo set of address with one token utxo.
func (f *Fake) SetTokenBalance(address, tokenID string, atoms uint64) {
	if atoms == 0 {
		f.SetUtxos(address, ledger.Utxo{Sats: 1000})
		return
	}
	f.SetUtxos(address, ledger.Utxo{
		Outpoint: ledger.Outpoint{TxID: fmt.Sprintf("%064x", atoms), OutIdx: 0},
		Sats:     546,
		Token:    &ledger.Token{TokenID: tokenID, Atoms: atoms},
	})
}

// Prepend adds tx as the newest history entry of address.
func (f *Fake) Prepend(address string, tx ledger.Tx) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[address] = append([]ledger.Tx{tx}, f.history[address]...)
}

func (f *Fake) History(_ context.Context, address string, page, pageSize int) (ledger.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HistoryCalls++
	if f.HistoryErr != nil {
		return ledger.HistoryPage{}, f.HistoryErr
	}
	all := f.history[address]
	if pageSize <= 0 {
		pageSize = ledger.HistoryPageSize
	}
	numPages := (len(all) + pageSize - 1) / pageSize
	start := page * pageSize
	if start >= len(all) {
		return ledger.HistoryPage{NumPages: numPages, NumTxs: len(all)}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return ledger.HistoryPage{
		Txs:      append([]ledger.Tx(nil), all[start:end]...),
		NumPages: numPages,
		NumTxs:   len(all),
	}, nil
}

func (f *Fake) Utxos(_ context.Context, address string) ([]ledger.Utxo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UtxoErr != nil {
		return nil, f.UtxoErr
	}
	return append([]ledger.Utxo(nil), f.utxos[address]...), nil
}

// TaggedTx builds a tx spent by senderScript carrying the EMPP tag of a.
func TaggedTx(txid, senderScript string, a empp.Action, firstSeen int64) ledger.Tx {
	return ledger.Tx{
		TxID:          txid,
		Inputs:        []ledger.TxInput{{OutputScript: senderScript, Sats: 1000}},
		Outputs:       []ledger.TxOutput{{OutputScript: hex.EncodeToString(empp.Script(empp.Marshal(a)))}},
		TimeFirstSeen: firstSeen,
	}
}

// P2PKH returns a deterministic fake p2pkh output script for n.
func P2PKH(n byte) string {
	h := make([]byte, 20)
	for i := range h {
		h[i] = n
	}
	return "76a914" + hex.EncodeToString(h) + "88ac"
}
