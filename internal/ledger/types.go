// Package ledger is the read side of the HP economy: transaction history and
// unspent outputs of an address as served by a chronik-style indexer, plus the
// balance reader and history scanner built on top of them.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"overmind.cash/internal/empp"
)

// ErrUnavailable wraps any failure to reach or parse the indexer.
var ErrUnavailable = errors.New("ledger unavailable")

type Token struct {
	TokenID     string `json:"token_id"`
	Atoms       uint64 `json:"atoms,string"`
	IsMintBaton bool   `json:"is_mint_baton,omitempty"`
}

type Outpoint struct {
	TxID   string `json:"txid"`
	OutIdx uint32 `json:"out_idx"`
}

type TxInput struct {
	PrevOut      Outpoint `json:"prev_out"`
	OutputScript string   `json:"output_script"`
	Sats         int64    `json:"sats,string"`
	Token        *Token   `json:"token,omitempty"`
}

type TxOutput struct {
	OutputScript string `json:"output_script"`
	Sats         int64  `json:"sats,string"`
	Token        *Token `json:"token,omitempty"`
}

type BlockMeta struct {
	Height    int32  `json:"height"`
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

type Tx struct {
	TxID          string     `json:"txid"`
	Inputs        []TxInput  `json:"inputs"`
	Outputs       []TxOutput `json:"outputs"`
	TimeFirstSeen int64      `json:"time_first_seen"`
	Block         *BlockMeta `json:"block,omitempty"`
}

// HistoryPage is one newest-first page of an address's history.
type HistoryPage struct {
	Txs      []Tx `json:"txs"`
	NumPages int  `json:"num_pages"`
	NumTxs   int  `json:"num_txs"`
}

type Utxo struct {
	Outpoint    Outpoint `json:"outpoint"`
	BlockHeight int32    `json:"block_height"`
	Sats        int64    `json:"sats,string"`
	Token       *Token   `json:"token,omitempty"`
}

type HistoryPager interface {
	History(ctx context.Context, address string, page, pageSize int) (HistoryPage, error)
}

type UtxoSource interface {
	Utxos(ctx context.Context, address string) ([]Utxo, error)
}

// Client is the full ledger query collaborator.
type Client interface {
	HistoryPager
	UtxoSource
}

// EffectiveTime returns the unix time used for recency checks: first-seen,
// else block time, else 0 (unknown).
func (tx Tx) EffectiveTime() int64 {
	if tx.TimeFirstSeen > 0 {
		return tx.TimeFirstSeen
	}
	if tx.Block != nil && tx.Block.Timestamp > 0 {
		return tx.Block.Timestamp
	}
	return 0
}

// SpentBy reports whether script funds at least one input of tx.
func (tx Tx) SpentBy(script string) bool {
	for _, in := range tx.Inputs {
		if sameScript(in.OutputScript, script) {
			return true
		}
	}
	return false
}

// DataOutput returns the decoded script of the first OP_RETURN output.
func (tx Tx) DataOutput() ([]byte, bool) {
	for _, out := range tx.Outputs {
		b, err := hex.DecodeString(out.OutputScript)
		if err != nil {
			continue
		}
		if empp.IsDataScript(b) {
			return b, true
		}
	}
	return nil, false
}

func sameScript(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
