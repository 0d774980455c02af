package ledger

import (
	"context"
	"fmt"
)

// GetBalance sums the token atoms held at address for tokenID.
func GetBalance(ctx context.Context, src UtxoSource, address, tokenID string) (uint64, error) {
	utxos, err := src.Utxos(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("%w: utxos %s: %v", ErrUnavailable, address, err)
	}
	return SumToken(utxos, tokenID), nil
}

// SumToken aggregates atoms of tokenID over a utxo snapshot.
func SumToken(utxos []Utxo, tokenID string) uint64 {
	var total uint64
	for _, u := range utxos {
		if u.Token == nil || u.Token.TokenID != tokenID || u.Token.IsMintBaton {
			continue
		}
		total += u.Token.Atoms
	}
	return total
}

// HasReceivedToken reports whether the address already shows a receipt of
// tokenID: either a current utxo holding it, or a recent history entry paying
// it to script. It is the claim path's "first time only" check.
func HasReceivedToken(ctx context.Context, c Client, address, script, tokenID string) (bool, error) {
	utxos, err := c.Utxos(ctx, address)
	if err != nil {
		return false, fmt.Errorf("%w: utxos %s: %v", ErrUnavailable, address, err)
	}
	for _, u := range utxos {
		if u.Token != nil && u.Token.TokenID == tokenID {
			return true, nil
		}
	}
	for p := 0; ; p++ {
		page, err := c.History(ctx, address, p, HistoryPageSize)
		if err != nil {
			return false, fmt.Errorf("%w: history %s page %d: %v", ErrUnavailable, address, p, err)
		}
		if paysToken(page.Txs, script, tokenID) {
			return true, nil
		}
		if len(page.Txs) == 0 || p+1 >= page.NumPages {
			return false, nil
		}
	}
}

func paysToken(txs []Tx, script, tokenID string) bool {
	for _, tx := range txs {
		for _, out := range tx.Outputs {
			if out.Token != nil && out.Token.TokenID == tokenID && sameScript(out.OutputScript, script) {
				return true
			}
		}
	}
	return false
}
