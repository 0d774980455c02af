// Package wallettest provides a signer double that settles sends against a
// ledgertest.Fake, so balances and history reflect every broadcast.
package wallettest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/ledger"
	"overmind.cash/internal/ledger/ledgertest"
	"overmind.cash/internal/wallet"
)

type Fake struct {
	mu       sync.Mutex
	ledger   *ledgertest.Fake
	accounts map[uint32]wallet.Account
	seq      int

	Sent []wallet.SendRequest

	// SendErr / DeriveErr force failures when set.
	SendErr   error
	DeriveErr error

	Now func() time.Time
}

func New(l *ledgertest.Fake) *Fake {
	return &Fake{ledger: l, accounts: map[uint32]wallet.Account{}, Now: time.Now}
}

// Account returns the deterministic account for index without recording it.
func Account(index uint32) wallet.Account {
	return wallet.Account{
		Index:   index,
		Address: fmt.Sprintf("ecash:fake%d", index),
		Script:  ledgertest.P2PKH(byte(index + 1)),
	}
}

func (f *Fake) Derive(_ context.Context, index uint32) (wallet.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeriveErr != nil {
		return wallet.Account{}, f.DeriveErr
	}
	a := Account(index)
	f.accounts[index] = a
	return a, nil
}

func (f *Fake) Send(ctx context.Context, req wallet.SendRequest) (wallet.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return wallet.SendResult{}, f.SendErr
	}
	from, ok := f.accounts[req.FromIndex]
	if !ok {
		from = Account(req.FromIndex)
	}
	f.seq++
	txid := fmt.Sprintf("%064x", f.seq)
	f.Sent = append(f.Sent, req)

	if f.ledger == nil {
		return wallet.SendResult{TxID: txid}, nil
	}
	var total uint64
	for _, o := range req.Outputs {
		total += o.Atoms
	}
	bal, err := ledger.GetBalance(ctx, f.ledger, from.Address, req.TokenID)
	if err != nil {
		return wallet.SendResult{}, err
	}
	if total > bal {
		return wallet.SendResult{}, &wallet.BroadcastError{Errors: []string{"insufficient token balance"}}
	}
	f.ledger.SetTokenBalance(from.Address, req.TokenID, bal-total)

	tx := ledger.Tx{TxID: txid, Inputs: []ledger.TxInput{{OutputScript: from.Script}}, TimeFirstSeen: f.Now().Unix()}
	if a := empp.Parse(req.EMPP); a != nil {
		tx = ledgertest.TaggedTx(txid, from.Script, a, f.Now().Unix())
	}
	for _, o := range req.Outputs {
		if to, ok := f.byAddress(o.Address); ok {
			tx.Outputs = append(tx.Outputs, ledger.TxOutput{
				OutputScript: to.Script,
				Sats:         546,
				Token:        &ledger.Token{TokenID: req.TokenID, Atoms: o.Atoms},
			})
		}
	}
	f.ledger.Prepend(from.Address, tx)
	for _, o := range req.Outputs {
		cur, err := ledger.GetBalance(ctx, f.ledger, o.Address, req.TokenID)
		if err != nil {
			return wallet.SendResult{}, err
		}
		f.ledger.SetTokenBalance(o.Address, req.TokenID, cur+o.Atoms)
		if o.Address != from.Address {
			f.ledger.Prepend(o.Address, tx)
		}
	}
	return wallet.SendResult{TxID: txid}, nil
}

func (f *Fake) byAddress(addr string) (wallet.Account, bool) {
	for _, a := range f.accounts {
		if a.Address == addr {
			return a, true
		}
	}
	return wallet.Account{}, false
}

// SentCodes lists the action codes of every recorded send, in order.
func (f *Fake) SentCodes() []empp.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]empp.Code, 0, len(f.Sent))
	for _, r := range f.Sent {
		if a := empp.Parse(r.EMPP); a != nil {
			out = append(out, a.Code())
		}
	}
	return out
}
