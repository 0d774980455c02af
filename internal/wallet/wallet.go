// Package wallet is the write side: key derivation by registration index and
// token transaction build/broadcast, both delegated to a signer service.
package wallet

import (
	"context"
	"errors"
	"strings"
)

var ErrBroadcast = errors.New("broadcast failed")

// Account is a derived signing account.
type Account struct {
	Index   uint32 `json:"index"`
	Address string `json:"address"`
	Script  string `json:"output_script"`
}

type Output struct {
	Address string `json:"address"`
	Atoms   uint64 `json:"atoms,string"`
}

// SendRequest asks the signer to spend FromIndex's token utxos into Outputs,
// embedding EMPP as an extra EMPP push next to the token section.
type SendRequest struct {
	FromIndex uint32   `json:"from_index"`
	TokenID   string   `json:"token_id"`
	Outputs   []Output `json:"outputs"`
	EMPP      []byte   `json:"empp"`
}

type SendResult struct {
	TxID string `json:"txid"`
}

type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

type Keys interface {
	Derive(ctx context.Context, index uint32) (Account, error)
}

// BroadcastError carries the error list returned by a failed broadcast.
type BroadcastError struct {
	Errors []string
}

func (e *BroadcastError) Error() string {
	if len(e.Errors) == 0 {
		return ErrBroadcast.Error()
	}
	return ErrBroadcast.Error() + ": " + strings.Join(e.Errors, "; ")
}

func (e *BroadcastError) Unwrap() error { return ErrBroadcast }
