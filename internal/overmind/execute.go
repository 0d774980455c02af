package overmind

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"overmind.cash/internal/empp"
	"overmind.cash/internal/rules"
	"overmind.cash/internal/wallet"
)

// TransferEntry is the audit record of one attempted transfer.
type TransferEntry struct {
	ID          string `json:"id"`
	Time        int64  `json:"time_ms"`
	Action      string `json:"action"`
	Code        uint8  `json:"code"`
	MsgID       uint32 `json:"msg_id,omitempty"`
	FromUser    int64  `json:"from_user,omitempty"`
	FromAddress string `json:"from_address"`
	ToUser      int64  `json:"to_user,omitempty"`
	ToAddress   string `json:"to_address"`
	Atoms       uint64 `json:"atoms"`
	TxID        string `json:"txid,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (e TransferEntry) OK() bool { return e.Error == "" }

// AuditSink records transfer attempts. Write errors are logged, never returned.
type AuditSink interface {
	WriteTransfer(e TransferEntry) error
}

// Execute broadcasts transfers in order, one transaction each, with the tag of
// the transfer's action embedded. The first failure stops the sequence; the
// txids of earlier transfers are returned alongside the error. Nothing is
// retried.
func (b *Bot) Execute(ctx context.Context, transfers []rules.Transfer) ([]string, error) {
	txids := make([]string, 0, len(transfers))
	for _, t := range transfers {
		entry := b.entry(t)
		res, err := b.wallet.Send(ctx, wallet.SendRequest{
			FromIndex: t.From.Index,
			TokenID:   b.tu.TokenID,
			Outputs:   []wallet.Output{{Address: t.To.Address, Atoms: t.Atoms}},
			EMPP:      empp.Marshal(t.Action),
		})
		if err != nil {
			entry.Error = err.Error()
			b.record(ctx, entry)
			return txids, fmt.Errorf("%s transfer of %d HP: %w", t.Action.Code(), t.Atoms, err)
		}
		entry.TxID = res.TxID
		b.record(ctx, entry)
		txids = append(txids, res.TxID)
	}
	return txids, nil
}

func (b *Bot) entry(t rules.Transfer) TransferEntry {
	e := TransferEntry{
		ID:          uuid.NewString(),
		Time:        b.now().UnixMilli(),
		Action:      t.Action.Code().String(),
		Code:        uint8(t.Action.Code()),
		FromUser:    t.From.UserID,
		FromAddress: t.From.Address,
		ToUser:      t.To.UserID,
		ToAddress:   t.To.Address,
		Atoms:       t.Atoms,
	}
	if id, ok := empp.Subject(t.Action); ok {
		e.MsgID = id
	}
	return e
}

func (b *Bot) record(ctx context.Context, e TransferEntry) {
	if b.audit != nil {
		if err := b.audit.WriteTransfer(e); err != nil {
			b.logf("audit %s: %v", e.ID, err)
		}
	}
	if err := b.notifier.Notify(ctx, b.transferNotice(e)); err != nil {
		b.logf("notify %s: %v", e.ID, err)
	}
}
