package store

import (
	"context"
	"database/sql"

	"overmind.cash/internal/overmind"
)

// RecentTransfers returns up to limit audit entries, newest first.
func (s *SQLite) RecentTransfers(ctx context.Context, limit int) ([]overmind.TransferEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, time_ms, action, code, msg_id, from_user, from_address, to_user, to_address, atoms, txid, error
		FROM transfers ORDER BY time_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []overmind.TransferEntry
	for rows.Next() {
		var (
			e                  overmind.TransferEntry
			code, msgID, atoms int64
			txid, errText      sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Time, &e.Action, &code, &msgID, &e.FromUser, &e.FromAddress, &e.ToUser, &e.ToAddress, &atoms, &txid, &errText); err != nil {
			return nil, err
		}
		e.Code = uint8(code)
		e.MsgID = uint32(msgID)
		e.Atoms = uint64(atoms)
		e.TxID = txid.String
		e.Error = errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}
