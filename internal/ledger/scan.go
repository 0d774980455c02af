package ledger

import (
	"context"
	"log"
	"time"

	"overmind.cash/internal/empp"
)

const (
	// HistoryPageSize is the page size used for every history walk.
	HistoryPageSize = 25
	// ActionWindow is the trailing window for privileged actions.
	ActionWindow = 24 * time.Hour
)

// Query asks whether SenderScript authored a tx tagged Code within Window,
// looking at the history of Address.
type Query struct {
	Address      string
	SenderScript string
	Code         empp.Code
	Window       time.Duration
	Now          time.Time
}

// Scanner answers recency questions from on-chain history.
type Scanner struct {
	pager    HistoryPager
	log      *log.Logger
	pageSize int
}

func NewScanner(pager HistoryPager, logger *log.Logger) *Scanner {
	return &Scanner{pager: pager, log: logger, pageSize: HistoryPageSize}
}

// SetPageSize overrides the history page size; n <= 0 keeps the default.
func (s *Scanner) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

// HasRecentAction walks history newest-first and reports whether a matching
// tagged tx exists inside the window. Any fetch error fails open (false):
// an unreachable indexer must not lock users out of respawn or withdraw.
func (s *Scanner) HasRecentAction(ctx context.Context, q Query) bool {
	if q.Window <= 0 {
		q.Window = ActionWindow
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	cutoff := q.Now.Add(-q.Window).Unix()

	for page := 0; ; page++ {
		hp, err := s.pager.History(ctx, q.Address, page, s.pageSize)
		if err != nil {
			s.logf("history %s page %d: %v (failing open)", q.Address, page, err)
			return false
		}
		found, stop := scanPage(hp.Txs, q, cutoff)
		if found {
			return true
		}
		if stop || len(hp.Txs) == 0 || page+1 >= hp.NumPages {
			return false
		}
	}
}

// scanPage checks one page. stop is set once a tx older than cutoff is seen;
// history is newest-first so nothing after it can match.
func scanPage(txs []Tx, q Query, cutoff int64) (found, stop bool) {
	for _, tx := range txs {
		// Unknown time is treated as not expired.
		if ts := tx.EffectiveTime(); ts != 0 && ts < cutoff {
			return false, true
		}
		if !tx.SpentBy(q.SenderScript) {
			continue
		}
		script, ok := tx.DataOutput()
		if !ok {
			continue
		}
		tag, ok := empp.FindAction(script)
		if !ok {
			continue
		}
		if tag.Code == q.Code {
			return true, false
		}
	}
	return false, false
}

func (s *Scanner) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
