package overmind

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Notice is an operational message for the admin channel.
type Notice struct {
	Kind  string         `json:"kind"`
	Text  string         `json:"text"`
	Entry *TransferEntry `json:"transfer,omitempty"`
}

const (
	NoticeTransfer = "transfer"
	NoticeFailure  = "failure"
	NoticeError    = "error"
)

type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// LogNotifier writes notices to a logger.
type LogNotifier struct{ log *log.Logger }

func NewLogNotifier(logger *log.Logger) *LogNotifier { return &LogNotifier{log: logger} }

func (n *LogNotifier) Notify(_ context.Context, no Notice) error {
	if n.log != nil {
		n.log.Printf("[%s] %s", no.Kind, no.Text)
	}
	return nil
}

// WebhookNotifier posts notices as JSON to an admin webhook.
type WebhookNotifier struct {
	url    string
	chatID int64
	client *http.Client
}

func NewWebhookNotifier(url string, adminChat int64, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{url: url, chatID: adminChat, client: &http.Client{Timeout: timeout}}
}

func (n *WebhookNotifier) Notify(ctx context.Context, no Notice) error {
	body, err := json.Marshal(struct {
		ChatID int64 `json:"chat_id,omitempty"`
		Notice
	}{ChatID: n.chatID, Notice: no})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}

// Usernames caches display names by user id for notice text. It never
// expires entries; a later Remember replaces the name.
type Usernames struct {
	mu sync.RWMutex
	m  map[int64]string
}

func NewUsernames() *Usernames { return &Usernames{m: map[int64]string{}} }

func (u *Usernames) Remember(userID int64, username string) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if userID == 0 || username == "" {
		return
	}
	u.mu.Lock()
	u.m[userID] = username
	u.mu.Unlock()
}

// Display returns "@name" when known, else "user <id>".
func (u *Usernames) Display(userID int64) string {
	u.mu.RLock()
	name, ok := u.m[userID]
	u.mu.RUnlock()
	if ok {
		return "@" + name
	}
	return fmt.Sprintf("user %d", userID)
}

func (b *Bot) who(userID int64, address string) string {
	if userID != 0 {
		return b.names.Display(userID)
	}
	if address == b.cfg.Treasury.Address {
		return "treasury"
	}
	return address
}

func (b *Bot) transferNotice(e TransferEntry) Notice {
	what := strings.ToLower(e.Action)
	if e.MsgID != 0 {
		what = fmt.Sprintf("%s on msg %d", what, e.MsgID)
	}
	from, to := b.who(e.FromUser, e.FromAddress), b.who(e.ToUser, e.ToAddress)
	if e.OK() {
		return Notice{Kind: NoticeTransfer, Entry: &e,
			Text: fmt.Sprintf("%s sent %d HP to %s (%s) tx %s", from, e.Atoms, to, what, e.TxID)}
	}
	return Notice{Kind: NoticeFailure, Entry: &e,
		Text: fmt.Sprintf("%s failed to send %d HP to %s (%s): %s", from, e.Atoms, to, what, e.Error)}
}

// reportError sends an unexpected error to the admin channel.
func (b *Bot) reportError(ctx context.Context, userID int64, op string, err error) {
	text := fmt.Sprintf("%s for %s: %v", op, b.names.Display(userID), err)
	if userID == 0 {
		text = fmt.Sprintf("%s: %v", op, err)
	}
	if nerr := b.notifier.Notify(ctx, Notice{Kind: NoticeError, Text: text}); nerr != nil {
		b.logf("notify error: %v", nerr)
	}
}
