package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ClientName      string     `json:"client_name"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ChatID          int64  `json:"chat_id"`
	TokenID         string `json:"token_id"`
}

// REACTION (client -> server): the reaction set of one user on one message
// changed from OldReaction to NewReaction. Emoji entries are unicode emoji or
// custom emoji ids.
type ReactionMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	EventID         string   `json:"event_id,omitempty"`
	ChatID          int64    `json:"chat_id"`
	MsgID           int64    `json:"msg_id"`
	UserID          int64    `json:"user_id"`
	Username        string   `json:"username,omitempty"`
	OldReaction     []string `json:"old_reaction"`
	NewReaction     []string `json:"new_reaction"`
	Date            int64    `json:"date,omitempty"`
}

// Added returns the emoji present in NewReaction but not OldReaction.
func (m ReactionMsg) Added() []string {
	old := make(map[string]struct{}, len(m.OldReaction))
	for _, e := range m.OldReaction {
		old[e] = struct{}{}
	}
	var out []string
	for _, e := range m.NewReaction {
		if _, ok := old[e]; ok {
			continue
		}
		old[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Message kinds.
const (
	KindText     = "text"
	KindPhoto    = "photo"
	KindVideo    = "video"
	KindDocument = "document"
	KindSticker  = "sticker"
	KindOther    = "other"
)

// MESSAGE (client -> server)
type MessageMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	EventID         string   `json:"event_id,omitempty"`
	ChatID          int64    `json:"chat_id"`
	MsgID           int64    `json:"msg_id"`
	UserID          int64    `json:"user_id"`
	Username        string   `json:"username,omitempty"`
	Kind            string   `json:"kind"`
	Text            string   `json:"text,omitempty"`
	Caption         string   `json:"caption,omitempty"`
	FileName        string   `json:"file_name,omitempty"`
	StickerEmoji    string   `json:"sticker_emoji,omitempty"`
	ReplyTo         *ReplyTo `json:"reply_to,omitempty"`
	Date            int64    `json:"date,omitempty"`
}

// ReplyTo names the replied-to message. UserID is zero when the adapter
// does not know the author.
type ReplyTo struct {
	MsgID  int64 `json:"msg_id"`
	UserID int64 `json:"user_id,omitempty"`
}

// Content is the stored text of a message: text or caption when present,
// otherwise a bracketed placeholder naming the media kind.
func (m MessageMsg) Content() string {
	switch m.Kind {
	case KindText:
		return m.Text
	case KindPhoto:
		return orPlaceholder(m.Caption, "[Photo]")
	case KindVideo:
		return orPlaceholder(m.Caption, "[Video]")
	case KindDocument:
		name := m.FileName
		if name == "" {
			name = "file"
		}
		return orPlaceholder(m.Caption, "[Document: "+name+"]")
	case KindSticker:
		return orPlaceholder(m.StickerEmoji, "[Sticker: sticker]")
	default:
		if m.Text != "" {
			return m.Text
		}
		return orPlaceholder(m.Caption, "[Non-text message]")
	}
}

func orPlaceholder(s, placeholder string) string {
	if s != "" {
		return s
	}
	return placeholder
}

// Commands.
const (
	CmdRegister = "register"
	CmdClaim    = "claim"
	CmdHealth   = "health"
	CmdRespawn  = "respawn"
	CmdWithdraw = "withdraw"
	CmdConfirm  = "confirm"
	CmdCancel   = "cancel"
	CmdStats    = "stats"
)

// COMMAND (client -> server)
type CommandMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	EventID         string   `json:"event_id,omitempty"`
	ChatID          int64    `json:"chat_id"`
	UserID          int64    `json:"user_id"`
	Username        string   `json:"username,omitempty"`
	Command         string   `json:"command"`
	Args            []string `json:"args,omitempty"`
}

// Result statuses.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusDenied  = "denied"
	StatusError   = "error"
)

// Result is the outcome of one action triggered by an event.
type Result struct {
	Action      string   `json:"action"`
	Status      string   `json:"status"`
	Code        string   `json:"code,omitempty"`
	Message     string   `json:"message,omitempty"`
	TxIDs       []string `json:"txids,omitempty"`
	Balance     *uint64  `json:"balance,omitempty"`
	Address     string   `json:"address,omitempty"`
	Amount      uint64   `json:"amount,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Stats       *Stats   `json:"stats,omitempty"`
}

type Stats struct {
	Users     int `json:"users"`
	Messages  int `json:"messages"`
	Likes     int `json:"likes"`
	Dislikes  int `json:"dislikes"`
	Reactions int `json:"reactions"`
}

// OUTCOME (server -> client)
type OutcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	EventID         string   `json:"event_id"`
	Accepted        bool     `json:"accepted"`
	Code            string   `json:"code,omitempty"`
	Message         string   `json:"message,omitempty"`
	Results         []Result `json:"results"`
}

// Reject builds a non-accepted OUTCOME for eventID.
func Reject(eventID, code, message string) OutcomeMsg {
	return OutcomeMsg{
		Type:            TypeOutcome,
		ProtocolVersion: Version,
		EventID:         eventID,
		Code:            code,
		Message:         message,
		Results:         []Result{},
	}
}
