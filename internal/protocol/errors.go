package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoSchema     = "E_PROTO_SCHEMA"

	// Principal state.
	ErrNotRegistered  = "E_NOT_REGISTERED"
	ErrNotMember      = "E_NOT_MEMBER"
	ErrSessionExpired = "E_SESSION_EXPIRED"

	// Rule/action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNotEligible   = "E_NOT_ELIGIBLE"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrPenalty       = "E_PENALTY"
	ErrConflict      = "E_CONFLICT"

	// Collaborators.
	ErrLedgerUnavailable = "E_LEDGER_UNAVAILABLE"
	ErrBroadcast         = "E_BROADCAST"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrProtoSchema:       {},
	ErrNotRegistered:     {},
	ErrNotMember:         {},
	ErrSessionExpired:    {},
	ErrBadRequest:        {},
	ErrNoPermission:      {},
	ErrNoResource:        {},
	ErrInvalidTarget:     {},
	ErrNotEligible:       {},
	ErrRateLimit:         {},
	ErrPenalty:           {},
	ErrConflict:          {},
	ErrLedgerUnavailable: {},
	ErrBroadcast:         {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
