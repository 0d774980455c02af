package tuning

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env carries endpoints and secrets that never live in economy.yaml.
type Env struct {
	LedgerURL     string `env:"OVERMIND_LEDGER_URL" envDefault:"https://chronik.e.cash"`
	WalletURL     string `env:"OVERMIND_WALLET_URL" envDefault:"http://127.0.0.1:8091"`
	WalletToken   string `env:"OVERMIND_WALLET_TOKEN"`
	AdminWebhook  string `env:"OVERMIND_ADMIN_WEBHOOK"`
	MembersURL    string `env:"OVERMIND_MEMBERS_URL"`
	EventsToken   string `env:"OVERMIND_EVENTS_TOKEN"`
	TokenID       string `env:"OVERMIND_TOKEN_ID"`
	TreasuryIndex uint32 `env:"OVERMIND_TREASURY_INDEX" envDefault:"0"`
	DataDir       string `env:"OVERMIND_DATA" envDefault:"./data"`
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply overrides tuning fields that may come from the environment.
func (e Env) Apply(t *Tuning) {
	if e.TokenID != "" {
		t.TokenID = e.TokenID
	}
	t.Normalize()
}
