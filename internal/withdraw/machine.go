// Package withdraw implements the two-step withdrawal: Propose records a
// validated pending withdrawal, Confirm executes it, Cancel drops it.
package withdraw

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"overmind.cash/internal/gate"
	"overmind.cash/internal/registry"
	"overmind.cash/internal/rules"
)

var ErrSessionExpired = errors.New("withdrawal session expired")

// Authorizer is satisfied by *gate.Gate.
type Authorizer interface {
	Withdraw(ctx context.Context, p registry.Principal, destination string, amount uint64) (gate.Decision, error)
}

// Executor broadcasts planned transfers and returns their txids in order.
type Executor interface {
	Execute(ctx context.Context, transfers []rules.Transfer) ([]string, error)
}

type Machine struct {
	store    Store
	auth     Authorizer
	exec     Executor
	validate func(string) error
	now      func() time.Time
	log      *log.Logger

	locks userLocks
}

type Option func(*Machine)

// WithValidator replaces ValidateAddress as the destination check.
func WithValidator(fn func(string) error) Option {
	return func(m *Machine) { m.validate = fn }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func New(store Store, auth Authorizer, exec Executor, logger *log.Logger, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		auth:     auth,
		exec:     exec,
		validate: ValidateAddress,
		now:      time.Now,
		log:      logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Propose validates the request and records it as the user's only pending
// withdrawal, replacing any earlier one.
func (m *Machine) Propose(ctx context.Context, p registry.Principal, destination string, amount uint64) (Pending, error) {
	if err := m.validate(destination); err != nil {
		return Pending{}, err
	}
	unlock := m.locks.lock(p.UserID)
	defer unlock()

	d, err := m.auth.Withdraw(ctx, p, destination, amount)
	if err != nil {
		return Pending{}, err
	}
	if !d.Granted() {
		return Pending{}, d.Error()
	}
	pending := Pending{
		UserID:      p.UserID,
		Destination: destination,
		Amount:      amount,
		Source:      p.Address,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.Set(ctx, pending); err != nil {
		return Pending{}, fmt.Errorf("store pending withdrawal: %w", err)
	}
	return pending, nil
}

// Result reports a confirmed withdrawal.
type Result struct {
	Pending Pending
	TxIDs   []string
}

// Confirm executes the user's pending withdrawal. The pending entry is removed
// before the transfer runs, whatever its outcome; a missing entry yields
// ErrSessionExpired and no transfer.
func (m *Machine) Confirm(ctx context.Context, p registry.Principal) (Result, error) {
	unlock := m.locks.lock(p.UserID)
	defer unlock()

	pending, ok, err := m.store.Get(ctx, p.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("load pending withdrawal: %w", err)
	}
	if !ok {
		return Result{}, ErrSessionExpired
	}
	if err := m.store.Delete(ctx, p.UserID); err != nil {
		return Result{}, fmt.Errorf("clear pending withdrawal: %w", err)
	}

	res := Result{Pending: pending}
	d, err := m.auth.Withdraw(ctx, p, pending.Destination, pending.Amount)
	if err != nil {
		return res, err
	}
	if !d.Granted() {
		return res, d.Error()
	}
	txids, err := m.exec.Execute(ctx, d.Transfers)
	res.TxIDs = txids
	if err != nil {
		m.logf("withdraw %d HP for %d to %s failed: %v", pending.Amount, p.UserID, pending.Destination, err)
		return res, err
	}
	m.logf("withdraw %d HP for %d to %s: %v", pending.Amount, p.UserID, pending.Destination, txids)
	return res, nil
}

// Cancel drops the pending withdrawal. It reports whether one existed.
func (m *Machine) Cancel(ctx context.Context, userID int64) (bool, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	_, ok, err := m.store.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load pending withdrawal: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := m.store.Delete(ctx, userID); err != nil {
		return false, fmt.Errorf("clear pending withdrawal: %w", err)
	}
	return true, nil
}

// Pending returns the user's current pending withdrawal, if any.
func (m *Machine) Pending(ctx context.Context, userID int64) (Pending, bool, error) {
	return m.store.Get(ctx, userID)
}

func (m *Machine) logf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}
