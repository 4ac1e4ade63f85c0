// Package testutil provides common testing utilities and fake collaborators
// for settlement runs.
package testutil

import (
	"context"
	"sync"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/ledger"
)

// LedgerCall is one call seen by a MockLedger.
type LedgerCall struct {
	Function ledger.Function
	Params   map[string]any
	CtxErr   error
}

// MockLedger returns a fixed result and records every call.
type MockLedger struct {
	mu     sync.Mutex
	result ledger.Result
	calls  []LedgerCall
	hook   func(ctx context.Context)
}

// NewMockLedger creates a ledger that always answers result.
func NewMockLedger(result ledger.Result) *MockLedger {
	return &MockLedger{result: result}
}

// Confirming returns a ledger that confirms every call with hash.
func Confirming(hash string) *MockLedger {
	return NewMockLedger(ledger.Confirmed{TransactionHash: hash})
}

// Rejecting returns a ledger that rejects every call with reason.
func Rejecting(reason string) *MockLedger {
	return NewMockLedger(ledger.Rejected{Kind: ledger.FailureRemote, Reason: reason})
}

// OnCall registers a hook run before the result is returned.
func (m *MockLedger) OnCall(hook func(ctx context.Context)) *MockLedger {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
	return m
}

// Execute implements the settlement ledger port.
func (m *MockLedger) Execute(ctx context.Context, fn ledger.Function, params map[string]any) ledger.Result {
	m.mu.Lock()
	hook := m.hook
	m.calls = append(m.calls, LedgerCall{Function: fn, Params: params, CtxErr: ctx.Err()})
	result := m.result
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	return result
}

// Calls returns a copy of the recorded calls.
func (m *MockLedger) Calls() []LedgerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LedgerCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// EventRecorder captures published notification events.
type EventRecorder struct {
	mu     sync.Mutex
	events []settlement.NotificationEvent
	err    error
}

// NewEventRecorder creates a recorder. A non-nil err is returned from every Publish.
func NewEventRecorder(err error) *EventRecorder {
	return &EventRecorder{err: err}
}

// Publish records event.
func (r *EventRecorder) Publish(_ context.Context, event settlement.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []settlement.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]settlement.NotificationEvent, len(r.events))
	copy(out, r.events)
	return out
}

// StaticDirectory serves fixed profiles; unknown ids are absent.
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[int64]settlement.Profile
}

// NewStaticDirectory creates a directory with the given profiles.
func NewStaticDirectory(profiles ...settlement.Profile) *StaticDirectory {
	d := &StaticDirectory{profiles: make(map[int64]settlement.Profile)}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

// Lookup implements directory.Directory.
func (d *StaticDirectory) Lookup(_ context.Context, userID int64) (settlement.Profile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[userID]
	return p, ok
}
