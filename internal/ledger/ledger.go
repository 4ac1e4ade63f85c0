// Package ledger submits settlement operations to the external ledger and
// normalizes every outcome into a Confirmed or Rejected result.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Function names a ledger contract operation.
type Function string

const (
	FunctionCreateAgreement    Function = "createAgreement"
	FunctionPayRent            Function = "payRent"
	FunctionTerminateAgreement Function = "terminateAgreement"
	FunctionProcessPayment     Function = "processPayment"
)

// Valid reports whether f is a known ledger function.
func (f Function) Valid() bool {
	switch f {
	case FunctionCreateAgreement, FunctionPayRent, FunctionTerminateAgreement, FunctionProcessPayment:
		return true
	}
	return false
}

// Receipt status values reported by executors.
const (
	ReceiptSuccess = "SUCCESS"
	ReceiptFailed  = "FAILED"
)

// Receipt is the raw answer of a ledger transport.
type Receipt struct {
	TransactionHash string
	Status          string
	BlockNumber     uint64
	GasUsed         uint64
	Message         string
}

// Executor submits one function call to the ledger. Implementations may fail
// in any way; the Gateway folds all of it into a Result.
type Executor interface {
	Execute(ctx context.Context, fn Function, params map[string]any) (Receipt, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, fn Function, params map[string]any) (Receipt, error)

func (f ExecutorFunc) Execute(ctx context.Context, fn Function, params map[string]any) (Receipt, error) {
	return f(ctx, fn, params)
}

// Result is either Confirmed or Rejected.
type Result interface {
	isResult()
}

// Confirmed carries the ledger's transaction reference.
type Confirmed struct {
	TransactionHash string
	BlockNumber     uint64
	GasUsed         uint64
}

// FailureKind classifies a rejection.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureRemote    FailureKind = "remote"
	FailureMalformed FailureKind = "malformed"
	FailureReverted  FailureKind = "reverted"
	FailureInvalid   FailureKind = "invalid"
	FailurePanic     FailureKind = "panic"
)

// Rejected describes why the ledger did not confirm.
type Rejected struct {
	Kind   FailureKind
	Reason string
}

func (Confirmed) isResult() {}
func (Rejected) isResult()  {}

// Outcome returns a short label for r, used in logs and metrics.
func Outcome(r Result) string {
	switch v := r.(type) {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return string(v.Kind)
	}
	return "unknown"
}

// ErrMalformedResponse is returned by executors that cannot read the ledger's answer.
var ErrMalformedResponse = errors.New("malformed ledger response")

// ErrInvalidRequest is returned when a call cannot be encoded for the ledger.
var ErrInvalidRequest = errors.New("invalid ledger request")

// RemoteError is an error reported by the ledger itself.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ledger returned %d: %s", e.StatusCode, e.Message)
	}
	return "ledger error: " + e.Message
}
