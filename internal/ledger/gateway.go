package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// DefaultTimeout bounds a single ledger call when none is configured.
const DefaultTimeout = 30 * time.Second

// Observer is notified after every gateway call.
type Observer func(fn Function, result Result, elapsed time.Duration)

// Gateway wraps an Executor so that every call finishes within the timeout
// and yields a Result. It never returns an error and never panics.
type Gateway struct {
	exec    Executor
	timeout time.Duration
	log     *logger.Logger
	observe Observer
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithObserver registers a callback invoked after each call.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observe = o }
}

// NewGateway creates a gateway around exec.
func NewGateway(exec Executor, timeout time.Duration, log *logger.Logger, opts ...Option) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	g := &Gateway{exec: exec, timeout: timeout, log: log}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type execOutcome struct {
	receipt Receipt
	err     error
}

var errExecutorPanic = errors.New("executor panicked")

// Execute submits fn and reports the normalized outcome.
func (g *Gateway) Execute(ctx context.Context, fn Function, params map[string]any) Result {
	start := time.Now()
	result := g.execute(ctx, fn, params)
	elapsed := time.Since(start)

	entry := g.log.WithFields(logrus.Fields{
		"function": fn,
		"outcome":  Outcome(result),
		"elapsed":  elapsed,
	})
	switch r := result.(type) {
	case Confirmed:
		entry.WithField("tx_hash", r.TransactionHash).Info("ledger call confirmed")
	case Rejected:
		entry.WithField("reason", r.Reason).Warn("ledger call rejected")
	}

	if g.observe != nil {
		g.observe(fn, result, elapsed)
	}
	return result
}

func (g *Gateway) execute(ctx context.Context, fn Function, params map[string]any) Result {
	if !fn.Valid() {
		return Rejected{Kind: FailureInvalid, Reason: fmt.Sprintf("unknown function %q", fn)}
	}
	if g.exec == nil {
		return Rejected{Kind: FailureTransport, Reason: "no ledger executor configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execOutcome{err: fmt.Errorf("%w: %v", errExecutorPanic, r)}
			}
		}()
		receipt, err := g.exec.Execute(ctx, fn, params)
		done <- execOutcome{receipt: receipt, err: err}
	}()

	var out execOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = execOutcome{err: ctx.Err()}
	}

	if out.err != nil {
		return classify(out.err)
	}
	return fromReceipt(out.receipt)
}

func fromReceipt(r Receipt) Result {
	if r.Status != ReceiptSuccess {
		reason := fmt.Sprintf("ledger status %q", r.Status)
		if r.Message != "" {
			reason += ": " + r.Message
		}
		return Rejected{Kind: FailureReverted, Reason: reason}
	}
	if r.TransactionHash == "" {
		return Rejected{Kind: FailureMalformed, Reason: "ledger confirmed without a transaction hash"}
	}
	return Confirmed{TransactionHash: r.TransactionHash, BlockNumber: r.BlockNumber, GasUsed: r.GasUsed}
}

func classify(err error) Rejected {
	var remote *RemoteError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Rejected{Kind: FailureTimeout, Reason: "timeout: " + err.Error()}
	case errors.Is(err, errExecutorPanic):
		return Rejected{Kind: FailurePanic, Reason: err.Error()}
	case errors.Is(err, ErrInvalidRequest):
		return Rejected{Kind: FailureInvalid, Reason: err.Error()}
	case errors.Is(err, ErrMalformedResponse):
		return Rejected{Kind: FailureMalformed, Reason: err.Error()}
	case errors.As(err, &remote):
		return Rejected{Kind: FailureRemote, Reason: remote.Error()}
	default:
		return Rejected{Kind: FailureTransport, Reason: err.Error()}
	}
}
