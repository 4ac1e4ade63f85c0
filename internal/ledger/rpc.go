package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/R3E-Network/rental_settlement/internal/chain"
)

// RPCExecutor invokes the settlement contract directly on a ledger node.
type RPCExecutor struct {
	client       *chain.Client
	contractHash string
	wait         bool
	pollInterval time.Duration
}

// NewRPCExecutor creates an executor for the contract at contractHash. Every
// successful call is broadcast. When wait is set, receipts are only produced
// once the transaction executed in a block; otherwise acceptance by the node
// counts and the block number is left zero.
func NewRPCExecutor(client *chain.Client, contractHash string, wait bool) *RPCExecutor {
	return &RPCExecutor{
		client:       client,
		contractHash: contractHash,
		wait:         wait,
		pollInterval: chain.DefaultPollInterval,
	}
}

// Execute invokes fn with its positional contract arguments.
func (e *RPCExecutor) Execute(ctx context.Context, fn Function, params map[string]any) (Receipt, error) {
	args, err := contractArgs(fn, params)
	if err != nil {
		return Receipt{}, err
	}

	res, err := e.client.InvokeFunctionAndWait(ctx, e.contractHash, string(fn), args, e.wait, e.pollInterval)
	if res != nil && res.VMState != "" && res.VMState != chain.VMStateHalt {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		return Receipt{TransactionHash: res.TxHash, Status: ReceiptFailed, Message: msg}, nil
	}
	if err != nil {
		var rpcErr *chain.RPCError
		switch {
		case errors.Is(err, chain.ErrUnsigned):
			return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		case errors.As(err, &rpcErr):
			return Receipt{}, &RemoteError{Message: rpcErr.Error()}
		}
		return Receipt{}, err
	}

	gas, err := strconv.ParseUint(res.GasConsumed, 10, 64)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: gas consumed %q: %v", ErrMalformedResponse, res.GasConsumed, err)
	}

	return Receipt{
		TransactionHash: res.TxHash,
		Status:          ReceiptSuccess,
		BlockNumber:     res.BlockHeight,
		GasUsed:         gas,
	}, nil
}

var contractSignatures = map[Function][]struct {
	name string
	typ  string
}{
	FunctionCreateAgreement:    {{"owner", "String"}, {"rentAmount", "Integer"}, {"deposit", "Integer"}},
	FunctionPayRent:            {{"agreementId", "Integer"}, {"amount", "Integer"}},
	FunctionProcessPayment:     {{"agreementId", "Integer"}, {"amount", "Integer"}},
	FunctionTerminateAgreement: {{"agreementId", "Integer"}},
}

func contractArgs(fn Function, params map[string]any) ([]chain.ContractParam, error) {
	sig, ok := contractSignatures[fn]
	if !ok {
		return nil, fmt.Errorf("%w: unknown function %q", ErrInvalidRequest, fn)
	}
	args := make([]chain.ContractParam, 0, len(sig))
	for _, p := range sig {
		v, ok := params[p.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %s", ErrInvalidRequest, fn, p.name)
		}
		args = append(args, chain.ContractParam{Type: p.typ, Value: fmt.Sprint(v)})
	}
	return args, nil
}
