package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval is the default interval for polling the application log.
const DefaultPollInterval = 2 * time.Second

// InvokeFunction invokes a contract function.
func (c *Client) InvokeFunction(ctx context.Context, scriptHash string, method string, params []ContractParam) (*InvokeResult, error) {
	if params == nil {
		params = []ContractParam{}
	}
	result, err := c.Call(ctx, "invokefunction", []interface{}{scriptHash, method, params})
	if err != nil {
		return nil, err
	}

	var invokeResult InvokeResult
	if err := json.Unmarshal(result, &invokeResult); err != nil {
		return nil, err
	}
	return &invokeResult, nil
}

// WaitForApplicationLog polls until the application log is available or ctx is done.
// A missing transaction is treated as transient.
func (c *Client) WaitForApplicationLog(ctx context.Context, txHash string, pollInterval time.Duration) (*ApplicationLog, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			log, err := c.GetApplicationLog(ctx, txHash)
			if err != nil {
				if isNotFoundError(err) {
					continue
				}
				return nil, err
			}
			return log, nil
		}
	}
}

// ErrUnsigned is returned when the node answers an invocation without a
// signed transaction, so there is nothing to broadcast.
var ErrUnsigned = errors.New("invocation returned no signed transaction")

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, tx string) (string, error) {
	result, err := c.Call(ctx, "sendrawtransaction", []interface{}{tx})
	if err != nil {
		return "", err
	}

	var response struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return "", err
	}
	if response.Hash == "" {
		return "", errors.New("sendrawtransaction returned no hash")
	}
	return response.Hash, nil
}

// GetTransactionHeight returns the index of the block holding txHash.
func (c *Client) GetTransactionHeight(ctx context.Context, txHash string) (uint64, error) {
	result, err := c.Call(ctx, "gettransactionheight", []interface{}{txHash})
	if err != nil {
		return 0, err
	}

	var height uint64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// InvokeFunctionAndWait test-runs a contract function, broadcasts the signed
// transaction the node built for it and, when wait is set, polls for its
// application log and block. The caller's context bounds the wait.
func (c *Client) InvokeFunctionAndWait(ctx context.Context, contractHash, method string, params []ContractParam, wait bool, pollInterval time.Duration) (*TxResult, error) {
	invokeResult, err := c.InvokeFunction(ctx, contractHash, method, params)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	result := &TxResult{
		VMState:     invokeResult.State,
		GasConsumed: invokeResult.GasConsumed,
	}
	if invokeResult.State != VMStateHalt {
		return result, fmt.Errorf("%s faulted: %s", method, invokeResult.Exception)
	}
	if invokeResult.Tx == "" {
		return result, fmt.Errorf("%s: %w", method, ErrUnsigned)
	}

	hash, err := c.SendRawTransaction(ctx, invokeResult.Tx)
	if err != nil {
		return result, fmt.Errorf("broadcast %s: %w", method, err)
	}
	result.TxHash = hash
	if !wait {
		return result, nil
	}

	appLog, err := c.WaitForApplicationLog(ctx, hash, pollInterval)
	if err != nil {
		return result, fmt.Errorf("wait for %s execution: %w", method, err)
	}
	result.AppLog = appLog
	if len(appLog.Executions) > 0 {
		exec := appLog.Executions[0]
		result.VMState = exec.VMState
		result.GasConsumed = exec.GasConsumed
		if exec.VMState != VMStateHalt {
			return result, fmt.Errorf("%s faulted on chain: %s", method, exec.Exception)
		}
	}

	height, err := c.GetTransactionHeight(ctx, hash)
	if err != nil {
		return result, fmt.Errorf("locate %s transaction: %w", method, err)
	}
	result.BlockHeight = height
	return result, nil
}
