package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/rental_settlement/internal/chain"
)

// fakeNode is a ledger node that signs invocations and records which RPC
// methods were called.
type fakeNode struct {
	mu      sync.Mutex
	methods []string
}

func (n *fakeNode) called() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.methods...)
}

func newRPCExecutor(t *testing.T, invoke map[string]interface{}, check func(params []interface{})) (*RPCExecutor, *fakeNode) {
	t.Helper()
	return newRPCExecutorWait(t, invoke, check, false)
}

func newRPCExecutorWait(t *testing.T, invoke map[string]interface{}, check func(params []interface{}), wait bool) (*RPCExecutor, *fakeNode) {
	t.Helper()
	node := &fakeNode{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chain.RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		node.mu.Lock()
		node.methods = append(node.methods, req.Method)
		node.mu.Unlock()

		var result interface{}
		switch req.Method {
		case "invokefunction":
			if check != nil {
				check(req.Params)
			}
			result = invoke
		case "sendrawtransaction":
			result = map[string]interface{}{"hash": "0xbroadcast"}
		case "getapplicationlog":
			result = map[string]interface{}{
				"txid":       "0xbroadcast",
				"executions": []map[string]interface{}{{"vmstate": "HALT", "gasconsumed": "9100"}},
			}
		case "gettransactionheight":
			result = 777
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
	}))
	t.Cleanup(server.Close)

	client, err := chain.NewClient(chain.Config{RPCURL: server.URL})
	require.NoError(t, err)
	exec := NewRPCExecutor(client, "0xcontract", wait)
	exec.pollInterval = time.Millisecond
	return exec, node
}

func TestRPCExecutorHalt(t *testing.T) {
	exec, node := newRPCExecutor(t, map[string]interface{}{"state": "HALT", "gasconsumed": "9000", "tx": "AAECsigned"}, func(params []interface{}) {
		require.Len(t, params, 3)
		assert.Equal(t, "createAgreement", params[1])
		args := params[2].([]interface{})
		require.Len(t, args, 3)
		assert.Equal(t, "String", args[0].(map[string]interface{})["type"])
		assert.Equal(t, "1000", args[1].(map[string]interface{})["value"])
	})

	receipt, err := exec.Execute(context.Background(), FunctionCreateAgreement,
		map[string]any{"owner": "0x2", "rentAmount": "1000", "deposit": "2000"})
	require.NoError(t, err)
	assert.Equal(t, ReceiptSuccess, receipt.Status)
	assert.Equal(t, "0xbroadcast", receipt.TransactionHash)
	assert.EqualValues(t, 9000, receipt.GasUsed)
	assert.Zero(t, receipt.BlockNumber, "block is unknown until the transaction is waited for")
	assert.Equal(t, []string{"invokefunction", "sendrawtransaction"}, node.called())
}

func TestRPCExecutorWaitReportsTransactionBlock(t *testing.T) {
	exec, node := newRPCExecutorWait(t, map[string]interface{}{"state": "HALT", "gasconsumed": "9000", "tx": "AAECsigned"}, nil, true)

	receipt, err := exec.Execute(context.Background(), FunctionPayRent, map[string]any{"agreementId": "5", "amount": "1"})
	require.NoError(t, err)
	assert.Equal(t, "0xbroadcast", receipt.TransactionHash)
	assert.EqualValues(t, 9100, receipt.GasUsed)
	assert.EqualValues(t, 777, receipt.BlockNumber)
	assert.Equal(t, []string{"invokefunction", "sendrawtransaction", "getapplicationlog", "gettransactionheight"}, node.called())
}

func TestRPCExecutorUnsignedInvocationIsNeverConfirmed(t *testing.T) {
	exec, node := newRPCExecutor(t, map[string]interface{}{"state": "HALT", "gasconsumed": "9000"}, nil)

	_, err := exec.Execute(context.Background(), FunctionPayRent, map[string]any{"agreementId": "5", "amount": "1"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, []string{"invokefunction"}, node.called())

	result := NewGateway(exec, time.Second, nil).Execute(context.Background(), FunctionPayRent, map[string]any{"agreementId": "5", "amount": "1"})
	rejected, ok := result.(Rejected)
	require.True(t, ok, "got %#v", result)
	assert.Equal(t, FailureInvalid, rejected.Kind)
}

func TestRPCExecutorMalformedGas(t *testing.T) {
	exec, _ := newRPCExecutor(t, map[string]interface{}{"state": "HALT", "gasconsumed": "lots", "tx": "AAEC"}, nil)

	_, err := exec.Execute(context.Background(), FunctionPayRent, map[string]any{"agreementId": "5", "amount": "1"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRPCExecutorFault(t *testing.T) {
	exec, _ := newRPCExecutor(t, map[string]interface{}{"state": "FAULT", "exception": "not active"}, nil)

	receipt, err := exec.Execute(context.Background(), FunctionPayRent, map[string]any{"agreementId": "5", "amount": "1"})
	require.NoError(t, err)
	assert.Equal(t, ReceiptFailed, receipt.Status)
	assert.Contains(t, receipt.Message, "not active")
}

func TestRPCExecutorMissingArgument(t *testing.T) {
	exec, _ := newRPCExecutor(t, nil, func([]interface{}) { t.Error("node must not be called") })

	_, err := exec.Execute(context.Background(), FunctionPayRent, map[string]any{"agreementId": "5"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}
