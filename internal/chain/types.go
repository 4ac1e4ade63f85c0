package chain

import (
	"encoding/json"
	"fmt"
)

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ContractParam is an argument to invokefunction.
type ContractParam struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// IntegerParam builds an Integer argument from its decimal string form.
func IntegerParam(v string) ContractParam {
	return ContractParam{Type: "Integer", Value: v}
}

// StringParam builds a String argument.
func StringParam(v string) ContractParam {
	return ContractParam{Type: "String", Value: v}
}

// StackItem is a VM stack item.
type StackItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// InvokeResult is the result of invokefunction.
type InvokeResult struct {
	Script      string      `json:"script"`
	State       string      `json:"state"`
	GasConsumed string      `json:"gasconsumed"`
	Exception   string      `json:"exception,omitempty"`
	Stack       []StackItem `json:"stack"`
	Tx          string      `json:"tx,omitempty"`
}

// Execution is one entry of an application log.
type Execution struct {
	Trigger     string      `json:"trigger"`
	VMState     string      `json:"vmstate"`
	GasConsumed string      `json:"gasconsumed"`
	Exception   string      `json:"exception,omitempty"`
	Stack       []StackItem `json:"stack"`
}

// ApplicationLog is the result of getapplicationlog.
type ApplicationLog struct {
	TxHash     string      `json:"txid"`
	Executions []Execution `json:"executions"`
}

// TxResult summarises a broadcast invocation. BlockHeight is only known
// once the transaction has been waited for.
type TxResult struct {
	TxHash      string
	VMState     string
	GasConsumed string
	BlockHeight uint64
	AppLog      *ApplicationLog
}

// VMStateHalt marks a successful VM execution.
const VMStateHalt = "HALT"
