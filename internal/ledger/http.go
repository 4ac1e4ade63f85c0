package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/rental_settlement/internal/httputil"
)

// TransactionPath is the ledger gateway's transaction endpoint.
const TransactionPath = "/api/blockchain/transaction"

type transactionRequest struct {
	FunctionName string         `json:"functionName"`
	Parameters   map[string]any `json:"parameters"`
}

// HTTPExecutor talks to a ledger gateway service over REST.
type HTTPExecutor struct {
	client *httputil.ServiceClient
}

// NewHTTPExecutor creates an executor using client.
func NewHTTPExecutor(client *httputil.ServiceClient) *HTTPExecutor {
	return &HTTPExecutor{client: client}
}

// Execute posts the call and decodes the wrapped receipt.
func (e *HTTPExecutor) Execute(ctx context.Context, fn Function, params map[string]any) (Receipt, error) {
	resp, err := e.client.Post(ctx, TransactionPath, transactionRequest{FunctionName: string(fn), Parameters: params})
	if err != nil {
		return Receipt{}, err
	}

	body, err := httputil.ReadBody(resp)
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.Body
		if gjson.ValidBytes(body) {
			if m := gjson.GetBytes(body, "message"); m.Exists() {
				msg = m.String()
			}
		}
		return Receipt{}, &RemoteError{StatusCode: statusErr.StatusCode, Message: msg}
	}
	if err != nil {
		return Receipt{}, err
	}

	if !gjson.ValidBytes(body) {
		return Receipt{}, fmt.Errorf("%w: body is not JSON", ErrMalformedResponse)
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		return Receipt{}, fmt.Errorf("%w: missing data object", ErrMalformedResponse)
	}

	return Receipt{
		TransactionHash: data.Get("transactionHash").String(),
		Status:          data.Get("status").String(),
		BlockNumber:     data.Get("blockNumber").Uint(),
		GasUsed:         data.Get("gasUsed").Uint(),
		Message:         gjson.GetBytes(body, "message").String(),
	}, nil
}
