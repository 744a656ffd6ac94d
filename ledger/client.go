// Package ledger is a minimal Sui JSON-RPC client: it reads the current epoch
// and submits signed transactions. Everything else about the chain lives
// outside this module.
package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const (
	methodSystemState = "suix_getLatestSuiSystemState"
	methodExecute     = "sui_executeTransactionBlock"
)

var ErrSubmissionRejected = errors.New("ledger rejected transaction")

// Client talks to a Sui fullnode.
type Client struct {
	url    string
	client *http.Client
	nextID atomic.Uint64
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// ExecuteResult is the subset of the execution response callers care about.
type ExecuteResult struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		} `json:"status"`
	} `json:"effects,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, "marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read rpc response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: status %d: %s", method, resp.StatusCode, raw)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return errors.Wrap(err, "decode rpc response")
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(decoded.Result, out), "decode rpc result")
}

// CurrentEpoch returns the epoch of the latest system state.
func (c *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	var state struct {
		Epoch string `json:"epoch"`
	}
	if err := c.call(ctx, methodSystemState, []any{}, &state); err != nil {
		return 0, err
	}
	epoch, err := strconv.ParseUint(state.Epoch, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse epoch %q", state.Epoch)
	}
	return epoch, nil
}

// ExecuteTransactionBlock submits txBytes with the given serialized
// signatures. A transport failure is returned as is; anything the ledger
// itself refuses is wrapped in ErrSubmissionRejected.
func (c *Client) ExecuteTransactionBlock(ctx context.Context, txBytes []byte, signatures []string) (*ExecuteResult, error) {
	params := []any{
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		map[string]bool{"showEffects": true},
		"WaitForLocalExecution",
	}

	var result ExecuteResult
	err := c.call(ctx, methodExecute, params, &result)
	var rerr *rpcError
	if errors.As(err, &rerr) {
		return nil, errors.Wrap(ErrSubmissionRejected, rerr.Message)
	}
	if err != nil {
		return nil, err
	}
	if result.Effects != nil && result.Effects.Status.Status == "failure" {
		return &result, errors.Wrap(ErrSubmissionRejected, result.Effects.Status.Error)
	}
	return &result, nil
}
