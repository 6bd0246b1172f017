package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"tappay/internal/config"
)

// RPCClient submits transactions over JSON-RPC to a chain gateway.
type RPCClient struct {
	cfg        config.ChainConfig
	httpClient *http.Client
}

// NewRPCClient creates a chain client against the configured RPC endpoint.
func NewRPCClient(cfg config.ChainConfig) *RPCClient {
	return &RPCClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      string      `json:"id"`
}

type rpcResponse struct {
	Result *Receipt `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RPCClient) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "pay_submitTransfer",
		Params:  req,
		ID:      req.TransactionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chain submit failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chain gateway returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode chain response: %w", err)
	}
	if rpcResp.Error != nil {
		// -32000..-32099 is the gateway's rejection band; those never succeed
		// on retry.
		if rpcResp.Error.Code <= -32000 && rpcResp.Error.Code > -32100 {
			return nil, fmt.Errorf("%w: %s", ErrRejected, rpcResp.Error.Message)
		}
		return nil, fmt.Errorf("chain error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil || rpcResp.Result.TxHash == "" {
		return nil, fmt.Errorf("chain returned empty receipt")
	}
	return rpcResp.Result, nil
}

func (c *RPCClient) EstimateGasFee(amount float64) float64 {
	fee := amount * c.cfg.GasFeeRate
	if fee < c.cfg.MinGasFee {
		fee = c.cfg.MinGasFee
	}
	return fee
}

func (c *RPCClient) ExplorerURL(txHash string) string {
	return FormatExplorerURL(c.cfg.ExplorerURL, txHash)
}
