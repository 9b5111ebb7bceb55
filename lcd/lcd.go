// Package lcd queries the opinit modules and broadcasts txs over the Cosmos REST API.
package lcd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

// ErrNotFound is returned when the queried object does not exist on chain.
var ErrNotFound = errors.New("not found")

// grpc NotFound
const codeNotFound = 5

type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

type ClientOpts struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *slog.Logger
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("lcd endpoint is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.Endpoint, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &Client{http: client, logger: opts.Logger}, nil
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	if resp.IsError() {
		return responseError(path, resp, apiErr)
	}
	return nil
}

func responseError(path string, resp *resty.Response, apiErr apiError) error {
	if resp.StatusCode() == http.StatusNotFound || apiErr.Code == codeNotFound || strings.Contains(apiErr.Message, "not found") {
		return fmt.Errorf("%s: %s: %w", path, apiErr.Message, ErrNotFound)
	}
	return fmt.Errorf("query %s failed with status %d: %s", path, resp.StatusCode(), resp.String())
}

type Bridge struct {
	BridgeID     uint64             `json:"bridge_id,string"`
	BridgeAddr   string             `json:"bridge_addr"`
	BridgeConfig types.BridgeConfig `json:"bridge_config"`
}

// Bridge returns the L1 bridge registered under bridgeID.
func (c *Client) Bridge(ctx context.Context, bridgeID uint64) (*Bridge, error) {
	var bridge Bridge
	if err := c.get(ctx, fmt.Sprintf("/opinit/ophost/v1/bridges/%d", bridgeID), nil, &bridge); err != nil {
		return nil, err
	}
	return &bridge, nil
}

type OutputInfo struct {
	OutputRoot    []byte    `json:"output_root"`
	L1BlockNumber uint64    `json:"l1_block_number,string"`
	L1BlockTime   time.Time `json:"l1_block_time"`
	L2BlockNumber uint64    `json:"l2_block_number,string"`
}

type OutputProposal struct {
	BridgeID       uint64     `json:"bridge_id,string"`
	OutputIndex    uint64     `json:"output_index,string"`
	OutputProposal OutputInfo `json:"output_proposal"`
}

// LastOutputProposal returns the last output submitted to L1, or ErrNotFound
// when none has been submitted yet.
func (c *Client) LastOutputProposal(ctx context.Context, bridgeID uint64) (*OutputProposal, error) {
	var res struct {
		OutputProposals []OutputProposal `json:"output_proposals"`
	}
	query := map[string]string{
		"pagination.limit":   "1",
		"pagination.reverse": "true",
	}
	if err := c.get(ctx, fmt.Sprintf("/opinit/ophost/v1/bridges/%d/outputs", bridgeID), query, &res); err != nil {
		return nil, err
	}
	if len(res.OutputProposals) == 0 {
		return nil, fmt.Errorf("no output proposals for bridge %d: %w", bridgeID, ErrNotFound)
	}
	return &res.OutputProposals[0], nil
}

type TokenPair struct {
	L1Denom string `json:"l1_denom"`
	L2Denom string `json:"l2_denom"`
}

func (c *Client) TokenPairByL2Denom(ctx context.Context, bridgeID uint64, l2Denom string) (*TokenPair, error) {
	var res struct {
		TokenPair TokenPair `json:"token_pair"`
	}
	path := fmt.Sprintf("/opinit/ophost/v1/bridges/%d/token_pairs/by_l2_denom", bridgeID)
	if err := c.get(ctx, path, map[string]string{"l2_denom": l2Denom}, &res); err != nil {
		return nil, err
	}
	return &res.TokenPair, nil
}

// BridgeInfo returns the bridge info stored on L2. It is ErrNotFound until
// the executor has set it.
func (c *Client) BridgeInfo(ctx context.Context) (*types.BridgeInfo, error) {
	var res struct {
		BridgeInfo types.BridgeInfo `json:"bridge_info"`
	}
	if err := c.get(ctx, "/opinit/opchild/v1/bridge_info", nil, &res); err != nil {
		return nil, err
	}
	return &res.BridgeInfo, nil
}

// TxError is a tx the chain rejected. RawLog carries the module error.
type TxError struct {
	TxHash string
	Code   uint32
	RawLog string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx %s failed with code %d: %s", e.TxHash, e.Code, e.RawLog)
}

// SendRawTx broadcasts a signed tx in sync mode.
func (c *Client) SendRawTx(ctx context.Context, txBytes []byte) (*types.TxResult, error) {
	body := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     "BROADCAST_MODE_SYNC",
	}

	var res struct {
		TxResponse types.TxResult `json:"tx_response"`
	}
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&res).
		SetError(&apiErr).
		Post("/cosmos/tx/v1beta1/txs")
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast tx: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("broadcast failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	if res.TxResponse.Code != 0 {
		return nil, &TxError{TxHash: res.TxResponse.TxHash, Code: res.TxResponse.Code, RawLog: res.TxResponse.RawLog}
	}
	return &res.TxResponse, nil
}

// WaitTx polls until the tx is included in a block.
func (c *Client) WaitTx(ctx context.Context, txHash string, interval time.Duration) (*types.TxResult, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var res struct {
			TxResponse types.TxResult `json:"tx_response"`
		}
		err := c.get(ctx, "/cosmos/tx/v1beta1/txs/"+txHash, nil, &res)
		switch {
		case err == nil:
			if res.TxResponse.Code != 0 {
				return nil, &TxError{TxHash: txHash, Code: res.TxResponse.Code, RawLog: res.TxResponse.RawLog}
			}
			return &res.TxResponse, nil
		case !errors.Is(err, ErrNotFound):
			c.logger.Debug("failed to query tx, retrying", "txhash", txHash, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("tx %s not included: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
