// Package rpc reads blocks from CometBFT nodes, rotating between endpoints.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

type Client struct {
	mu        sync.Mutex
	endpoints []string
	clients   []*rpchttp.HTTP
	current   int
	logger    *slog.Logger
}

var _ monitor.ChainClient = &Client{}

type ClientOpts struct {
	Endpoints []string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewClient(opts ClientOpts) (*Client, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("at least one rpc endpoint is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	clients := make([]*rpchttp.HTTP, 0, len(opts.Endpoints))
	for _, endpoint := range opts.Endpoints {
		c, err := rpchttp.NewWithClient(endpoint, "/websocket", httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create rpc client for %s: %w", endpoint, err)
		}
		clients = append(clients, c)
	}

	return &Client{
		endpoints: opts.Endpoints,
		clients:   clients,
		logger:    opts.Logger,
	}, nil
}

func (c *Client) client() *rpchttp.HTTP {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clients[c.current]
}

// RotateRPC switches to the next endpoint.
func (c *Client) RotateRPC() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.clients) == 1 {
		return
	}
	c.current = (c.current + 1) % len(c.clients)
	c.logger.Warn("rotated rpc endpoint", "endpoint", c.endpoints[c.current])
}

func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.current]
}

func (c *Client) LatestHeight(ctx context.Context) (int64, error) {
	status, err := c.client().Status(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get status: %w", err)
	}
	return status.SyncInfo.LatestBlockHeight, nil
}

// BlockchainInfo returns the metas of [minHeight, maxHeight]. The node
// returns them highest first and at most 20 per call.
func (c *Client) BlockchainInfo(ctx context.Context, minHeight, maxHeight int64) ([]types.BlockMeta, error) {
	res, err := c.client().BlockchainInfo(ctx, minHeight, maxHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockchain info [%d, %d]: %w", minHeight, maxHeight, err)
	}

	metas := make([]types.BlockMeta, 0, len(res.BlockMetas))
	for _, meta := range res.BlockMetas {
		metas = append(metas, types.BlockMeta{
			Height: meta.Header.Height,
			NumTxs: meta.NumTxs,
			Hash:   meta.BlockID.Hash,
		})
	}
	return metas, nil
}

func (c *Client) Block(ctx context.Context, height int64) (*types.Block, error) {
	res, err := c.client().Block(ctx, &height)
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", height, err)
	}
	if res.Block == nil {
		return nil, fmt.Errorf("block %d not found", height)
	}

	txs := make([][]byte, len(res.Block.Data.Txs))
	for i, tx := range res.Block.Data.Txs {
		txs[i] = tx
	}

	return &types.Block{
		Height:  res.Block.Header.Height,
		Time:    res.Block.Header.Time,
		AppHash: res.Block.Header.AppHash,
		Hash:    res.BlockID.Hash,
		Txs:     txs,
	}, nil
}

func (c *Client) BlockResults(ctx context.Context, height int64) (*types.BlockResults, error) {
	res, err := c.client().BlockResults(ctx, &height)
	if err != nil {
		return nil, fmt.Errorf("failed to get block results %d: %w", height, err)
	}

	results := &types.BlockResults{
		Height:     res.Height,
		TxsResults: make([]types.ExecTxResult, 0, len(res.TxsResults)),
	}
	for _, tx := range res.TxsResults {
		if tx == nil {
			continue
		}
		result := types.ExecTxResult{Code: tx.Code, Log: tx.Log}
		for _, ev := range tx.Events {
			event := types.Event{Type: ev.Type}
			for _, attr := range ev.Attributes {
				event.Attributes = append(event.Attributes, types.EventAttribute{Key: attr.Key, Value: attr.Value})
			}
			result.Events = append(result.Events, event)
		}
		results.TxsResults = append(results.TxsResults, result)
	}
	return results, nil
}
