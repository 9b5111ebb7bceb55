// Package wallet signs messages with a remote signer and broadcasts them.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

const (
	// DefaultTxTimeout bounds signing, broadcast and inclusion of one tx.
	DefaultTxTimeout = 10 * time.Minute

	defaultPollInterval = time.Second
)

type Broadcaster interface {
	SendRawTx(ctx context.Context, txBytes []byte) (*types.TxResult, error)
	WaitTx(ctx context.Context, txHash string, interval time.Duration) (*types.TxResult, error)
}

// Remote holds one signing key on a signer sidecar. Txs from the same
// Remote are serialized so account sequences never race.
type Remote struct {
	mu sync.Mutex

	http         *resty.Client
	broadcaster  Broadcaster
	address      string
	chainID      string
	txTimeout    time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

type RemoteOpts struct {
	SignerURI    string
	ChainID      string
	Broadcaster  Broadcaster
	TxTimeout    time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

// NewRemote connects to the signer and loads the key's address.
func NewRemote(ctx context.Context, opts RemoteOpts) (*Remote, error) {
	if opts.SignerURI == "" {
		return nil, errors.New("signer uri is required")
	}
	if opts.Broadcaster == nil {
		return nil, errors.New("broadcaster is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TxTimeout == 0 {
		opts.TxTimeout = DefaultTxTimeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}

	w := &Remote{
		http: resty.New().
			SetBaseURL(strings.TrimRight(opts.SignerURI, "/")).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
		broadcaster:  opts.Broadcaster,
		chainID:      opts.ChainID,
		txTimeout:    opts.TxTimeout,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}

	var res struct {
		Address string `json:"address"`
	}
	resp, err := w.http.R().SetContext(ctx).SetResult(&res).Get("/v1/address")
	if err != nil {
		return nil, fmt.Errorf("failed to reach signer: %w", err)
	}
	if resp.IsError() || res.Address == "" {
		return nil, fmt.Errorf("signer returned no address (status %d): %s", resp.StatusCode(), resp.String())
	}
	w.address = res.Address

	opts.Logger.Info("connected to signer", "address", w.address, "chainId", opts.ChainID)
	return w, nil
}

func (w *Remote) Address() string {
	return w.address
}

type signRequest struct {
	ChainID string            `json:"chain_id"`
	Msgs    []json.RawMessage `json:"msgs"`
}

// Transaction signs msgs into one tx, broadcasts it and waits for inclusion.
// A tx rejected by the chain is returned as *lcd.TxError from the broadcaster.
func (w *Remote) Transaction(ctx context.Context, msgs []types.Msg) (*types.TxResult, error) {
	if len(msgs) == 0 {
		return nil, errors.New("no messages to send")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.txTimeout)
	defer cancel()

	req := signRequest{ChainID: w.chainID, Msgs: make([]json.RawMessage, 0, len(msgs))}
	for _, msg := range msgs {
		raw, err := EncodeMsg(msg)
		if err != nil {
			return nil, err
		}
		req.Msgs = append(req.Msgs, raw)
	}

	var signed struct {
		TxBytes []byte `json:"tx_bytes"`
	}
	resp, err := w.http.R().SetContext(ctx).SetBody(req).SetResult(&signed).Post("/v1/sign")
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("signer rejected tx (status %d): %s", resp.StatusCode(), resp.String())
	}

	sent, err := w.broadcaster.SendRawTx(ctx, signed.TxBytes)
	if err != nil {
		return nil, err
	}

	res, err := w.broadcaster.WaitTx(ctx, sent.TxHash, w.pollInterval)
	if err != nil {
		return nil, err
	}

	w.logger.Info("tx included", "txhash", res.TxHash, "height", res.Height, "msgs", len(msgs))
	return res, nil
}

// EncodeMsg renders msg as JSON tagged with its "@type".
func EncodeMsg(msg types.Msg) (json.RawMessage, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.TypeURL(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.TypeURL(), err)
	}
	typeURL, err := json.Marshal(msg.TypeURL())
	if err != nil {
		return nil, err
	}
	fields["@type"] = typeURL

	return json.Marshal(fields)
}
