// Package outputsubmitter proposes locally cut outputs to the L1 bridge.
package outputsubmitter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/lcd"
	"github.com/lightlink-network/ll-opinit-bots/metrics"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

const (
	DefaultInterval = 10 * time.Second

	chunkSize     = 50
	submitTimeout = 10 * time.Minute
)

type Store interface {
	GetOutputsAfter(ctx context.Context, index uint64, limit int64) ([]models.Output, error)
}

type Querier interface {
	LastOutputProposal(ctx context.Context, bridgeID uint64) (*lcd.OutputProposal, error)
}

type Wallet interface {
	Address() string
	Transaction(ctx context.Context, msgs []types.Msg) (*types.TxResult, error)
}

type Config struct {
	BridgeID uint64
	Interval time.Duration
}

type Submitter struct {
	cfg     Config
	store   Store
	l1      Querier
	wallet  Wallet
	metrics metrics.Metricer
	logger  *slog.Logger
}

type SubmitterOpts struct {
	Config  Config
	Store   Store
	L1      Querier
	Wallet  Wallet
	Metrics metrics.Metricer
	Logger  *slog.Logger
}

func NewSubmitter(opts SubmitterOpts) (*Submitter, error) {
	if opts.Store == nil || opts.L1 == nil || opts.Wallet == nil {
		return nil, errors.New("output submitter requires a store, an l1 client and a wallet")
	}
	if opts.Config.Interval <= 0 {
		opts.Config.Interval = DefaultInterval
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopMetrics
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Submitter{
		cfg:     opts.Config,
		store:   opts.Store,
		l1:      opts.L1,
		wallet:  opts.Wallet,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "outputsubmitter"),
	}, nil
}

// Run submits pending outputs every interval until ctx is done. Failed rounds
// are logged and retried on the next tick.
func (s *Submitter) Run(ctx context.Context) error {
	s.logger.Info("starting output submitter", "interval", s.cfg.Interval, "proposer", s.wallet.Address())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Submit(ctx); err != nil {
			s.logger.Error("failed to submit outputs", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("shutting down output submitter")
			return nil
		case <-ticker.C:
		}
	}
}

// Submit proposes every local output L1 has not seen yet and returns how many
// were proposed.
func (s *Submitter) Submit(ctx context.Context) (int, error) {
	var next uint64
	proposal, err := s.l1.LastOutputProposal(ctx, s.cfg.BridgeID)
	switch {
	case errors.Is(err, lcd.ErrNotFound):
	case err != nil:
		return 0, fmt.Errorf("failed to query last output proposal: %w", err)
	default:
		next = proposal.OutputIndex
	}

	submitted := 0
	for {
		outputs, err := s.store.GetOutputsAfter(ctx, next, chunkSize)
		if err != nil {
			return submitted, fmt.Errorf("failed to load outputs after %d: %w", next, err)
		}
		if len(outputs) == 0 {
			return submitted, nil
		}

		if err := s.propose(ctx, outputs); err != nil {
			return submitted, err
		}
		submitted += len(outputs)
		next = outputs[len(outputs)-1].OutputIndex
	}
}

func (s *Submitter) propose(ctx context.Context, outputs []models.Output) error {
	msgs := make([]types.Msg, 0, len(outputs))
	for _, out := range outputs {
		root, err := base64.StdEncoding.DecodeString(out.OutputRoot)
		if err != nil {
			return fmt.Errorf("invalid output root for output %d: %w", out.OutputIndex, err)
		}
		msgs = append(msgs, types.MsgProposeOutput{
			Proposer:      s.wallet.Address(),
			BridgeID:      s.cfg.BridgeID,
			OutputIndex:   out.OutputIndex,
			L2BlockNumber: uint64(out.EndBlockNumber),
			OutputRoot:    root,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	first, last := outputs[0].OutputIndex, outputs[len(outputs)-1].OutputIndex
	res, err := s.wallet.Transaction(ctx, msgs)
	if err != nil {
		return fmt.Errorf("failed to propose outputs %d-%d: %w", first, last, err)
	}

	for _, out := range outputs {
		s.metrics.RecordOutputSubmitted(out.OutputIndex)
	}
	s.logger.Info("proposed outputs", "from", first, "to", last, "txhash", res.TxHash)
	return nil
}
