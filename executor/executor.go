// Package executor relays deposits from L1 to L2 and commits L2 withdrawals
// into outputs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/alert"
	"github.com/lightlink-network/ll-opinit-bots/metrics"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/types"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BridgeID            uint64
	L1ChainID           string
	L1ClientID          string
	EnableOracle        bool
	SubmissionThreshold float64
	L1StartHeight       int64
	L2StartHeight       int64
	PollInterval        time.Duration
}

// Store is everything the executor persists.
type Store interface {
	monitor.Store
	L1Store
	L2Store
}

type Executor struct {
	l1     *monitor.Monitor
	l2     *monitor.Monitor
	logger *slog.Logger
}

type ExecutorOpts struct {
	Config   Config
	Store    Store
	L1Client monitor.ChainClient
	L2Client monitor.ChainClient
	L1LCD    L1Querier
	L2LCD    L2Querier
	Wallet   Wallet
	Notifier alert.Notifier
	Metrics  metrics.Metricer
	Logger   *slog.Logger
}

func NewExecutor(opts ExecutorOpts) (*Executor, error) {
	if opts.Store == nil || opts.Wallet == nil {
		return nil, errors.New("executor requires a store and a wallet")
	}
	if opts.L1LCD == nil || opts.L2LCD == nil {
		return nil, errors.New("executor requires l1 and l2 lcd clients")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopMetrics
	}

	resurrector := NewResurrector(ResurrectorOpts{
		Store:    opts.Store,
		Wallet:   opts.Wallet,
		Notifier: opts.Notifier,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger,
	})

	l1, err := monitor.New(monitor.Opts{
		Name:   types.ExecutorL1Monitor,
		Client: opts.L1Client,
		Store:  opts.Store,
		Handler: NewL1Handler(L1HandlerOpts{
			Config:      opts.Config,
			Store:       opts.Store,
			L1:          opts.L1LCD,
			L2:          opts.L2LCD,
			Blocks:      opts.L1Client,
			Wallet:      opts.Wallet,
			Resurrector: resurrector,
			Notifier:    opts.Notifier,
			Logger:      opts.Logger,
		}),
		StartHeight:  opts.Config.L1StartHeight,
		PollInterval: opts.Config.PollInterval,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create l1 monitor: %w", err)
	}

	l2, err := monitor.New(monitor.Opts{
		Name:   types.ExecutorL2Monitor,
		Client: opts.L2Client,
		Store:  opts.Store,
		Handler: NewL2Handler(L2HandlerOpts{
			Config:  opts.Config,
			Store:   opts.Store,
			L1:      opts.L1LCD,
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		}),
		StartHeight:  opts.Config.L2StartHeight,
		PollInterval: opts.Config.PollInterval,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create l2 monitor: %w", err)
	}

	return &Executor{l1: l1, l2: l2, logger: opts.Logger}, nil
}

// Run follows both chains until ctx is done. A fatal error in either monitor
// stops the other.
func (e *Executor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.l1.Run(ctx); err != nil {
			return fmt.Errorf("l1 monitor: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := e.l2.Run(ctx); err != nil {
			return fmt.Errorf("l2 monitor: %w", err)
		}
		return nil
	})

	return g.Wait()
}
