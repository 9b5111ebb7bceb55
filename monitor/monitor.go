// Package monitor follows a chain block by block and hands every block to a
// chain specific Handler exactly once, in height order. The cursor is saved
// in the same store transaction as the handler's writes.
package monitor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lightlink-network/ll-opinit-bots/metrics"
	"github.com/lightlink-network/ll-opinit-bots/types"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxBlocks is the most blocks one iteration will process. It matches the
	// CometBFT limit for a single blockchain info query.
	MaxBlocks = 20

	// MaxRetryInterval is how long a block may stay unindexed before the RPC
	// endpoint is rotated.
	MaxRetryInterval = 30 * time.Second

	DefaultPollInterval = 100 * time.Millisecond

	fetchAttempts  = 3
	fetchBackoff   = 100 * time.Millisecond
	heartbeatEvery = 10
)

type ChainClient interface {
	LatestHeight(ctx context.Context) (int64, error)
	BlockchainInfo(ctx context.Context, minHeight, maxHeight int64) ([]types.BlockMeta, error)
	Block(ctx context.Context, height int64) (*types.Block, error)
	BlockResults(ctx context.Context, height int64) (*types.BlockResults, error)
	RotateRPC()
}

// Store persists cursors. WithTransaction runs fn atomically, the ctx passed
// to fn must be used for every write that belongs to the transaction.
type Store interface {
	GetCursor(ctx context.Context, name string) (int64, bool, error)
	SaveCursor(ctx context.Context, name string, height int64) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Handler holds the chain specific logic run by a Monitor.
type Handler interface {
	// PrepareMonitor runs once before the first iteration.
	PrepareMonitor(ctx context.Context) error
	// HandleNewBlock runs once per iteration with the chain head, outside the
	// block transaction.
	HandleNewBlock(ctx context.Context, latest int64) error
	// HandleEvents processes a block with txs. It returns ErrNotIndexed when
	// the block's results are not available yet.
	HandleEvents(ctx context.Context, b *Block) error
	// HandleBlock runs for every block, after HandleEvents.
	HandleBlock(ctx context.Context, b *Block) error
	// EndBlock runs after the block's cursor is written.
	EndBlock(ctx context.Context, b *Block) error
}

// Committer is implemented by handlers that hold work back until the
// block transaction commits, such as broadcasts that must not be repeated
// when the transaction is rolled back or retried. Reset runs at the start of
// every transaction attempt. AfterCommit runs once the window is committed,
// outside the transaction.
type Committer interface {
	Reset()
	AfterCommit(ctx context.Context) error
}

type State int32

const (
	StateIdle State = iota
	StatePreparing
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

type Monitor struct {
	name         string
	client       ChainClient
	store        Store
	handler      Handler
	startHeight  int64
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      metrics.Metricer

	height  int64
	retries int
	blocks  *lru.Cache[int64, *types.Block]

	state   atomic.Int32
	stopped atomic.Bool
}

type Opts struct {
	Name         string
	Client       ChainClient
	Store        Store
	Handler      Handler
	StartHeight  int64
	PollInterval time.Duration
	Logger       *slog.Logger
	Metrics      metrics.Metricer
}

func New(opts Opts) (*Monitor, error) {
	if opts.Name == "" {
		return nil, errors.New("monitor name is required")
	}
	if opts.Client == nil || opts.Store == nil || opts.Handler == nil {
		return nil, fmt.Errorf("monitor %s: client, store and handler are required", opts.Name)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopMetrics
	}

	blocks, err := lru.New[int64, *types.Block](2 * MaxBlocks)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cache: %w", err)
	}

	return &Monitor{
		name:         opts.Name,
		client:       opts.Client,
		store:        opts.Store,
		handler:      opts.Handler,
		startHeight:  opts.StartHeight,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger.With("monitor", opts.Name),
		metrics:      opts.Metrics,
		blocks:       blocks,
	}, nil
}

func (m *Monitor) Name() string {
	return m.name
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Height is the last committed height.
func (m *Monitor) Height() int64 {
	return m.height
}

// Stop asks Run to return at the top of its next iteration.
func (m *Monitor) Stop() {
	m.stopped.Store(true)
}

// Run follows the chain until ctx is done, Stop is called or a fatal error
// occurs.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.state.Store(int32(StateStopped))

	if err := m.loadCursor(ctx); err != nil {
		return err
	}

	m.state.Store(int32(StatePreparing))
	if err := m.handler.PrepareMonitor(ctx); err != nil {
		return fmt.Errorf("failed to prepare monitor %s: %w", m.name, err)
	}

	m.state.Store(int32(StateRunning))
	m.logger.Info("starting monitor", "startHeight", m.height+1)

	for {
		if m.stopped.Load() {
			m.logger.Info("monitor stopped", "height", m.height)
			return nil
		}
		select {
		case <-ctx.Done():
			m.logger.Info("shutting down monitor", "height", m.height)
			return nil
		default:
		}

		if err := m.step(ctx); err != nil {
			if IsFatal(err) {
				m.logger.Error("monitor failed", "height", m.height, "error", err)
				return err
			}
			m.logger.Warn("monitor iteration failed, retrying", "height", m.height, "error", err)
		}

		select {
		case <-ctx.Done():
		case <-time.After(m.pollInterval):
		}
	}
}

func (m *Monitor) loadCursor(ctx context.Context) error {
	height, ok, err := m.store.GetCursor(ctx, m.name)
	if err != nil {
		return fmt.Errorf("failed to load cursor %s: %w", m.name, err)
	}
	if !ok {
		height = m.startHeight
		if err := m.store.SaveCursor(ctx, m.name, height); err != nil {
			return fmt.Errorf("failed to seed cursor %s: %w", m.name, err)
		}
	}
	m.height = height
	return nil
}

// step runs one poll iteration. The local height only moves after the
// transaction commits.
func (m *Monitor) step(ctx context.Context) error {
	latest, err := m.client.LatestHeight(ctx)
	if err != nil {
		return &Error{Kind: KindTransient, Op: "latest height", Err: err}
	}
	if latest <= m.height {
		return nil
	}

	from, to := m.height+1, min(latest, m.height+MaxBlocks)
	metas, err := m.client.BlockchainInfo(ctx, from, to)
	if err != nil {
		return &Error{Kind: KindTransient, Op: "blockchain info", Height: from, Err: err}
	}
	slices.SortFunc(metas, func(a, b types.BlockMeta) int {
		return cmp.Compare(a.Height, b.Height)
	})

	results, err := m.prefetch(ctx, metas)
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Kind: KindTransient, Op: "prefetch", Height: from, Err: err}
		}
		m.rotate()
		return &Error{Kind: KindExhausted, Op: "prefetch", Height: from, Err: err}
	}

	if err := m.handler.HandleNewBlock(ctx, latest); err != nil {
		return fmt.Errorf("failed to handle new block %d: %w", latest, err)
	}

	committer, _ := m.handler.(Committer)

	var handlerErr error
	next := m.height
	err = m.store.WithTransaction(ctx, func(ctx context.Context) error {
		next = m.height
		if committer != nil {
			committer.Reset()
		}
		handlerErr = m.walk(ctx, metas, results, latest, &next)
		return handlerErr
	})
	if err != nil {
		if handlerErr != nil {
			return handlerErr
		}
		// session, commit or abort failures
		return &Error{Kind: KindTransient, Op: "commit", Height: from, Err: err}
	}

	m.height = next
	m.evict()
	m.metrics.RecordSyncedHeight(m.name, m.height)

	if committer != nil {
		if err := committer.AfterCommit(ctx); err != nil {
			return fmt.Errorf("after commit at %d: %w", m.height, err)
		}
	}
	return nil
}

// walk hands the window to the handler inside the store transaction. next is
// moved to every height whose cursor was written.
func (m *Monitor) walk(ctx context.Context, metas []types.BlockMeta, results map[int64]*types.BlockResults, latest int64, next *int64) error {
	for _, meta := range metas {
		if meta.Height != *next+1 {
			return &Error{
				Kind:   KindInvariant,
				Op:     "block meta",
				Height: meta.Height,
				Err:    fmt.Errorf("expected height %d", *next+1),
			}
		}

		blk, ok := m.blocks.Get(meta.Height)
		if !ok {
			return &Error{Kind: KindTransient, Op: "block cache", Height: meta.Height, Err: errors.New("block evicted before processing")}
		}
		b := &Block{Meta: meta, Block: blk, Results: results[meta.Height]}

		if meta.NumTxs > 0 {
			err := m.handler.HandleEvents(ctx, b)
			if errors.Is(err, ErrNotIndexed) {
				m.notIndexed(meta.Height)
				return nil
			}
			if err != nil {
				return err
			}
			m.retries = 0
		}

		if err := m.handler.HandleBlock(ctx, b); err != nil {
			return err
		}
		if err := m.store.SaveCursor(ctx, m.name, meta.Height); err != nil {
			return &Error{Kind: KindTransient, Op: "save cursor", Height: meta.Height, Err: err}
		}
		*next = meta.Height

		if err := m.handler.EndBlock(ctx, b); err != nil {
			return err
		}
		if *next%heartbeatEvery == 0 {
			m.logger.Info("synced block", "height", *next, "latest", latest)
		}
	}
	return nil
}

func (m *Monitor) notIndexed(height int64) {
	m.retries++
	m.metrics.RecordRetry(m.name)
	m.logger.Debug("block results not indexed yet", "height", height, "retries", m.retries)

	if time.Duration(m.retries)*m.pollInterval >= MaxRetryInterval {
		m.logger.Warn("block results still not indexed, rotating rpc", "height", height, "retries", m.retries)
		m.rotate()
		m.retries = 0
	}
}

func (m *Monitor) rotate() {
	m.client.RotateRPC()
	m.metrics.RecordRotation(m.name)
}

// prefetch loads every block of the window into the cache and returns the
// results of the blocks that have txs. Results are never cached.
func (m *Monitor) prefetch(ctx context.Context, metas []types.BlockMeta) (map[int64]*types.BlockResults, error) {
	var mu sync.Mutex
	results := make(map[int64]*types.BlockResults, len(metas))

	g, gctx := errgroup.WithContext(ctx)
	for _, meta := range metas {
		g.Go(func() error {
			if !m.blocks.Contains(meta.Height) {
				blk, err := fetch(gctx, func(ctx context.Context) (*types.Block, error) {
					return m.client.Block(ctx, meta.Height)
				})
				if err != nil {
					return &Error{Kind: KindTransient, Op: "fetch block", Height: meta.Height, Err: err}
				}
				m.blocks.Add(meta.Height, blk)
			}

			if meta.NumTxs == 0 {
				return nil
			}
			res, err := fetch(gctx, func(ctx context.Context) (*types.BlockResults, error) {
				return m.client.BlockResults(ctx, meta.Height)
			})
			if err != nil {
				return &Error{Kind: KindTransient, Op: "fetch block results", Height: meta.Height, Err: err}
			}

			mu.Lock()
			results[meta.Height] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Monitor) evict() {
	for _, h := range m.blocks.Keys() {
		if h <= m.height {
			m.blocks.Remove(h)
		}
	}
}

func fetch[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var (
		res T
		err error
	)
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		res, err = fn(ctx)
		if err == nil {
			return res, nil
		}
		if attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(fetchBackoff):
		}
	}
	return res, fmt.Errorf("failed after %d attempts: %w", fetchAttempts, err)
}
