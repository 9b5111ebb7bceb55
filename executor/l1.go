package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lightlink-network/ll-opinit-bots/alert"
	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/lcd"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

type L1Store interface {
	ResurrectorStore
	GetCursor(ctx context.Context, name string) (int64, bool, error)
	SaveCursor(ctx context.Context, name string, height int64) error
	GetLastOutput(ctx context.Context) (*models.Output, error)
	SaveDeposits(ctx context.Context, deposits []models.Deposit) error
	SaveUnconfirmedDeposits(ctx context.Context, deposits []models.UnconfirmedDeposit) error
	RecordDepositErrors(ctx context.Context, deposits []models.UnconfirmedDeposit) error
}

// L1Querier is the L1 LCD.
type L1Querier interface {
	Bridge(ctx context.Context, bridgeID uint64) (*lcd.Bridge, error)
	LastOutputProposal(ctx context.Context, bridgeID uint64) (*lcd.OutputProposal, error)
	TokenPairByL2Denom(ctx context.Context, bridgeID uint64, l2Denom string) (*lcd.TokenPair, error)
}

// L2Querier is the L2 LCD.
type L2Querier interface {
	BridgeInfo(ctx context.Context) (*types.BridgeInfo, error)
}

type BlockReader interface {
	Block(ctx context.Context, height int64) (*types.Block, error)
}

// L1Handler finalizes L1 deposits on L2 and relays oracle data.
type L1Handler struct {
	cfg         Config
	store       L1Store
	l1          L1Querier
	l2          L2Querier
	blocks      BlockReader
	wallet      Wallet
	resurrector *Resurrector
	notifier    alert.Notifier
	logger      *slog.Logger

	oracleHeight int64
	outbox       []depositBatch
}

// depositBatch is one block's deposits, finalized in one L2 tx once the
// block is committed.
type depositBatch struct {
	height int64
	rows   []models.UnconfirmedDeposit
	msgs   []types.Msg
}

var (
	_ monitor.Handler   = &L1Handler{}
	_ monitor.Committer = &L1Handler{}
)

type L1HandlerOpts struct {
	Config      Config
	Store       L1Store
	L1          L1Querier
	L2          L2Querier
	Blocks      BlockReader
	Wallet      Wallet
	Resurrector *Resurrector
	Notifier    alert.Notifier
	Logger      *slog.Logger
}

func NewL1Handler(opts L1HandlerOpts) *L1Handler {
	if opts.Notifier == nil {
		opts.Notifier = alert.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &L1Handler{
		cfg:         opts.Config,
		store:       opts.Store,
		l1:          opts.L1,
		l2:          opts.L2,
		blocks:      opts.Blocks,
		wallet:      opts.Wallet,
		resurrector: opts.Resurrector,
		notifier:    opts.Notifier,
		logger:      opts.Logger.With("component", "executor_l1"),
	}
}

// PrepareMonitor makes sure L2 knows about the bridge before any deposit is
// finalized.
func (h *L1Handler) PrepareMonitor(ctx context.Context) error {
	if h.cfg.L1ChainID == "" {
		return monitor.Invariant("prepare l1 monitor", errors.New("L1_CHAIN_ID is required"))
	}

	height, _, err := h.store.GetCursor(ctx, types.OracleHeight)
	if err != nil {
		return monitor.Transient("load oracle height", err)
	}
	h.oracleHeight = height

	bridge, err := h.l1.Bridge(ctx, h.cfg.BridgeID)
	if err != nil {
		return monitor.Transient("query l1 bridge", err)
	}

	info, err := h.l2.BridgeInfo(ctx)
	switch {
	case errors.Is(err, lcd.ErrNotFound):
		h.logger.Info("bridge info not set on l2, registering it", "bridgeId", h.cfg.BridgeID)
		return h.setBridgeInfo(ctx, bridge, "")
	case err != nil:
		return monitor.Transient("query l2 bridge info", err)
	}

	if h.cfg.EnableOracle && h.cfg.L1ClientID != "" && info.L1ClientID == "" {
		h.logger.Info("registering l1 client id on l2", "clientId", h.cfg.L1ClientID)
		return h.setBridgeInfo(ctx, bridge, h.cfg.L1ClientID)
	}
	return nil
}

func (h *L1Handler) setBridgeInfo(ctx context.Context, bridge *lcd.Bridge, clientID string) error {
	msg := types.MsgSetBridgeInfo{
		Sender: h.wallet.Address(),
		BridgeInfo: types.BridgeInfo{
			BridgeID:     bridge.BridgeID,
			BridgeAddr:   bridge.BridgeAddr,
			L1ChainID:    h.cfg.L1ChainID,
			L1ClientID:   clientID,
			BridgeConfig: bridge.BridgeConfig,
		},
	}
	res, err := h.wallet.Transaction(ctx, []types.Msg{msg})
	if err != nil {
		return fmt.Errorf("failed to set bridge info: %w", err)
	}
	h.logger.Info("bridge info set", "txhash", res.TxHash)
	return nil
}

// HandleNewBlock retries unconfirmed deposits and relays the latest L1 block
// to the L2 oracle. Failures are logged and retried next iteration.
func (h *L1Handler) HandleNewBlock(ctx context.Context, latest int64) error {
	if h.resurrector != nil {
		if err := h.resurrector.Resurrect(ctx); err != nil {
			h.logger.Error("failed to resurrect deposits", "error", err)
		}
	}

	if !h.cfg.EnableOracle || latest == h.oracleHeight {
		return nil
	}
	if err := h.relayOracle(ctx, latest); err != nil {
		h.logger.Error("failed to relay oracle data", "height", latest, "error", err)
	}
	return nil
}

func (h *L1Handler) relayOracle(ctx context.Context, height int64) error {
	blk, err := h.blocks.Block(ctx, height)
	if err != nil {
		return fmt.Errorf("failed to read block: %w", err)
	}
	if len(blk.Txs) == 0 {
		return nil
	}

	msg := types.MsgUpdateOracle{Sender: h.wallet.Address(), Height: uint64(height), Data: blk.Txs[0]}
	if _, err := h.wallet.Transaction(ctx, []types.Msg{msg}); err != nil {
		return fmt.Errorf("failed to update oracle: %w", err)
	}
	if err := h.store.SaveCursor(ctx, types.OracleHeight, height); err != nil {
		return err
	}
	h.oracleHeight = height
	return nil
}

// HandleEvents records the block's deposits together with an unconfirmed
// row per deposit. Nothing is broadcast here: the block's finalize messages
// are sent by AfterCommit, and the rows let the resurrector pick them up if
// that never happens.
func (h *L1Handler) HandleEvents(ctx context.Context, b *monitor.Block) error {
	events, err := monitor.EventsOf(b)
	if err != nil {
		return err
	}

	var (
		deposits []models.Deposit
		msgs     []types.Msg
	)
	for i, ev := range events {
		if ev.Type != types.EventInitiateTokenDeposit {
			continue
		}
		d, ok, err := parseDeposit(h.cfg.BridgeID, ev, b.Height())
		if err != nil {
			h.skipDeposit(ctx, b.Height(), i, ev, err)
			continue
		}
		if !ok {
			continue
		}
		msg, err := finalizeMsg(h.wallet.Address(), unconfirmed(d, ""))
		if err != nil {
			h.skipDeposit(ctx, b.Height(), i, ev, err)
			continue
		}
		deposits = append(deposits, d)
		msgs = append(msgs, msg)
	}
	if len(deposits) == 0 {
		return nil
	}

	last, err := h.store.GetLastOutput(ctx)
	if err != nil {
		return monitor.Transient("load last output", err)
	}
	index := uint64(1)
	if last != nil {
		index = last.OutputIndex + 1
	}

	rows := make([]models.UnconfirmedDeposit, len(deposits))
	for i := range deposits {
		deposits[i].OutputIndex = index
		rows[i] = unconfirmed(deposits[i], awaitingBroadcast)
	}
	if err := h.store.SaveDeposits(ctx, deposits); err != nil {
		return monitor.Transient("save deposits", err)
	}
	if err := h.store.SaveUnconfirmedDeposits(ctx, rows); err != nil {
		return monitor.Transient("save unconfirmed deposits", err)
	}

	h.outbox = append(h.outbox, depositBatch{height: b.Height(), rows: rows, msgs: msgs})
	return nil
}

// skipDeposit reports a deposit event that cannot be finalized. The rest of
// the block is still processed.
func (h *L1Handler) skipDeposit(ctx context.Context, height int64, index int, ev types.Event, err error) {
	h.logger.Error("skipping invalid deposit event", "height", height, "event", index, "attrs", monitor.AttrMap(ev), "error", err)
	h.notifier.Failed(ctx, fmt.Sprintf("deposit-event-%d-%d", height, index),
		fmt.Sprintf("invalid deposit event %d at L1 height %d skipped: %v", index, height, err))
}

// Reset drops deposits queued by a transaction attempt that did not commit.
func (h *L1Handler) Reset() {
	h.outbox = nil
}

// AfterCommit finalizes every committed block's deposits, one L2 tx per
// block. A failed broadcast leaves the rows for the resurrector.
func (h *L1Handler) AfterCommit(ctx context.Context) error {
	outbox := h.outbox
	h.outbox = nil

	var errs []error
	for _, batch := range outbox {
		if err := h.finalize(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *L1Handler) finalize(ctx context.Context, batch depositBatch) error {
	res, err := h.wallet.Transaction(ctx, batch.msgs)
	if err == nil {
		h.logger.Info("finalized deposits", "height", batch.height, "count", len(batch.rows), "txhash", res.TxHash)
		if err := h.store.MarkDepositsProcessed(ctx, batch.rows); err != nil {
			// the resurrector resubmits them and retires them as already finalized
			return monitor.Transient("mark deposits processed", err)
		}
		return nil
	}

	h.logger.Warn("failed to finalize deposits, leaving them for resurrection", "height", batch.height, "count", len(batch.rows), "error", err)

	// A batch error cannot be blamed on one row, so the resurrector must not
	// retire batch members by their stored error.
	reason := err.Error()
	if len(batch.rows) > 1 {
		reason = fmt.Sprintf("batch of %d deposits at height %d failed", len(batch.rows), batch.height)
	}
	failed := make([]models.UnconfirmedDeposit, len(batch.rows))
	for i, d := range batch.rows {
		d.Error = reason
		failed[i] = d
		h.notifier.Failed(ctx, depositKey(d.BridgeID, d.Sequence),
			fmt.Sprintf("deposit %d of bridge %d failed to finalize: %v", d.Sequence, d.BridgeID, err))
	}
	if err := h.store.RecordDepositErrors(ctx, failed); err != nil {
		return monitor.Transient("record deposit errors", err)
	}
	return nil
}

func (h *L1Handler) HandleBlock(context.Context, *monitor.Block) error {
	return nil
}

func (h *L1Handler) EndBlock(context.Context, *monitor.Block) error {
	return nil
}
