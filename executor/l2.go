package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/lcd"
	"github.com/lightlink-network/ll-opinit-bots/merkle"
	"github.com/lightlink-network/ll-opinit-bots/metrics"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/output"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

type L2Store interface {
	GetLastOutput(ctx context.Context) (*models.Output, error)
	SaveOutput(ctx context.Context, output models.Output) error
	SaveWithdrawals(ctx context.Context, withdrawals []models.Withdrawal) error
	GetWithdrawalsByOutputIndex(ctx context.Context, index uint64) ([]models.Withdrawal, error)
	UpdateWithdrawalProofs(ctx context.Context, withdrawals []models.Withdrawal) error
}

// L2Handler records withdrawals and cuts outputs.
type L2Handler struct {
	cfg     Config
	store   L2Store
	l1      L1Querier
	gate    output.Gate
	metrics metrics.Metricer
	logger  *slog.Logger

	interval time.Duration
}

var _ monitor.Handler = &L2Handler{}

type L2HandlerOpts struct {
	Config  Config
	Store   L2Store
	L1      L1Querier
	Gate    *output.Gate
	Metrics metrics.Metricer
	Logger  *slog.Logger
}

func NewL2Handler(opts L2HandlerOpts) *L2Handler {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopMetrics
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	gate := output.NewGate(opts.Config.SubmissionThreshold)
	if opts.Gate != nil {
		gate = *opts.Gate
	}
	return &L2Handler{
		cfg:     opts.Config,
		store:   opts.Store,
		l1:      opts.L1,
		gate:    gate,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "executor_l2"),
	}
}

// PrepareMonitor loads the submission interval of the bridge.
func (h *L2Handler) PrepareMonitor(ctx context.Context) error {
	bridge, err := h.l1.Bridge(ctx, h.cfg.BridgeID)
	if err != nil {
		return monitor.Transient("query l1 bridge", err)
	}
	interval, err := bridge.BridgeConfig.Interval()
	if err != nil {
		return monitor.Invariant("parse submission interval", err)
	}
	h.interval = interval
	h.logger.Info("loaded bridge config", "bridgeId", h.cfg.BridgeID, "submissionInterval", interval)
	return nil
}

func (h *L2Handler) HandleNewBlock(context.Context, int64) error {
	return nil
}

// HandleEvents stores the block's withdrawals under the output they will be
// committed to.
func (h *L2Handler) HandleEvents(ctx context.Context, b *monitor.Block) error {
	events, err := monitor.EventsOf(b)
	if err != nil {
		return err
	}

	var withdrawals []models.Withdrawal
	for _, ev := range events {
		if ev.Type != types.EventInitiateTokenWithdrawal {
			continue
		}
		attrs := monitor.AttrMap(ev)

		sequence, err := strconv.ParseUint(attrs["l2_sequence"], 10, 64)
		if err != nil {
			h.logger.Error("skipping withdrawal with invalid sequence", "height", b.Height(), "attrs", attrs, "error", err)
			continue
		}
		if _, err := strconv.ParseUint(attrs["amount"], 10, 64); err != nil {
			h.logger.Error("skipping withdrawal with invalid amount", "height", b.Height(), "sequence", sequence, "amount", attrs["amount"], "error", err)
			continue
		}

		pair, err := h.l1.TokenPairByL2Denom(ctx, h.cfg.BridgeID, attrs["denom"])
		if errors.Is(err, lcd.ErrNotFound) {
			h.logger.Warn("no token pair for withdrawal, skipping", "sequence", sequence, "denom", attrs["denom"])
			continue
		}
		if err != nil {
			return &monitor.Error{Kind: monitor.KindTransient, Op: "query token pair", Height: b.Height(), Err: err}
		}

		withdrawals = append(withdrawals, models.Withdrawal{
			BridgeID: h.cfg.BridgeID,
			Sequence: sequence,
			Sender:   attrs["from"],
			Receiver: attrs["to"],
			L1Denom:  pair.L1Denom,
			L2Denom:  attrs["denom"],
			Amount:   attrs["amount"],
			L2Height: b.Height(),
		})
	}
	if len(withdrawals) == 0 {
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
	for i := range withdrawals {
		withdrawals[i].OutputIndex = index
	}

	if err := h.store.SaveWithdrawals(ctx, withdrawals); err != nil {
		return monitor.Transient("save withdrawals", err)
	}
	h.logger.Info("stored withdrawals", "height", b.Height(), "count", len(withdrawals), "outputIndex", index)
	return nil
}

// HandleBlock cuts the next output at this block when the gate allows it.
func (h *L2Handler) HandleBlock(ctx context.Context, b *monitor.Block) error {
	last, err := h.store.GetLastOutput(ctx)
	if err != nil {
		return monitor.Transient("load last output", err)
	}

	var submitted *output.Submitted
	if last != nil {
		proposal, err := h.l1.LastOutputProposal(ctx, h.cfg.BridgeID)
		switch {
		case errors.Is(err, lcd.ErrNotFound):
		case err != nil:
			return &monitor.Error{Kind: monitor.KindTransient, Op: "query last output proposal", Height: b.Height(), Err: err}
		default:
			submitted = &output.Submitted{
				OutputIndex: proposal.OutputIndex,
				L1BlockTime: proposal.OutputProposal.L1BlockTime,
			}
		}
	}
	if !h.gate.Ready(last, submitted, h.interval) {
		return nil
	}

	index, start := uint64(1), int64(1)
	if last != nil {
		index, start = last.OutputIndex+1, last.EndBlockNumber+1
	}
	end := b.Height()
	if start > end {
		return nil
	}
	if b.Block == nil {
		return &monitor.Error{Kind: monitor.KindTransient, Op: "cut output", Height: end, Err: errors.New("block not loaded")}
	}

	withdrawals, err := h.store.GetWithdrawalsByOutputIndex(ctx, index)
	if err != nil {
		return monitor.Transient("load withdrawals", err)
	}
	root, err := commitWithdrawals(withdrawals)
	if err != nil {
		return &monitor.Error{Kind: monitor.KindInvariant, Op: "commit withdrawals", Height: end, Err: err}
	}
	if len(withdrawals) > 0 {
		if err := h.store.UpdateWithdrawalProofs(ctx, withdrawals); err != nil {
			return monitor.Transient("save withdrawal proofs", err)
		}
	}

	out := output.Build(index, start, end, b.Block.AppHash, b.Block.Hash, root)
	if err := h.store.SaveOutput(ctx, out); err != nil {
		return monitor.Transient("save output", err)
	}

	h.metrics.RecordOutput(index)
	h.logger.Info("cut output", "outputIndex", index, "start", start, "end", end, "outputRoot", out.OutputRoot)
	return nil
}

// commitWithdrawals builds the tree over withdrawals, sets each one's root
// and proof in place and returns the root.
func commitWithdrawals(withdrawals []models.Withdrawal) ([]byte, error) {
	leaves := make([]merkle.Withdrawal, len(withdrawals))
	for i, w := range withdrawals {
		amount, err := strconv.ParseUint(w.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for withdrawal %d: %w", w.Sequence, err)
		}
		leaves[i] = merkle.Withdrawal{
			BridgeID: w.BridgeID,
			Sequence: w.Sequence,
			Sender:   w.Sender,
			Receiver: w.Receiver,
			L1Denom:  w.L1Denom,
			Amount:   amount,
		}
	}

	tree, err := merkle.NewWithdrawStorage(leaves)
	if err != nil {
		return nil, err
	}
	root := tree.Root()

	encodedRoot := base64.StdEncoding.EncodeToString(root)
	for i := range withdrawals {
		proof, err := tree.Proof(leaves[i])
		if err != nil {
			return nil, err
		}
		withdrawals[i].MerkleRoot = encodedRoot
		withdrawals[i].MerkleProof = make([]string, len(proof))
		for j, p := range proof {
			withdrawals[i].MerkleProof[j] = base64.StdEncoding.EncodeToString(p)
		}
	}
	return root, nil
}

func (h *L2Handler) EndBlock(context.Context, *monitor.Block) error {
	return nil
}
