package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lightlink-network/ll-opinit-bots/alert"
	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/metrics"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

const resurrectChunkSize = 100

type Wallet interface {
	Address() string
	Transaction(ctx context.Context, msgs []types.Msg) (*types.TxResult, error)
}

type ResurrectorStore interface {
	GetPendingUnconfirmedDeposits(ctx context.Context) ([]models.UnconfirmedDeposit, error)
	MarkDepositsProcessed(ctx context.Context, deposits []models.UnconfirmedDeposit) error
}

// Resurrector resubmits deposits whose finalize message failed on L2.
type Resurrector struct {
	store    ResurrectorStore
	wallet   Wallet
	notifier alert.Notifier
	metrics  metrics.Metricer
	logger   *slog.Logger
}

type ResurrectorOpts struct {
	Store    ResurrectorStore
	Wallet   Wallet
	Notifier alert.Notifier
	Metrics  metrics.Metricer
	Logger   *slog.Logger
}

func NewResurrector(opts ResurrectorOpts) *Resurrector {
	if opts.Notifier == nil {
		opts.Notifier = alert.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopMetrics
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Resurrector{
		store:    opts.Store,
		wallet:   opts.Wallet,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "resurrector"),
	}
}

// Resurrect retries every pending deposit. Rows that land or fail
// permanently are marked processed. The returned error joins one
// KindUnclassified error per row that is still pending.
func (r *Resurrector) Resurrect(ctx context.Context) error {
	pending, err := r.store.GetPendingUnconfirmedDeposits(ctx)
	if err != nil {
		return monitor.Transient("load unconfirmed deposits", err)
	}
	if len(pending) == 0 {
		return nil
	}

	var retired, retry []models.UnconfirmedDeposit
	for _, d := range pending {
		if isPermanentMessage(d.Error) {
			retired = append(retired, d)
		} else {
			retry = append(retry, d)
		}
	}
	if len(retired) > 0 {
		if err := r.store.MarkDepositsProcessed(ctx, retired); err != nil {
			return monitor.Transient("retire deposits", err)
		}
		r.metrics.RecordPermanentFailure(len(retired))
		r.logger.Info("retired deposits with permanent errors", "count", len(retired))
		r.resolveRetired(ctx, retired)
	}

	var errs []error
	for chunk := range slices.Chunk(retry, resurrectChunkSize) {
		if err := r.resurrectChunk(ctx, chunk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Resurrector) resurrectChunk(ctx context.Context, chunk []models.UnconfirmedDeposit) error {
	var (
		landed    []models.UnconfirmedDeposit
		permanent []models.UnconfirmedDeposit
		errs      []error
	)

	// rows whose stored fields cannot form a message are retired
	valid := make([]models.UnconfirmedDeposit, 0, len(chunk))
	msgs := make([]types.Msg, 0, len(chunk))
	for _, d := range chunk {
		msg, err := finalizeMsg(r.wallet.Address(), d)
		if err != nil {
			r.logger.Error("invalid unconfirmed deposit, retiring", "sequence", d.Sequence, "error", err)
			d.Error = err.Error()
			permanent = append(permanent, d)
			continue
		}
		valid = append(valid, d)
		msgs = append(msgs, msg)
	}

	if len(valid) > 1 {
		batchKey := fmt.Sprintf("%d-%d", valid[0].Sequence, valid[len(valid)-1].Sequence)
		res, err := r.wallet.Transaction(ctx, msgs)
		if err == nil {
			r.logger.Info("resurrected deposits", "count", len(valid), "txhash", res.TxHash, "batchKey", batchKey)
			return r.finish(ctx, valid, permanent)
		}
		r.logger.Warn("batch resurrection failed, submitting individually", "batchKey", batchKey, "error", err)
	}

	for i, d := range valid {
		res, err := r.wallet.Transaction(ctx, msgs[i:i+1])
		switch {
		case err == nil:
			r.logger.Info("resurrected deposit", "sequence", d.Sequence, "txhash", res.TxHash)
			landed = append(landed, d)
		case IsPermanentFailure(err):
			r.logger.Warn("deposit failed permanently, retiring", "sequence", d.Sequence, "error", err)
			d.Error = err.Error()
			permanent = append(permanent, d)
		default:
			r.logger.Error("failed to resurrect deposit", "sequence", d.Sequence, "error", err)
			r.notifier.Failed(ctx, depositKey(d.BridgeID, d.Sequence),
				fmt.Sprintf("deposit %d of bridge %d failed to finalize: %v", d.Sequence, d.BridgeID, err))
			errs = append(errs, &monitor.Error{
				Kind: monitor.KindUnclassified,
				Op:   fmt.Sprintf("resurrect deposit %d", d.Sequence),
				Err:  err,
			})
		}
	}

	if err := r.finish(ctx, landed, permanent); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Resurrector) finish(ctx context.Context, landed, permanent []models.UnconfirmedDeposit) error {
	done := slices.Concat(landed, permanent)
	if len(done) == 0 {
		return nil
	}
	if err := r.store.MarkDepositsProcessed(ctx, done); err != nil {
		return monitor.Transient("mark deposits processed", err)
	}

	if len(permanent) > 0 {
		r.metrics.RecordPermanentFailure(len(permanent))
	}
	if len(landed) > 0 {
		r.metrics.RecordResurrected(len(landed))
	}
	for _, d := range landed {
		r.notifier.Resolved(ctx, depositKey(d.BridgeID, d.Sequence),
			fmt.Sprintf("deposit %d of bridge %d finalized", d.Sequence, d.BridgeID))
	}
	r.resolveRetired(ctx, permanent)
	return nil
}

// resolveRetired closes the alerts of rows that will never be submitted again.
func (r *Resurrector) resolveRetired(ctx context.Context, retired []models.UnconfirmedDeposit) {
	for _, d := range retired {
		r.notifier.Resolved(ctx, depositKey(d.BridgeID, d.Sequence),
			fmt.Sprintf("deposit %d of bridge %d retired without finalizing: %s", d.Sequence, d.BridgeID, d.Error))
	}
}
