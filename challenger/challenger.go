// Package challenger records what L1 observed about the bridge so it can be
// checked against what the executor committed on L2.
package challenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/metrics"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

type Store interface {
	monitor.Store
	SaveChallengerDeposits(ctx context.Context, deposits []models.ChallengerDeposit) error
	SaveFinalizedWithdrawals(ctx context.Context, withdrawals []models.FinalizedWithdrawal) error
}

type Config struct {
	BridgeID     uint64
	StartHeight  int64
	PollInterval time.Duration
}

type Challenger struct {
	monitor *monitor.Monitor
}

type ChallengerOpts struct {
	Config   Config
	Store    Store
	L1Client monitor.ChainClient
	Metrics  metrics.Metricer
	Logger   *slog.Logger
}

func NewChallenger(opts ChallengerOpts) (*Challenger, error) {
	if opts.Store == nil {
		return nil, errors.New("challenger requires a store")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m, err := monitor.New(monitor.Opts{
		Name:         types.ChallengerL1Monitor,
		Client:       opts.L1Client,
		Store:        opts.Store,
		Handler:      NewL1Handler(opts.Config.BridgeID, opts.Store, opts.Logger),
		StartHeight:  opts.Config.StartHeight,
		PollInterval: opts.Config.PollInterval,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create challenger monitor: %w", err)
	}
	return &Challenger{monitor: m}, nil
}

func (c *Challenger) Run(ctx context.Context) error {
	return c.monitor.Run(ctx)
}

// L1Handler stores the bridge's deposits and withdrawal finalizations.
type L1Handler struct {
	bridgeID uint64
	store    Store
	logger   *slog.Logger
}

var _ monitor.Handler = &L1Handler{}

func NewL1Handler(bridgeID uint64, store Store, logger *slog.Logger) *L1Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &L1Handler{bridgeID: bridgeID, store: store, logger: logger.With("component", "challenger_l1")}
}

func (h *L1Handler) PrepareMonitor(context.Context) error {
	return nil
}

func (h *L1Handler) HandleNewBlock(context.Context, int64) error {
	return nil
}

func (h *L1Handler) HandleEvents(ctx context.Context, b *monitor.Block) error {
	events, err := monitor.EventsOf(b)
	if err != nil {
		return err
	}

	var (
		deposits    []models.ChallengerDeposit
		withdrawals []models.FinalizedWithdrawal
	)
	for _, ev := range events {
		switch ev.Type {
		case types.EventInitiateTokenDeposit:
			d, ok, err := h.parseDeposit(ev, b.Height())
			if err != nil {
				h.logger.Error("skipping invalid deposit event", "height", b.Height(), "attrs", monitor.AttrMap(ev), "error", err)
				continue
			}
			if ok {
				deposits = append(deposits, d)
			}
		case types.EventFinalizeTokenWithdrawal:
			w, ok, err := h.parseWithdrawal(ev, b.Height())
			if err != nil {
				h.logger.Error("skipping invalid finalized withdrawal event", "height", b.Height(), "attrs", monitor.AttrMap(ev), "error", err)
				continue
			}
			if ok {
				withdrawals = append(withdrawals, w)
			}
		}
	}

	if len(deposits) > 0 {
		if err := h.store.SaveChallengerDeposits(ctx, deposits); err != nil {
			return monitor.Transient("save challenger deposits", err)
		}
	}
	if len(withdrawals) > 0 {
		if err := h.store.SaveFinalizedWithdrawals(ctx, withdrawals); err != nil {
			return monitor.Transient("save finalized withdrawals", err)
		}
	}
	if len(deposits)+len(withdrawals) > 0 {
		h.logger.Info("recorded l1 bridge events", "height", b.Height(), "deposits", len(deposits), "withdrawals", len(withdrawals))
	}
	return nil
}

func (h *L1Handler) HandleBlock(context.Context, *monitor.Block) error {
	return nil
}

func (h *L1Handler) EndBlock(context.Context, *monitor.Block) error {
	return nil
}

// attrs reads the event's attributes and reports whether it belongs to
// this bridge.
func (h *L1Handler) attrs(ev types.Event) (map[string]string, bool, error) {
	attrs := monitor.AttrMap(ev)
	id, err := strconv.ParseUint(attrs["bridge_id"], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("invalid bridge_id %q: %w", attrs["bridge_id"], err)
	}
	return attrs, id == h.bridgeID, nil
}

func (h *L1Handler) parseDeposit(ev types.Event, height int64) (models.ChallengerDeposit, bool, error) {
	attrs, ok, err := h.attrs(ev)
	if err != nil || !ok {
		return models.ChallengerDeposit{}, false, err
	}
	sequence, err := strconv.ParseUint(attrs["l1_sequence"], 10, 64)
	if err != nil {
		return models.ChallengerDeposit{}, false, fmt.Errorf("invalid l1_sequence %q: %w", attrs["l1_sequence"], err)
	}
	return models.ChallengerDeposit{
		BridgeID: h.bridgeID,
		Sequence: sequence,
		Sender:   attrs["from"],
		Receiver: attrs["to"],
		L1Denom:  attrs["l1_denom"],
		L2Denom:  attrs["l2_denom"],
		Amount:   attrs["amount"],
		Data:     attrs["data"],
		L1Height: height,
	}, true, nil
}

func (h *L1Handler) parseWithdrawal(ev types.Event, height int64) (models.FinalizedWithdrawal, bool, error) {
	attrs, ok, err := h.attrs(ev)
	if err != nil || !ok {
		return models.FinalizedWithdrawal{}, false, err
	}
	index, err := strconv.ParseUint(attrs["output_index"], 10, 64)
	if err != nil {
		return models.FinalizedWithdrawal{}, false, fmt.Errorf("invalid output_index %q: %w", attrs["output_index"], err)
	}
	sequence, err := strconv.ParseUint(attrs["l2_sequence"], 10, 64)
	if err != nil {
		return models.FinalizedWithdrawal{}, false, fmt.Errorf("invalid l2_sequence %q: %w", attrs["l2_sequence"], err)
	}
	return models.FinalizedWithdrawal{
		BridgeID:    h.bridgeID,
		OutputIndex: index,
		Sequence:    sequence,
		Sender:      attrs["from"],
		Receiver:    attrs["to"],
		L1Denom:     attrs["l1_denom"],
		L2Denom:     attrs["l2_denom"],
		Amount:      attrs["amount"],
		L1Height:    height,
	}, true, nil
}
