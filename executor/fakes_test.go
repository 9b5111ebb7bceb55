package executor

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/lcd"
	"github.com/lightlink-network/ll-opinit-bots/types"
)

type fakeWallet struct {
	txs  [][]types.Msg
	fail func(msgs []types.Msg) error
}

func (w *fakeWallet) Address() string {
	return "init1executor"
}

func (w *fakeWallet) Transaction(_ context.Context, msgs []types.Msg) (*types.TxResult, error) {
	w.txs = append(w.txs, msgs)
	if w.fail != nil {
		if err := w.fail(msgs); err != nil {
			return nil, err
		}
	}
	return &types.TxResult{TxHash: fmt.Sprintf("TX%d", len(w.txs)), Height: 1}, nil
}

// sequences returns the deposit sequences of every submitted tx.
func (w *fakeWallet) sequences() [][]uint64 {
	var out [][]uint64
	for _, tx := range w.txs {
		var seqs []uint64
		for _, msg := range tx {
			if m, ok := msg.(types.MsgFinalizeTokenDeposit); ok {
				seqs = append(seqs, m.Sequence)
			}
		}
		out = append(out, seqs)
	}
	return out
}

func failSequence(seq uint64, err error) func([]types.Msg) error {
	return func(msgs []types.Msg) error {
		for _, msg := range msgs {
			if m, ok := msg.(types.MsgFinalizeTokenDeposit); ok && m.Sequence == seq {
				return err
			}
		}
		return nil
	}
}

type memStore struct {
	cursors     map[string]int64
	outputs     []models.Output
	deposits    []models.Deposit
	unconfirmed []models.UnconfirmedDeposit
	withdrawals []models.Withdrawal
}

func newMemStore() *memStore {
	return &memStore{cursors: map[string]int64{}}
}

func (s *memStore) GetCursor(_ context.Context, name string) (int64, bool, error) {
	h, ok := s.cursors[name]
	return h, ok, nil
}

func (s *memStore) SaveCursor(_ context.Context, name string, height int64) error {
	s.cursors[name] = height
	return nil
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *memStore) GetLastOutput(context.Context) (*models.Output, error) {
	if len(s.outputs) == 0 {
		return nil, nil
	}
	last := s.outputs[len(s.outputs)-1]
	return &last, nil
}

func (s *memStore) SaveOutput(_ context.Context, output models.Output) error {
	s.outputs = append(s.outputs, output)
	return nil
}

func (s *memStore) SaveDeposits(_ context.Context, deposits []models.Deposit) error {
	s.deposits = append(s.deposits, deposits...)
	return nil
}

func (s *memStore) SaveUnconfirmedDeposits(_ context.Context, deposits []models.UnconfirmedDeposit) error {
	s.unconfirmed = append(s.unconfirmed, deposits...)
	return nil
}

func (s *memStore) GetPendingUnconfirmedDeposits(context.Context) ([]models.UnconfirmedDeposit, error) {
	var pending []models.UnconfirmedDeposit
	for _, d := range s.unconfirmed {
		if !d.Processed {
			pending = append(pending, d)
		}
	}
	return pending, nil
}

func (s *memStore) MarkDepositsProcessed(_ context.Context, deposits []models.UnconfirmedDeposit) error {
	for _, d := range deposits {
		for i := range s.unconfirmed {
			if s.unconfirmed[i].BridgeID == d.BridgeID && s.unconfirmed[i].Sequence == d.Sequence {
				s.unconfirmed[i].Processed = true
			}
		}
	}
	return nil
}

func (s *memStore) RecordDepositErrors(_ context.Context, deposits []models.UnconfirmedDeposit) error {
	for _, d := range deposits {
		for i := range s.unconfirmed {
			if s.unconfirmed[i].BridgeID == d.BridgeID && s.unconfirmed[i].Sequence == d.Sequence && !s.unconfirmed[i].Processed {
				s.unconfirmed[i].Error = d.Error
			}
		}
	}
	return nil
}

func (s *memStore) processed() map[uint64]bool {
	out := map[uint64]bool{}
	for _, d := range s.unconfirmed {
		out[d.Sequence] = d.Processed
	}
	return out
}

func (s *memStore) SaveWithdrawals(_ context.Context, withdrawals []models.Withdrawal) error {
	s.withdrawals = append(s.withdrawals, withdrawals...)
	return nil
}

func (s *memStore) GetWithdrawalsByOutputIndex(_ context.Context, index uint64) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	for _, w := range s.withdrawals {
		if w.OutputIndex == index {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memStore) UpdateWithdrawalProofs(_ context.Context, withdrawals []models.Withdrawal) error {
	for _, w := range withdrawals {
		for i := range s.withdrawals {
			if s.withdrawals[i].BridgeID == w.BridgeID && s.withdrawals[i].Sequence == w.Sequence && s.withdrawals[i].MerkleRoot == "" {
				s.withdrawals[i].MerkleRoot = w.MerkleRoot
				s.withdrawals[i].MerkleProof = slices.Clone(w.MerkleProof)
			}
		}
	}
	return nil
}

type fakeLCD struct {
	bridge      lcd.Bridge
	bridgeErr   error
	proposal    *lcd.OutputProposal
	proposalErr error
	pairs       map[string]string
	pairErr     error
	info        *types.BridgeInfo
	infoErr     error
}

func (l *fakeLCD) Bridge(context.Context, uint64) (*lcd.Bridge, error) {
	if l.bridgeErr != nil {
		return nil, l.bridgeErr
	}
	b := l.bridge
	return &b, nil
}

func (l *fakeLCD) LastOutputProposal(context.Context, uint64) (*lcd.OutputProposal, error) {
	if l.proposalErr != nil {
		return nil, l.proposalErr
	}
	if l.proposal == nil {
		return nil, lcd.ErrNotFound
	}
	return l.proposal, nil
}

func (l *fakeLCD) TokenPairByL2Denom(_ context.Context, _ uint64, l2Denom string) (*lcd.TokenPair, error) {
	if l.pairErr != nil {
		return nil, l.pairErr
	}
	l1Denom, ok := l.pairs[l2Denom]
	if !ok {
		return nil, fmt.Errorf("token pair %s: %w", l2Denom, lcd.ErrNotFound)
	}
	return &lcd.TokenPair{L1Denom: l1Denom, L2Denom: l2Denom}, nil
}

func (l *fakeLCD) BridgeInfo(context.Context) (*types.BridgeInfo, error) {
	if l.infoErr != nil {
		return nil, l.infoErr
	}
	if l.info == nil {
		return nil, lcd.ErrNotFound
	}
	return l.info, nil
}

type fakeBlocks map[int64]*types.Block

func (b fakeBlocks) Block(_ context.Context, height int64) (*types.Block, error) {
	blk, ok := b[height]
	if !ok {
		return nil, fmt.Errorf("block %d not found", height)
	}
	return blk, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	failed   []string
	resolved []string
}

func (n *recordingNotifier) Failed(_ context.Context, key, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, key)
}

func (n *recordingNotifier) Resolved(_ context.Context, key, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, key)
}

func event(typ string, attrs ...string) types.Event {
	ev := types.Event{Type: typ}
	for i := 0; i+1 < len(attrs); i += 2 {
		ev.Attributes = append(ev.Attributes, types.EventAttribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return ev
}
