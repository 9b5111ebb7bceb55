package challenger

import (
	"context"
	"testing"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/types"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	cursors     map[string]int64
	deposits    []models.ChallengerDeposit
	withdrawals []models.FinalizedWithdrawal
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

func (s *memStore) SaveChallengerDeposits(_ context.Context, deposits []models.ChallengerDeposit) error {
	s.deposits = append(s.deposits, deposits...)
	return nil
}

func (s *memStore) SaveFinalizedWithdrawals(_ context.Context, withdrawals []models.FinalizedWithdrawal) error {
	s.withdrawals = append(s.withdrawals, withdrawals...)
	return nil
}

func event(typ string, attrs ...string) types.Event {
	ev := types.Event{Type: typ}
	for i := 0; i+1 < len(attrs); i += 2 {
		ev.Attributes = append(ev.Attributes, types.EventAttribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return ev
}

func block(height int64, events ...types.Event) *monitor.Block {
	return &monitor.Block{
		Meta:    types.BlockMeta{Height: height, NumTxs: 1},
		Results: &types.BlockResults{Height: height, TxsResults: []types.ExecTxResult{{Events: events}}},
	}
}

func TestHandleEvents(t *testing.T) {
	store := &memStore{cursors: map[string]int64{}}
	h := NewL1Handler(1, store, nil)

	b := block(30,
		event(types.EventInitiateTokenDeposit,
			"bridge_id", "1", "l1_sequence", "4", "from", "init1from", "to", "init1to",
			"l1_denom", "uinit", "l2_denom", "l2/uinit", "amount", "100", "data", ""),
		event(types.EventInitiateTokenDeposit, "bridge_id", "2", "l1_sequence", "5"),
		event(types.EventFinalizeTokenWithdrawal,
			"bridge_id", "1", "output_index", "3", "l2_sequence", "9", "from", "init1a", "to", "init1b",
			"l1_denom", "uinit", "l2_denom", "l2/uinit", "amount", "25"),
		event("transfer", "amount", "1"),
	)
	require.NoError(t, h.HandleEvents(context.Background(), b))

	require.Equal(t, []models.ChallengerDeposit{{
		BridgeID: 1, Sequence: 4, Sender: "init1from", Receiver: "init1to",
		L1Denom: "uinit", L2Denom: "l2/uinit", Amount: "100", L1Height: 30,
	}}, store.deposits)
	require.Equal(t, []models.FinalizedWithdrawal{{
		BridgeID: 1, OutputIndex: 3, Sequence: 9, Sender: "init1a", Receiver: "init1b",
		L1Denom: "uinit", L2Denom: "l2/uinit", Amount: "25", L1Height: 30,
	}}, store.withdrawals)
}

func TestHandleEventsSkipsInvalidEvents(t *testing.T) {
	store := &memStore{cursors: map[string]int64{}}
	h := NewL1Handler(1, store, nil)

	b := block(3,
		event(types.EventFinalizeTokenWithdrawal, "bridge_id", "1", "output_index", "x"),
		event(types.EventInitiateTokenDeposit, "bridge_id", "one", "l1_sequence", "1"),
		event(types.EventInitiateTokenDeposit, "bridge_id", "1", "l1_sequence", "-2"),
		event(types.EventInitiateTokenDeposit, "bridge_id", "1", "l1_sequence", "3", "amount", "7"),
	)
	require.NoError(t, h.HandleEvents(context.Background(), b))
	require.Len(t, store.deposits, 1)
	require.Equal(t, uint64(3), store.deposits[0].Sequence)
	require.Empty(t, store.withdrawals)
}

func TestHandleEventsNotIndexed(t *testing.T) {
	h := NewL1Handler(1, &memStore{cursors: map[string]int64{}}, nil)

	b := block(4)
	b.Results = nil
	require.ErrorIs(t, h.HandleEvents(context.Background(), b), monitor.ErrNotIndexed)
}

func TestNewChallenger(t *testing.T) {
	_, err := NewChallenger(ChallengerOpts{})
	require.Error(t, err)
}
