package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/lcd"
	"github.com/lightlink-network/ll-opinit-bots/merkle"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/lightlink-network/ll-opinit-bots/output"
	"github.com/lightlink-network/ll-opinit-bots/types"
	"github.com/stretchr/testify/require"
)

const (
	alice = "init15xs6rgdp5xs6rgdp5xs6rgdp5xs6rgdpdygncd"
	bob   = "init1k2et9v4jk2et9v4jk2et9v4jk2et9v4j0wc2vg"
)

var l1Time = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type l2Fixture struct {
	store *memStore
	lcd   *fakeLCD
	now   time.Time
}

func newL2Fixture() *l2Fixture {
	return &l2Fixture{
		store: newMemStore(),
		lcd: &fakeLCD{
			bridge: testBridge(),
			pairs:  map[string]string{"l2/uinit": "uinit"},
		},
		now: l1Time,
	}
}

func (f *l2Fixture) handler(t *testing.T) *L2Handler {
	t.Helper()
	gate := output.Gate{Threshold: output.DefaultSubmissionThreshold, Now: func() time.Time { return f.now }}
	h := NewL2Handler(L2HandlerOpts{Config: testConfig, Store: f.store, L1: f.lcd, Gate: &gate})
	require.NoError(t, h.PrepareMonitor(context.Background()))
	return h
}

func withdrawalEvent(seq, from, denom string) types.Event {
	return event(types.EventInitiateTokenWithdrawal,
		"l2_sequence", seq,
		"from", from,
		"to", bob,
		"denom", denom,
		"amount", "50",
	)
}

func l2Block(height int64, events ...types.Event) *monitor.Block {
	b := &monitor.Block{
		Meta:  types.BlockMeta{Height: height},
		Block: &types.Block{Height: height, AppHash: []byte("app-hash-32-bytes-long-xxxxxxxxx"), Hash: []byte("block-hash-32-bytes-long-xxxxxxx")},
	}
	if len(events) > 0 {
		b.Meta.NumTxs = 1
		b.Results = &types.BlockResults{Height: height, TxsResults: []types.ExecTxResult{{Events: events}}}
	}
	return b
}

func TestL2PrepareInvalidInterval(t *testing.T) {
	f := newL2Fixture()
	f.lcd.bridge.BridgeConfig.SubmissionInterval = "soon"
	h := NewL2Handler(L2HandlerOpts{Config: testConfig, Store: f.store, L1: f.lcd})

	err := h.PrepareMonitor(context.Background())
	require.Equal(t, monitor.KindInvariant, monitor.KindOf(err))
}

func TestL2HandleEventsStoresWithdrawals(t *testing.T) {
	f := newL2Fixture()
	f.store.outputs = []models.Output{{OutputIndex: 2, EndBlockNumber: 9}}
	h := f.handler(t)

	b := l2Block(12,
		withdrawalEvent("1", alice, "l2/uinit"),
		withdrawalEvent("2", alice, "l2/unknown"),
		event(types.EventInitiateTokenDeposit, "bridge_id", "1"),
	)
	require.NoError(t, h.HandleEvents(context.Background(), b))

	require.Equal(t, []models.Withdrawal{{
		BridgeID:    1,
		OutputIndex: 3,
		Sequence:    1,
		Sender:      alice,
		Receiver:    bob,
		L1Denom:     "uinit",
		L2Denom:     "l2/uinit",
		Amount:      "50",
		L2Height:    12,
	}}, f.store.withdrawals)
}

func TestL2HandleEventsSkipsInvalidWithdrawals(t *testing.T) {
	f := newL2Fixture()
	h := f.handler(t)

	bad := withdrawalEvent("x", alice, "l2/uinit")
	huge := withdrawalEvent("2", alice, "l2/uinit")
	huge.Attributes[4].Value = "1e9"
	b := l2Block(7, bad, huge, withdrawalEvent("3", alice, "l2/uinit"))
	require.NoError(t, h.HandleEvents(context.Background(), b))

	require.Len(t, f.store.withdrawals, 1)
	require.Equal(t, uint64(3), f.store.withdrawals[0].Sequence)

	// the block's output still commits
	require.NoError(t, h.HandleBlock(context.Background(), b))
	require.Len(t, f.store.outputs, 1)
}

func TestL2HandleEventsTokenPairErrorIsTransient(t *testing.T) {
	f := newL2Fixture()
	f.lcd.pairErr = errors.New("connection reset")
	h := f.handler(t)

	err := h.HandleEvents(context.Background(), l2Block(3, withdrawalEvent("1", alice, "l2/uinit")))
	require.Equal(t, monitor.KindTransient, monitor.KindOf(err))
	require.Empty(t, f.store.withdrawals)
}

func TestL2FirstOutput(t *testing.T) {
	f := newL2Fixture()
	h := f.handler(t)
	ctx := context.Background()

	b := l2Block(5, withdrawalEvent("1", alice, "l2/uinit"), withdrawalEvent("2", bob, "l2/uinit"))
	require.NoError(t, h.HandleEvents(ctx, b))
	require.NoError(t, h.HandleBlock(ctx, b))

	require.Len(t, f.store.outputs, 1)
	out := f.store.outputs[0]
	require.Equal(t, uint64(1), out.OutputIndex)
	require.Equal(t, int64(1), out.StartBlockNumber)
	require.Equal(t, int64(5), out.EndBlockNumber)

	tree, err := merkle.NewWithdrawStorage([]merkle.Withdrawal{
		{BridgeID: 1, Sequence: 1, Sender: alice, Receiver: bob, L1Denom: "uinit", Amount: 50},
		{BridgeID: 1, Sequence: 2, Sender: bob, Receiver: bob, L1Denom: "uinit", Amount: 50},
	})
	require.NoError(t, err)
	root := tree.Root()
	require.Equal(t, base64.StdEncoding.EncodeToString(root), out.MerkleRoot)

	expected := output.ComputeOutputRoot(1, b.Block.AppHash, root, b.Block.Hash)
	require.Equal(t, base64.StdEncoding.EncodeToString(expected), out.OutputRoot)

	for _, w := range f.store.withdrawals {
		require.Equal(t, out.MerkleRoot, w.MerkleRoot)
		require.Len(t, w.MerkleProof, 1)

		proof := make([][]byte, len(w.MerkleProof))
		for i, p := range w.MerkleProof {
			proof[i], err = base64.StdEncoding.DecodeString(p)
			require.NoError(t, err)
		}
		require.True(t, tree.Verify(proof, merkle.Withdrawal{
			BridgeID: w.BridgeID, Sequence: w.Sequence, Sender: w.Sender, Receiver: w.Receiver, L1Denom: w.L1Denom, Amount: 50,
		}))
	}
}

func TestL2EmptyOutput(t *testing.T) {
	f := newL2Fixture()
	h := f.handler(t)

	require.NoError(t, h.HandleBlock(context.Background(), l2Block(1)))
	require.Len(t, f.store.outputs, 1)

	empty, err := merkle.NewWithdrawStorage(nil)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(empty.Root()), f.store.outputs[0].MerkleRoot)
}

func TestL2GateWaitsForSubmission(t *testing.T) {
	f := newL2Fixture()
	f.store.outputs = []models.Output{{OutputIndex: 2, EndBlockNumber: 10}}
	h := f.handler(t)
	ctx := context.Background()

	// L1 has not seen output 2 yet
	f.lcd.proposal = &lcd.OutputProposal{OutputIndex: 1, OutputProposal: lcd.OutputInfo{L1BlockTime: l1Time}}
	f.now = l1Time.Add(time.Hour)
	require.NoError(t, h.HandleBlock(ctx, l2Block(20)))
	require.Len(t, f.store.outputs, 1)

	// output 2 landed but the threshold has not passed
	f.lcd.proposal = &lcd.OutputProposal{OutputIndex: 2, OutputProposal: lcd.OutputInfo{L1BlockTime: l1Time}}
	f.now = l1Time.Add(30 * time.Minute)
	require.NoError(t, h.HandleBlock(ctx, l2Block(21)))
	require.Len(t, f.store.outputs, 1)

	f.now = l1Time.Add(40 * time.Minute)
	require.NoError(t, h.HandleBlock(ctx, l2Block(22)))
	require.Len(t, f.store.outputs, 2)
	out := f.store.outputs[1]
	require.Equal(t, uint64(3), out.OutputIndex)
	require.Equal(t, int64(11), out.StartBlockNumber)
	require.Equal(t, int64(22), out.EndBlockNumber)
}

func TestL2GateLCDErrorIsTransient(t *testing.T) {
	f := newL2Fixture()
	f.store.outputs = []models.Output{{OutputIndex: 1, EndBlockNumber: 3}}
	f.lcd.proposalErr = errors.New("503 service unavailable")
	h := f.handler(t)

	err := h.HandleBlock(context.Background(), l2Block(4))
	require.Equal(t, monitor.KindTransient, monitor.KindOf(err))
	require.False(t, monitor.IsFatal(err))
}

func TestL2InvalidAmountIsFatal(t *testing.T) {
	f := newL2Fixture()
	f.store.withdrawals = []models.Withdrawal{{BridgeID: 1, OutputIndex: 1, Sequence: 1, Sender: alice, Receiver: bob, Amount: "lots"}}
	h := f.handler(t)

	err := h.HandleBlock(context.Background(), l2Block(2))
	require.Equal(t, monitor.KindInvariant, monitor.KindOf(err))
	require.Empty(t, f.store.outputs)
}
