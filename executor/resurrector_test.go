package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/lightlink-network/ll-opinit-bots/database/models"
	"github.com/lightlink-network/ll-opinit-bots/lcd"
	"github.com/lightlink-network/ll-opinit-bots/monitor"
	"github.com/stretchr/testify/require"
)

func pendingDeposit(seq uint64, reason string) models.UnconfirmedDeposit {
	return models.UnconfirmedDeposit{
		BridgeID: 1,
		Sequence: seq,
		Sender:   "init1from",
		Receiver: "init1to",
		L1Denom:  "uinit",
		L2Denom:  "l2/uinit",
		Amount:   "100",
		L1Height: 10,
		Error:    reason,
	}
}

func newTestResurrector(store *memStore, wallet *fakeWallet, notifier *recordingNotifier) *Resurrector {
	return NewResurrector(ResurrectorOpts{Store: store, Wallet: wallet, Notifier: notifier})
}

func TestResurrectNothingPending(t *testing.T) {
	wallet := &fakeWallet{}
	r := newTestResurrector(newMemStore(), wallet, &recordingNotifier{})

	require.NoError(t, r.Resurrect(context.Background()))
	require.Empty(t, wallet.txs)
}

func TestResurrectBatch(t *testing.T) {
	store := newMemStore()
	for seq := uint64(1); seq <= 3; seq++ {
		store.unconfirmed = append(store.unconfirmed, pendingDeposit(seq, "timeout"))
	}
	wallet := &fakeWallet{}
	notifier := &recordingNotifier{}
	r := newTestResurrector(store, wallet, notifier)

	require.NoError(t, r.Resurrect(context.Background()))
	require.Equal(t, [][]uint64{{1, 2, 3}}, wallet.sequences())
	require.Equal(t, map[uint64]bool{1: true, 2: true, 3: true}, store.processed())
	require.Equal(t, []string{"deposit-1-1", "deposit-1-2", "deposit-1-3"}, notifier.resolved)
}

func TestResurrectPoisonPill(t *testing.T) {
	store := newMemStore()
	for seq := uint64(1); seq <= 4; seq++ {
		store.unconfirmed = append(store.unconfirmed, pendingDeposit(seq, "timeout"))
	}
	wallet := &fakeWallet{fail: failSequence(3, &lcd.TxError{
		TxHash: "BAD",
		Code:   5,
		RawLog: "failed to execute message; message index: 0: deposit already finalized",
	})}
	r := newTestResurrector(store, wallet, &recordingNotifier{})

	require.NoError(t, r.Resurrect(context.Background()))
	require.Equal(t, [][]uint64{{1, 2, 3, 4}, {1}, {2}, {3}, {4}}, wallet.sequences())
	require.Equal(t, map[uint64]bool{1: true, 2: true, 3: true, 4: true}, store.processed())

	// retired rows are never submitted again
	require.NoError(t, r.Resurrect(context.Background()))
	require.Len(t, wallet.txs, 5)
}

func TestResurrectRetiresStoredPermanentErrors(t *testing.T) {
	store := newMemStore()
	store.unconfirmed = []models.UnconfirmedDeposit{
		pendingDeposit(1, "tx ABC failed with code 5: not allowed to receive funds"),
		pendingDeposit(2, "timeout"),
	}
	wallet := &fakeWallet{}
	r := newTestResurrector(store, wallet, &recordingNotifier{})

	require.NoError(t, r.Resurrect(context.Background()))
	require.Equal(t, [][]uint64{{2}}, wallet.sequences())
	require.Equal(t, map[uint64]bool{1: true, 2: true}, store.processed())
}

func TestResurrectResolvesRetiredRows(t *testing.T) {
	store := newMemStore()
	store.unconfirmed = []models.UnconfirmedDeposit{
		pendingDeposit(1, "deposit already finalized"),
		pendingDeposit(2, "timeout"),
		pendingDeposit(3, "timeout"),
	}
	wallet := &fakeWallet{fail: failSequence(3, errors.New("not allowed to receive funds"))}
	notifier := &recordingNotifier{}
	r := newTestResurrector(store, wallet, notifier)

	require.NoError(t, r.Resurrect(context.Background()))
	require.Equal(t, map[uint64]bool{1: true, 2: true, 3: true}, store.processed())
	require.Equal(t, []string{"deposit-1-1", "deposit-1-2", "deposit-1-3"}, notifier.resolved)
	require.Empty(t, notifier.failed)
}

func TestResurrectUnclassifiedStaysPending(t *testing.T) {
	store := newMemStore()
	for seq := uint64(1); seq <= 3; seq++ {
		store.unconfirmed = append(store.unconfirmed, pendingDeposit(seq, ""))
	}
	wallet := &fakeWallet{fail: failSequence(2, errors.New("out of gas"))}
	notifier := &recordingNotifier{}
	r := newTestResurrector(store, wallet, notifier)

	err := r.Resurrect(context.Background())
	require.Error(t, err)
	require.Equal(t, monitor.KindUnclassified, monitor.KindOf(err))

	var itemErr *monitor.Error
	require.True(t, errors.As(err, &itemErr))
	require.Equal(t, "resurrect deposit 2", itemErr.Op)
	require.ErrorContains(t, err, "out of gas")

	require.Equal(t, map[uint64]bool{1: true, 2: false, 3: true}, store.processed())
	require.Equal(t, []string{"deposit-1-2"}, notifier.failed)
	require.Equal(t, []string{"deposit-1-1", "deposit-1-3"}, notifier.resolved)

	// the next run only retries the stuck row, on its own
	wallet.txs = nil
	wallet.fail = nil
	require.NoError(t, r.Resurrect(context.Background()))
	require.Equal(t, [][]uint64{{2}}, wallet.sequences())
	require.Equal(t, map[uint64]bool{1: true, 2: true, 3: true}, store.processed())
}

func TestResurrectChunks(t *testing.T) {
	store := newMemStore()
	for seq := uint64(1); seq <= 250; seq++ {
		store.unconfirmed = append(store.unconfirmed, pendingDeposit(seq, ""))
	}
	wallet := &fakeWallet{}
	r := newTestResurrector(store, wallet, &recordingNotifier{})

	require.NoError(t, r.Resurrect(context.Background()))
	require.Len(t, wallet.txs, 3)
	require.Len(t, wallet.txs[0], 100)
	require.Len(t, wallet.txs[1], 100)
	require.Len(t, wallet.txs[2], 50)
}

func TestResurrectRetiresCorruptRows(t *testing.T) {
	store := newMemStore()
	bad := pendingDeposit(1, "")
	bad.Data = "not base64!"
	store.unconfirmed = []models.UnconfirmedDeposit{bad, pendingDeposit(2, "")}
	wallet := &fakeWallet{}
	r := newTestResurrector(store, wallet, &recordingNotifier{})

	require.NoError(t, r.Resurrect(context.Background()))
	require.Equal(t, [][]uint64{{2}}, wallet.sequences())
	require.Equal(t, map[uint64]bool{1: true, 2: true}, store.processed())
}

func TestIsPermanentFailure(t *testing.T) {
	require.True(t, IsPermanentFailure(errors.New("deposit already finalized")))
	require.True(t, IsPermanentFailure(&lcd.TxError{RawLog: "recipient not allowed to receive funds"}))
	require.False(t, IsPermanentFailure(errors.New("account sequence mismatch")))
	require.False(t, IsPermanentFailure(nil))
}
