package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lightlink-network/ll-opinit-bots/types"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	sent    [][]byte
	sendErr error
}

func (b *fakeBroadcaster) SendRawTx(_ context.Context, txBytes []byte) (*types.TxResult, error) {
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	b.sent = append(b.sent, txBytes)
	return &types.TxResult{TxHash: "HASH"}, nil
}

func (b *fakeBroadcaster) WaitTx(_ context.Context, txHash string, _ time.Duration) (*types.TxResult, error) {
	return &types.TxResult{TxHash: txHash, Height: 9}, nil
}

type signed struct {
	ChainID string            `json:"chain_id"`
	Msgs    []json.RawMessage `json:"msgs"`
}

func newSigner(t *testing.T, requests chan<- signed) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/address":
			_, _ = w.Write([]byte(`{"address":"init1executor"}`))
		case "/v1/sign":
			var req signed
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			requests <- req
			_, _ = w.Write([]byte(`{"tx_bytes":"AQID"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteTransaction(t *testing.T) {
	requests := make(chan signed, 1)
	srv := newSigner(t, requests)
	b := &fakeBroadcaster{}

	w, err := NewRemote(context.Background(), RemoteOpts{SignerURI: srv.URL, ChainID: "minitia-1", Broadcaster: b})
	require.NoError(t, err)
	require.Equal(t, "init1executor", w.Address())

	res, err := w.Transaction(context.Background(), []types.Msg{
		types.MsgUpdateOracle{Sender: w.Address(), Height: 10, Data: []byte{0xff}},
	})
	require.NoError(t, err)
	require.Equal(t, "HASH", res.TxHash)
	require.Equal(t, int64(9), res.Height)
	require.Equal(t, [][]byte{{1, 2, 3}}, b.sent)

	req := <-requests
	require.Equal(t, "minitia-1", req.ChainID)
	require.Len(t, req.Msgs, 1)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Msgs[0], &msg))
	require.Equal(t, "/opinit.opchild.v1.MsgUpdateOracle", msg["@type"])
	require.Equal(t, "10", msg["height"])
}

func TestRemoteTransactionBroadcastError(t *testing.T) {
	srv := newSigner(t, make(chan signed, 1))
	b := &fakeBroadcaster{sendErr: errors.New("deposit already finalized")}

	w, err := NewRemote(context.Background(), RemoteOpts{SignerURI: srv.URL, Broadcaster: b})
	require.NoError(t, err)

	_, err = w.Transaction(context.Background(), []types.Msg{types.MsgUpdateOracle{}})
	require.EqualError(t, err, "deposit already finalized")

	_, err = w.Transaction(context.Background(), nil)
	require.Error(t, err)
}

func TestEncodeMsg(t *testing.T) {
	raw, err := EncodeMsg(types.MsgFinalizeTokenDeposit{
		Sender:    "init1executor",
		From:      "init1from",
		To:        "init1to",
		Amount:    types.Coin{Denom: "l2/uinit", Amount: "100"},
		Sequence:  7,
		Height:    42,
		BaseDenom: "uinit",
	})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "/opinit.opchild.v1.MsgFinalizeTokenDeposit", fields["@type"])
	require.Equal(t, "7", fields["sequence"])
	require.Equal(t, map[string]interface{}{"denom": "l2/uinit", "amount": "100"}, fields["amount"])
	require.NotContains(t, fields, "data")
}
