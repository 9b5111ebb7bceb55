package monitor

import (
	"testing"

	"github.com/lightlink-network/ll-opinit-bots/types"
	"github.com/stretchr/testify/require"
)

func TestEventsOf(t *testing.T) {
	empty := &Block{Meta: types.BlockMeta{Height: 1}}
	events, err := EventsOf(empty)
	require.NoError(t, err)
	require.Empty(t, events)

	pending := &Block{Meta: types.BlockMeta{Height: 2, NumTxs: 2}, Results: &types.BlockResults{
		TxsResults: []types.ExecTxResult{{}},
	}}
	_, err = EventsOf(pending)
	require.ErrorIs(t, err, ErrNotIndexed)

	ready := &Block{Meta: types.BlockMeta{Height: 3, NumTxs: 2}, Results: &types.BlockResults{
		TxsResults: []types.ExecTxResult{
			{Events: []types.Event{{Type: "a"}}},
			{Events: []types.Event{{Type: "b"}, {Type: "c"}}},
		},
	}}
	events, err = EventsOf(ready)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "c", events[2].Type)
}

func TestAttrMap(t *testing.T) {
	attrs := AttrMap(types.Event{Attributes: []types.EventAttribute{
		{Key: "bridge_id", Value: "1"},
		{Key: "amount", Value: "100"},
	}})
	require.Equal(t, map[string]string{"bridge_id": "1", "amount": "100"}, attrs)
}
