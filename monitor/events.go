package monitor

import (
	"github.com/lightlink-network/ll-opinit-bots/types"
)

// Block is one height of the fetch window as handed to a Handler.
type Block struct {
	Meta    types.BlockMeta
	Block   *types.Block
	Results *types.BlockResults
}

func (b *Block) Height() int64 {
	return b.Meta.Height
}

// EventsOf flattens the tx events of b. A block with txs whose results are
// missing or short yields ErrNotIndexed rather than an empty list.
func EventsOf(b *Block) ([]types.Event, error) {
	if b.Meta.NumTxs == 0 {
		return nil, nil
	}
	if b.Results == nil || len(b.Results.TxsResults) < b.Meta.NumTxs {
		return nil, ErrNotIndexed
	}

	var events []types.Event
	for _, tx := range b.Results.TxsResults {
		events = append(events, tx.Events...)
	}
	return events, nil
}

// AttrMap indexes an event's attributes by key. Later duplicates win.
func AttrMap(ev types.Event) map[string]string {
	m := make(map[string]string, len(ev.Attributes))
	for _, attr := range ev.Attributes {
		m[attr.Key] = attr.Value
	}
	return m
}
