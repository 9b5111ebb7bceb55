package types

import "time"

// BlockMeta is the header summary returned by the blockchain range query.
type BlockMeta struct {
	Height int64
	NumTxs int
	Hash   []byte
}

type Block struct {
	Height  int64
	Time    time.Time
	AppHash []byte
	Hash    []byte
	Txs     [][]byte
}

// BlockResults holds the execution results of every tx in a block. It is
// empty for a block with txs until the node has indexed it.
type BlockResults struct {
	Height     int64
	TxsResults []ExecTxResult
}

type ExecTxResult struct {
	Code   uint32
	Log    string
	Events []Event
}

type Event struct {
	Type       string
	Attributes []EventAttribute
}

type EventAttribute struct {
	Key   string
	Value string
}

// TxResult is the outcome of a broadcast transaction.
type TxResult struct {
	TxHash string `json:"txhash"`
	Height int64  `json:"height,string"`
	Code   uint32 `json:"code"`
	RawLog string `json:"raw_log"`
}
