package types

import (
	"fmt"
	"time"
)

// Msg is a chain message that can be signed and broadcast.
type Msg interface {
	TypeURL() string
}

type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type BridgeConfig struct {
	Challengers         []string  `json:"challengers"`
	Proposer            string    `json:"proposer"`
	SubmissionInterval  string    `json:"submission_interval"`
	FinalizationPeriod  string    `json:"finalization_period"`
	SubmissionStartTime time.Time `json:"submission_start_time"`
	Metadata            []byte    `json:"metadata,omitempty"`
}

// Interval parses the submission interval, e.g. "3600s".
func (c BridgeConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.SubmissionInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid submission interval %q: %w", c.SubmissionInterval, err)
	}
	return d, nil
}

type BridgeInfo struct {
	BridgeID     uint64       `json:"bridge_id,string"`
	BridgeAddr   string       `json:"bridge_addr"`
	L1ChainID    string       `json:"l1_chain_id"`
	L1ClientID   string       `json:"l1_client_id"`
	BridgeConfig BridgeConfig `json:"bridge_config"`
}

// MsgFinalizeTokenDeposit mints a deposit on L2.
type MsgFinalizeTokenDeposit struct {
	Sender    string `json:"sender"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    Coin   `json:"amount"`
	Sequence  uint64 `json:"sequence,string"`
	Height    uint64 `json:"height,string"`
	BaseDenom string `json:"base_denom"`
	Data      []byte `json:"data,omitempty"`
}

func (MsgFinalizeTokenDeposit) TypeURL() string { return "/opinit.opchild.v1.MsgFinalizeTokenDeposit" }

// MsgUpdateOracle relays an L1 oracle tx to L2.
type MsgUpdateOracle struct {
	Sender string `json:"sender"`
	Height uint64 `json:"height,string"`
	Data   []byte `json:"data"`
}

func (MsgUpdateOracle) TypeURL() string { return "/opinit.opchild.v1.MsgUpdateOracle" }

type MsgSetBridgeInfo struct {
	Sender     string     `json:"sender"`
	BridgeInfo BridgeInfo `json:"bridge_info"`
}

func (MsgSetBridgeInfo) TypeURL() string { return "/opinit.opchild.v1.MsgSetBridgeInfo" }

// MsgProposeOutput submits an output root to L1.
type MsgProposeOutput struct {
	Proposer      string `json:"proposer"`
	BridgeID      uint64 `json:"bridge_id,string"`
	OutputIndex   uint64 `json:"output_index,string"`
	L2BlockNumber uint64 `json:"l2_block_number,string"`
	OutputRoot    []byte `json:"output_root"`
}

func (MsgProposeOutput) TypeURL() string { return "/opinit.ophost.v1.MsgProposeOutput" }
