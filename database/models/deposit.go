package models

// Deposit is an L1 initiate_token_deposit handled by the executor.
type Deposit struct {
	BridgeID    uint64 `json:"bridge_id" bson:"bridge_id"`
	Sequence    uint64 `json:"sequence" bson:"sequence"`
	Sender      string `json:"sender" bson:"sender"`
	Receiver    string `json:"receiver" bson:"receiver"`
	L1Denom     string `json:"l1_denom" bson:"l1_denom"`
	L2Denom     string `json:"l2_denom" bson:"l2_denom"`
	Amount      string `json:"amount" bson:"amount"`
	Data        string `json:"data" bson:"data"`
	OutputIndex uint64 `json:"output_index" bson:"output_index"`
	L1Height    int64  `json:"l1_height" bson:"l1_height"`
}

// UnconfirmedDeposit is a deposit whose finalize message failed on L2. Rows
// are never deleted, Processed only moves from false to true.
type UnconfirmedDeposit struct {
	BridgeID  uint64 `json:"bridge_id" bson:"bridge_id"`
	Sequence  uint64 `json:"sequence" bson:"sequence"`
	Sender    string `json:"sender" bson:"sender"`
	Receiver  string `json:"receiver" bson:"receiver"`
	L1Denom   string `json:"l1_denom" bson:"l1_denom"`
	L2Denom   string `json:"l2_denom" bson:"l2_denom"`
	Amount    string `json:"amount" bson:"amount"`
	Data      string `json:"data" bson:"data"`
	L1Height  int64  `json:"l1_height" bson:"l1_height"`
	Error     string `json:"error" bson:"error"`
	Processed bool   `json:"processed" bson:"processed"`
}

// ChallengerDeposit is a deposit as observed by the challenger on L1.
type ChallengerDeposit struct {
	BridgeID uint64 `json:"bridge_id" bson:"bridge_id"`
	Sequence uint64 `json:"sequence" bson:"sequence"`
	Sender   string `json:"sender" bson:"sender"`
	Receiver string `json:"receiver" bson:"receiver"`
	L1Denom  string `json:"l1_denom" bson:"l1_denom"`
	L2Denom  string `json:"l2_denom" bson:"l2_denom"`
	Amount   string `json:"amount" bson:"amount"`
	Data     string `json:"data" bson:"data"`
	L1Height int64  `json:"l1_height" bson:"l1_height"`
}
