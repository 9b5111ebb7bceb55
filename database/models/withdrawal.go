package models

// Withdrawal is an L2 initiate_token_withdrawal. OutputIndex is provisional
// until the output is cut, MerkleRoot and MerkleProof are set once when it is.
type Withdrawal struct {
	BridgeID    uint64   `json:"bridge_id" bson:"bridge_id"`
	OutputIndex uint64   `json:"output_index" bson:"output_index"`
	Sequence    uint64   `json:"sequence" bson:"sequence"`
	Sender      string   `json:"sender" bson:"sender"`
	Receiver    string   `json:"receiver" bson:"receiver"`
	L1Denom     string   `json:"l1_denom" bson:"l1_denom"`
	L2Denom     string   `json:"l2_denom" bson:"l2_denom"`
	Amount      string   `json:"amount" bson:"amount"`
	L2Height    int64    `json:"l2_height" bson:"l2_height"`
	MerkleRoot  string   `json:"merkle_root" bson:"merkle_root"`
	MerkleProof []string `json:"merkle_proof" bson:"merkle_proof"`
}

// FinalizedWithdrawal is a finalize_token_withdrawal seen by the challenger on L1.
type FinalizedWithdrawal struct {
	BridgeID    uint64 `json:"bridge_id" bson:"bridge_id"`
	OutputIndex uint64 `json:"output_index" bson:"output_index"`
	Sequence    uint64 `json:"sequence" bson:"sequence"`
	Sender      string `json:"sender" bson:"sender"`
	Receiver    string `json:"receiver" bson:"receiver"`
	L1Denom     string `json:"l1_denom" bson:"l1_denom"`
	L2Denom     string `json:"l2_denom" bson:"l2_denom"`
	Amount      string `json:"amount" bson:"amount"`
	L1Height    int64  `json:"l1_height" bson:"l1_height"`
}
