package models

// Output is the commitment for one epoch of L2 blocks. Byte fields are base64.
type Output struct {
	OutputIndex      uint64 `json:"output_index" bson:"output_index"`
	OutputRoot       string `json:"output_root" bson:"output_root"`
	StateRoot        string `json:"state_root" bson:"state_root"`
	MerkleRoot       string `json:"merkle_root" bson:"merkle_root"`
	LastBlockHash    string `json:"last_block_hash" bson:"last_block_hash"`
	StartBlockNumber int64  `json:"start_block_number" bson:"start_block_number"`
	EndBlockNumber   int64  `json:"end_block_number" bson:"end_block_number"`
}
