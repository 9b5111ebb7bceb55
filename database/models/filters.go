package models

// Page selects a window of a list query.
type Page struct {
	Offset     int64
	Limit      int64
	Descending bool
}

type WithdrawalFilter struct {
	Address  string
	Sequence *uint64
}

type PaginatedResult struct {
	Items      interface{} `json:"items"`
	TotalCount int64       `json:"total_count"`
	Offset     int64       `json:"offset"`
	Limit      int64       `json:"limit"`
}

// Claim is everything an L1 user needs to finalize a withdrawal.
type Claim struct {
	Withdrawal
	Version       string `json:"version"`
	StateRoot     string `json:"state_root"`
	LastBlockHash string `json:"last_block_hash"`
}
