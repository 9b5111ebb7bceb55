package types

// Event types emitted by the opinit bridge modules
const (
	// EventInitiateTokenDeposit - emitted on L1 when a user locks tokens for the L2
	EventInitiateTokenDeposit = "initiate_token_deposit"

	// EventInitiateTokenWithdrawal - emitted on L2 when a user burns tokens to withdraw to L1
	EventInitiateTokenWithdrawal = "initiate_token_withdrawal"

	// EventFinalizeTokenWithdrawal - emitted on L1 when a withdrawal is claimed against an output
	EventFinalizeTokenWithdrawal = "finalize_token_withdrawal"
)

// Monitor names. Each one is also the key of the monitor's cursor row.
const (
	ExecutorL1Monitor   = "executor_l1_monitor"
	ExecutorL2Monitor   = "executor_l2_monitor"
	ChallengerL1Monitor = "challenger_l1_monitor"

	// OracleHeight is the last L1 height relayed to the L2 oracle
	OracleHeight = "oracle_height"
)
