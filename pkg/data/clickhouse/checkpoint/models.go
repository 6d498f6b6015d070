package checkpoint

// Checkpoint is one row of the checkpoints table. Rows are keyed by program
// id; Timestamp is the write time in Unix seconds and picks the latest row.
type Checkpoint struct {
	ProgramID string `json:"program_id"`
	TxSig     string `json:"tx_sig"`
	Slot      uint64 `json:"slot"`
	BlockTime int64  `json:"block_time"`
	Timestamp int64  `json:"timestamp"`
}
