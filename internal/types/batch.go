package types

// TxBatch is the log output of a single confirmed transaction as observed by a
// log source. Signature uniquely identifies the transaction and Slot is the
// ledger sequence number it landed in. BlockTime is optional: push
// notifications do not carry it.
type TxBatch struct {
	Signature string   `json:"signature"`
	Slot      uint64   `json:"slot"`
	Logs      []string `json:"logs"`
	BlockTime *int64   `json:"blockTime,omitempty"`
}
