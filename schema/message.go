package schema

import "time"

// ChatMessage is one entry of the append-only per-request message log.
// Sequence is assigned by the store and is the only ordering authority;
// CreatedAt is informational and may be coarse.
type ChatMessage struct {
	RequestID uint64    `json:"request_id" gorm:"primary_key;auto_increment:false"`
	Sequence  uint64    `json:"sequence" gorm:"primary_key;auto_increment:false"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
