package model

import "time"

// StateEntry stores one persisted session-state map as a JSON blob.
type StateEntry struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     []byte    `gorm:"type:mediumblob;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
