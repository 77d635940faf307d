package models

import "time"

// Backup describes an archive written to a backup sink.
type Backup struct {
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Notes     int       `json:"notes"`
	Size      int64     `json:"size"`
	Encrypted bool      `json:"encrypted"`
	CreatedAt time.Time `json:"createdAt"`
}
