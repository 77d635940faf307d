package models

// Event represents an audited action.
type Event struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`  // e.g., "user.register", "note.delete"
	Level     string  `json:"level"` // e.g., "info", "warn", "error"
	Message   string  `json:"message"`
	UserID    *string `json:"userId,omitempty"` // Nullable for system-wide events
	CreatedAt int64   `json:"createdAt"`
}
