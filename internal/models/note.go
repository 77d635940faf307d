package models

// Note is a single synchronized text note. Timestamps are Unix milliseconds.
type Note struct {
	ID             string  `json:"id"`
	AuthorID       string  `json:"author"`
	AuthorUsername string  `json:"author_username"`
	AuthorName     string  `json:"author_name"`
	ClientID       *string `json:"client_id"`
	Subject        string  `json:"subject"`
	Text           string  `json:"text"`
	CreatedAt      int64   `json:"created_at"`
	UpdatedAt      int64   `json:"updated_at"`
	UploadedAt     int64   `json:"uploaded_at"`
	Deleted        bool    `json:"deleted"`
}

// Field limits of the notes table.
const (
	MaxSubjectLength    = 200
	MaxAuthorNameLength = 150
	MaxClientIDLength   = 255
)
