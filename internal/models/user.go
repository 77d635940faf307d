package models

// User represents a user account in the system.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Never expose this to the client
	CreatedAt    int64  `json:"createdAt"`
	// TokenGeneration is bumped on every credential reset. Signed tokens
	// carry the generation they were issued under.
	TokenGeneration int64 `json:"-"`
}

// MaxUsernameLength bounds usernames at registration.
const MaxUsernameLength = 150
