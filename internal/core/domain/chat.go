package domain

// ChatMessage is a single chat transcript entry. Timestamp is Unix
// milliseconds to match what clients render directly.
type ChatMessage struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	IsAdmin   bool   `json:"isAdmin"`
}
