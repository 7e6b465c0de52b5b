package domain

import "time"

// Card is a single flashcard, tagged with the path it was created under.
type Card struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Path      Path      `json:"path"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}
