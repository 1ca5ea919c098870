package domain

import "time"

// Message is one append-only log entry per answered question. Entries are
// immutable once created.
type Message struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	Content   string    `bson:"content" json:"content"`
	Response  string    `bson:"response" json:"response"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
