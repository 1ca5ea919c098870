package domain

import "time"

// User represents a Telegram user known to the bot, with the counters that
// drive the daily message quota.
type User struct {
	UserID          int64     `bson:"user_id" json:"user_id"`
	FirstName       string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName        string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Username        string    `bson:"username,omitempty" json:"username,omitempty"`
	MessageCount    int64     `bson:"message_count" json:"message_count"`
	DailyCount      int64     `bson:"daily_count" json:"daily_count"`
	LastResetDate   time.Time `bson:"last_reset_date" json:"last_reset_date"`
	LastMessageDate time.Time `bson:"last_message_date,omitempty" json:"last_message_date,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// Profile carries the mutable identity fields delivered with every Telegram
// update. They are refreshed on each interaction to stay current.
type Profile struct {
	FirstName string
	LastName  string
	Username  string
}
