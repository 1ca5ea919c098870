package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userCollection interface {
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type insertCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// UserRepository persists and retrieves users in MongoDB.
type UserRepository struct {
	collection userCollection
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(collection userCollection) *UserRepository {
	return &UserRepository{collection: collection}
}

// GetOrCreate upserts the user keyed by Telegram user_id and returns the
// resulting record. Profile fields are refreshed on every call; counters and
// last_reset_date are seeded only on insert.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, profile Profile) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if userID == 0 {
		return User{}, errors.New("user_id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"first_name": profile.FirstName,
			"last_name":  profile.LastName,
			"username":   profile.Username,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":         userID,
			"message_count":   int64(0),
			"daily_count":     int64(0),
			"last_reset_date": now,
			"created_at":      now,
		},
	}

	result := r.collection.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		update,
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	)
	if result == nil {
		return User{}, errors.New("upsert user returned no result")
	}
	if err := result.Err(); err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}

	var user User
	if err := result.Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// ResetDailyCount zeroes the daily counter and stamps last_reset_date, then
// returns the updated record. Called once per user per calendar-day boundary.
func (r *UserRepository) ResetDailyCount(ctx context.Context, userID int64, now time.Time) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if userID == 0 {
		return User{}, errors.New("user_id is required")
	}

	now = now.UTC().Truncate(time.Millisecond)
	result := r.collection.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"daily_count":     int64(0),
			"last_reset_date": now,
			"updated_at":      now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result == nil {
		return User{}, errors.New("reset daily count returned no result")
	}
	if err := result.Err(); err != nil {
		return User{}, fmt.Errorf("reset daily count: %w", err)
	}

	var user User
	if err := result.Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// RecordAnswer increments the lifetime and daily counters and stamps
// last_message_date. Counters move only after an answer was produced.
func (r *UserRepository) RecordAnswer(ctx context.Context, userID int64) error {
	if r == nil || r.collection == nil {
		return errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if userID == 0 {
		return errors.New("user_id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$inc": bson.M{
				"message_count": int64(1),
				"daily_count":   int64(1),
			},
			"$set": bson.M{
				"last_message_date": now,
				"updated_at":        now,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}

	return nil
}

// MessageRepository appends answered-question log entries in MongoDB.
type MessageRepository struct {
	collection insertCollection
}

// NewMessageRepository constructs a MessageRepository.
func NewMessageRepository(collection insertCollection) *MessageRepository {
	return &MessageRepository{collection: collection}
}

// Append inserts one immutable log entry for an answered question.
func (r *MessageRepository) Append(ctx context.Context, userID int64, content, response string) error {
	if r == nil || r.collection == nil {
		return errors.New("message repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if userID == 0 {
		return errors.New("user_id is required")
	}

	entry := Message{
		UserID:    userID,
		Content:   content,
		Response:  response,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}
