package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prop_support_bot/internal/domain"
)

// Admission is the quota decision for one inbound question.
type Admission int

const (
	// Admitted lets the request proceed to answer resolution.
	Admitted Admission = iota
	// DailyLimitExceeded rejects the request; the user is notified and no
	// log entry is written.
	DailyLimitExceeded
)

// UserStore is the durable per-user record store consumed by the quota and
// recording steps.
type UserStore interface {
	GetOrCreate(ctx context.Context, userID int64, profile domain.Profile) (domain.User, error)
	ResetDailyCount(ctx context.Context, userID int64, now time.Time) (domain.User, error)
	RecordAnswer(ctx context.Context, userID int64) error
}

// Quota caps the number of answered questions per user per calendar day.
// The day boundary is evaluated in UTC.
type Quota struct {
	store UserStore
	limit int64
	now   func() time.Time
}

// NewQuota constructs a Quota over the given store with the given daily limit.
func NewQuota(store UserStore, limit int) *Quota {
	return &Quota{
		store: store,
		limit: int64(limit),
		now:   time.Now,
	}
}

// CheckAndAdmit loads (or creates) the user record, applies the once-per-day
// counter reset when the UTC date has rolled over since last_reset_date, and
// compares daily_count against the limit. The reset is applied before the
// limit check, so the first request of a new day is always admitted.
// Counters are not touched here; RecordAnswer moves them after an answer was
// actually produced.
func (q *Quota) CheckAndAdmit(ctx context.Context, userID int64, profile domain.Profile) (Admission, error) {
	if q == nil || q.store == nil {
		return DailyLimitExceeded, errors.New("quota is not initialized")
	}
	if ctx == nil {
		return DailyLimitExceeded, errors.New("context is required")
	}

	user, err := q.store.GetOrCreate(ctx, userID, profile)
	if err != nil {
		return DailyLimitExceeded, fmt.Errorf("load user for quota: %w", err)
	}

	now := q.now().UTC()
	if !sameDay(now, user.LastResetDate.UTC()) {
		user, err = q.store.ResetDailyCount(ctx, userID, now)
		if err != nil {
			return DailyLimitExceeded, fmt.Errorf("reset daily count: %w", err)
		}
	}

	if user.DailyCount >= q.limit {
		return DailyLimitExceeded, nil
	}

	return Admitted, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
