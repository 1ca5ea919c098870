// Package orchestrator coordinates how one inbound message becomes one
// answer: per-user concurrency guarding, daily quota, knowledge-base lookup
// with generated fallback, and durable outcome recording.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"prop_support_bot/internal/domain"
	"prop_support_bot/internal/logging"
	"prop_support_bot/internal/menu"
	"prop_support_bot/internal/metrics"
)

// Transport delivers outbound messages to the user. Send attaches the reply
// keyboard identified by the menu hint (menu.None leaves the keyboard
// untouched) and returns the platform message id for later deletion.
type Transport interface {
	Send(ctx context.Context, userID int64, text string, m menu.Menu) (int, error)
	Delete(ctx context.Context, userID int64, messageID int) error
}

// KnowledgeBase answers questions by exact match; a miss is not an error.
type KnowledgeBase interface {
	Lookup(question string) (string, bool)
}

// Generator produces a free-text answer; any upstream fault is an error.
// A successful answer may still carry the insufficient-information sentinel.
type Generator interface {
	Generate(ctx context.Context, question string) (string, error)
}

// MessageLog appends one immutable entry per answered question.
type MessageLog interface {
	Append(ctx context.Context, userID int64, content, response string) error
}

// Deps bundles the collaborators an Orchestrator needs.
type Deps struct {
	Transport  Transport
	Knowledge  KnowledgeBase
	Generator  Generator
	Users      UserStore
	Log        MessageLog
	DailyLimit int
	// Sentinel is the generator's insufficient-information phrase. Successful
	// generator output containing it is replaced by a fixed fallback reply.
	Sentinel string
	Metrics  *metrics.Metrics
	Logger   *logrus.Entry
}

// Orchestrator owns the per-user guard table and runs the answer pipeline.
// It is safe for concurrent use across users; same-user requests are
// serialized by the guard (a second message while one is in flight is
// dropped, not queued).
type Orchestrator struct {
	guard     *Guard
	quota     *Quota
	transport Transport
	knowledge KnowledgeBase
	generator Generator
	users     UserStore
	log       MessageLog
	sentinel  string
	metrics   *metrics.Metrics
	logger    *logrus.Entry
}

// New validates deps and constructs an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if deps.Knowledge == nil {
		return nil, errors.New("knowledge base is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if deps.Users == nil {
		return nil, errors.New("user store is required")
	}
	if deps.Log == nil {
		return nil, errors.New("message log is required")
	}
	if deps.DailyLimit <= 0 {
		return nil, errors.New("daily limit must be greater than 0")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Logger()
	}

	return &Orchestrator{
		guard:     NewGuard(),
		quota:     NewQuota(deps.Users, deps.DailyLimit),
		transport: deps.Transport,
		knowledge: deps.Knowledge,
		generator: deps.Generator,
		users:     deps.Users,
		log:       deps.Log,
		sentinel:  deps.Sentinel,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}, nil
}

// HandleStart registers or refreshes the user and sends the welcome message
// with the main menu keyboard.
func (o *Orchestrator) HandleStart(ctx context.Context, userID int64, profile domain.Profile) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := o.users.GetOrCreate(ctx, userID, profile); err != nil {
		o.logger.WithFields(logging.Fields{
			"event":   "start_register_error",
			"user_id": userID,
		}).WithError(err).Error("failed to register user on /start")
	}

	name := strings.TrimSpace(profile.FirstName)
	if name == "" {
		name = defaultWelcomeName
	}

	o.send(ctx, userID, fmt.Sprintf(replyWelcomeFormat, name), menu.Main)
}

// HandleMessage classifies one inbound text message and either performs a
// menu transition or runs the answer pipeline. It never returns an error to
// the transport layer; every failure is absorbed into a fixed reply or a
// diagnostic log entry.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID int64, profile domain.Profile, text string) {
	if ctx == nil {
		ctx = context.Background()
	}

	text = strings.TrimSpace(text)
	if text == "" || userID == 0 {
		return
	}

	// The back action always works, even while a pipeline is in flight: it
	// abandons the pending request by clearing the guard. The generator call
	// itself keeps running; its late result is discarded, not delivered.
	if menu.IsBack(text) {
		o.guard.Clear(userID)
		o.metrics.ObserveMenuReply()
		o.send(ctx, userID, replyBackToMain, menu.Main)
		return
	}

	if o.guard.Held(userID) {
		o.metrics.ObserveDropped()
		o.logger.WithFields(logging.Fields{
			"event":   "message_dropped",
			"user_id": userID,
		}).Debug("dropped message while pipeline in flight")
		return
	}

	if section, ok := menu.SectionForLabel(text); ok {
		o.metrics.ObserveMenuReply()
		o.send(ctx, userID, replyChoose, section)
		return
	}

	token, ok := o.guard.Acquire(userID)
	if !ok {
		// Lost the race with a concurrent message from the same user.
		o.metrics.ObserveDropped()
		o.logger.WithFields(logging.Fields{
			"event":   "message_dropped",
			"user_id": userID,
		}).Debug("dropped message on guard acquisition race")
		return
	}

	o.runPipeline(ctx, &request{
		userID:   userID,
		profile:  profile,
		question: text,
		token:    token,
	})
}

// send is the shared best-effort outbound path; delivery failures are logged
// and swallowed.
func (o *Orchestrator) send(ctx context.Context, userID int64, text string, m menu.Menu) int {
	messageID, err := o.transport.Send(ctx, userID, text, m)
	if err != nil {
		o.logger.WithFields(logging.Fields{
			"event":   "send_error",
			"user_id": userID,
		}).WithError(err).Warn("failed to send message")
		return 0
	}

	return messageID
}
