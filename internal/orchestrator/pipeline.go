package orchestrator

import (
	"context"
	"strings"
	"time"

	"prop_support_bot/internal/domain"
	"prop_support_bot/internal/logging"
	"prop_support_bot/internal/menu"
)

// Outcome labels the terminal state of one pipeline run.
type Outcome string

const (
	// OutcomeKBHit means the knowledge base answered exactly.
	OutcomeKBHit Outcome = "kb_hit"
	// OutcomeGenerated means the generator produced a usable answer.
	OutcomeGenerated Outcome = "generated"
	// OutcomeInsufficientInfo means the generator signaled it could not
	// answer and the fixed fallback was substituted.
	OutcomeInsufficientInfo Outcome = "insufficient_info"
	// OutcomeGenerationFailed means the generator call failed and the fixed
	// error fallback was substituted.
	OutcomeGenerationFailed Outcome = "generation_failed"
	// OutcomeQuotaRejected means the daily limit refused the request.
	OutcomeQuotaRejected Outcome = "quota_rejected"
	// OutcomeStoreError means the quota check could not consult the store.
	OutcomeStoreError Outcome = "store_error"
	// OutcomeDiscarded means the user abandoned the request via the back
	// action and the late result was thrown away.
	OutcomeDiscarded Outcome = "discarded"
)

// stage enumerates the answer-resolution states. Each stage has one
// transition method; runPipeline drives them until stageDone.
type stage int

const (
	stageQuotaCheck stage = iota
	stageLookup
	stageGenerate
	stageRespond
	stageRecord
	stageDone
)

// request carries the per-message pipeline state across transitions.
type request struct {
	userID   int64
	profile  domain.Profile
	question string
	token    uint64

	answer  string
	outcome Outcome
	// record is true once an answer was produced, i.e. counters and the
	// message log must move. Quota rejections and store errors never record.
	record bool
}

// runPipeline executes the state machine for one admitted-for-dispatch
// question. The guard slot is released on every exit path.
func (o *Orchestrator) runPipeline(ctx context.Context, req *request) {
	defer o.guard.Release(req.userID, req.token)

	for st := stageQuotaCheck; st != stageDone; {
		st = o.transition(ctx, st, req)
	}

	o.metrics.ObserveQuestion(string(req.outcome))
	o.logger.WithFields(logging.Fields{
		"event":   "question_resolved",
		"user_id": req.userID,
		"outcome": string(req.outcome),
	}).Info("question pipeline finished")
}

func (o *Orchestrator) transition(ctx context.Context, st stage, req *request) stage {
	switch st {
	case stageQuotaCheck:
		return o.stepQuotaCheck(ctx, req)
	case stageLookup:
		return o.stepLookup(req)
	case stageGenerate:
		return o.stepGenerate(ctx, req)
	case stageRespond:
		return o.stepRespond(ctx, req)
	case stageRecord:
		return o.stepRecord(ctx, req)
	default:
		return stageDone
	}
}

// stepQuotaCheck admits or rejects the request. A store failure here means
// the request is not admitted and the user sees the generic processing-error
// reply instead of being silently dropped.
func (o *Orchestrator) stepQuotaCheck(ctx context.Context, req *request) stage {
	admission, err := o.quota.CheckAndAdmit(ctx, req.userID, req.profile)
	if err != nil {
		o.logger.WithFields(logging.Fields{
			"event":   "quota_store_error",
			"user_id": req.userID,
		}).WithError(err).Error("quota check failed against store")

		req.answer = replyProcessingError
		req.outcome = OutcomeStoreError
		return stageRespond
	}

	if admission == DailyLimitExceeded {
		req.answer = replyDailyLimit
		req.outcome = OutcomeQuotaRejected
		return stageRespond
	}

	return stageLookup
}

// stepLookup short-circuits on an exact knowledge-base hit: no processing
// notice, no generator call.
func (o *Orchestrator) stepLookup(req *request) stage {
	if answer, ok := o.knowledge.Lookup(req.question); ok {
		req.answer = answer
		req.outcome = OutcomeKBHit
		req.record = true
		return stageRespond
	}

	return stageGenerate
}

// stepGenerate sends the transient processing notice, invokes the generator,
// and resolves the answer text, substituting a fixed fallback on failure or
// on the insufficient-information sentinel. The notice is deleted
// best-effort afterward.
func (o *Orchestrator) stepGenerate(ctx context.Context, req *request) stage {
	noticeID := o.send(ctx, req.userID, replyProcessing, menu.None)

	started := time.Now()
	generated, err := o.generator.Generate(ctx, req.question)
	o.metrics.ObserveGenerateDuration(time.Since(started))

	if noticeID != 0 {
		if deleteErr := o.transport.Delete(ctx, req.userID, noticeID); deleteErr != nil {
			o.logger.WithFields(logging.Fields{
				"event":      "notice_delete_error",
				"user_id":    req.userID,
				"message_id": noticeID,
			}).WithError(deleteErr).Warn("could not delete processing notice")
		}
	}

	// The user may have abandoned the request via the back action while the
	// generator was running; the slot is no longer ours, so the result is
	// discarded rather than delivered.
	if !o.guard.Holds(req.userID, req.token) {
		o.logger.WithFields(logging.Fields{
			"event":   "late_result_discarded",
			"user_id": req.userID,
		}).Info("discarding generator result after guard clearance")
		req.outcome = OutcomeDiscarded
		return stageDone
	}

	switch {
	case err != nil:
		req.answer = replyProcessingError
		req.outcome = OutcomeGenerationFailed
	case strings.TrimSpace(generated) == "" ||
		(o.sentinel != "" && strings.Contains(generated, o.sentinel)):
		req.answer = replyInsufficientInfo
		req.outcome = OutcomeInsufficientInfo
	default:
		req.answer = generated
		req.outcome = OutcomeGenerated
	}

	req.record = true
	return stageRespond
}

// stepRespond delivers the resolved text. Answers carry the main-menu
// keyboard; quota and store-error notices leave the keyboard as-is.
func (o *Orchestrator) stepRespond(ctx context.Context, req *request) stage {
	keyboard := menu.None
	if req.record {
		keyboard = menu.Main
	}

	o.send(ctx, req.userID, req.answer, keyboard)

	if req.record {
		return stageRecord
	}

	return stageDone
}

// stepRecord moves the counters and appends the log entry with the resolved
// text, the same text that was sent to the user. Failures here are recorded
// as diagnostics but never retract the answer already delivered.
func (o *Orchestrator) stepRecord(ctx context.Context, req *request) stage {
	if err := o.users.RecordAnswer(ctx, req.userID); err != nil {
		o.logger.WithFields(logging.Fields{
			"event":   "record_counters_error",
			"user_id": req.userID,
		}).WithError(err).Error("failed to update user counters")
	}

	if err := o.log.Append(ctx, req.userID, req.question, req.answer); err != nil {
		o.logger.WithFields(logging.Fields{
			"event":   "record_log_error",
			"user_id": req.userID,
		}).WithError(err).Error("failed to append message log entry")
	}

	return stageDone
}
