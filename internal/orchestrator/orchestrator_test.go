package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"prop_support_bot/internal/domain"
	"prop_support_bot/internal/menu"
	"prop_support_bot/internal/metrics"
)

const testSentinel = "متاسفانه دراین رابطه اطلاعی ندارم"

type sentMessage struct {
	userID int64
	text   string
	menu   menu.Menu
}

type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	sends   []sentMessage
	deletes []int
	sendErr error
}

func (f *fakeTransport) Send(_ context.Context, userID int64, text string, m menu.Menu) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return 0, f.sendErr
	}

	f.nextID++
	f.sends = append(f.sends, sentMessage{userID: userID, text: text, menu: m})
	return f.nextID, nil
}

func (f *fakeTransport) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	texts := make([]string, 0, len(f.sends))
	for _, s := range f.sends {
		texts = append(texts, s.text)
	}
	return texts
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sends)
}

type fakeUserStore struct {
	mu       sync.Mutex
	users    map[int64]domain.User
	getErr   error
	resets   int
	recorded int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]domain.User)}
}

func (f *fakeUserStore) seed(user domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.users[user.UserID] = user
}

func (f *fakeUserStore) GetOrCreate(_ context.Context, userID int64, profile domain.Profile) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return domain.User{}, f.getErr
	}

	user, ok := f.users[userID]
	if !ok {
		user = domain.User{
			UserID:        userID,
			LastResetDate: time.Now().UTC(),
			CreatedAt:     time.Now().UTC(),
		}
	}

	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.Username = profile.Username
	f.users[userID] = user

	return user, nil
}

func (f *fakeUserStore) ResetDailyCount(_ context.Context, userID int64, now time.Time) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resets++
	user := f.users[userID]
	user.DailyCount = 0
	user.LastResetDate = now
	f.users[userID] = user

	return user, nil
}

func (f *fakeUserStore) RecordAnswer(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recorded++
	user := f.users[userID]
	user.MessageCount++
	user.DailyCount++
	user.LastMessageDate = time.Now().UTC()
	f.users[userID] = user

	return nil
}

func (f *fakeUserStore) dailyCount(userID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.users[userID].DailyCount
}

func (f *fakeUserStore) recordedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.recorded
}

type fakeKnowledge struct {
	answers map[string]string
}

func (f *fakeKnowledge) Lookup(question string) (string, bool) {
	answer, ok := f.answers[question]
	return answer, ok
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	answer  string
	err     error
	started chan struct{}
	block   chan struct{}
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	return f.answer, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type loggedAnswer struct {
	userID   int64
	content  string
	response string
}

type fakeMessageLog struct {
	mu      sync.Mutex
	entries []loggedAnswer
}

func (f *fakeMessageLog) Append(_ context.Context, userID int64, content, response string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, loggedAnswer{userID: userID, content: content, response: response})
	return nil
}

func (f *fakeMessageLog) all() []loggedAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]loggedAnswer, len(f.entries))
	copy(out, f.entries)
	return out
}

type testHarness struct {
	orc       *Orchestrator
	transport *fakeTransport
	store     *fakeUserStore
	generator *fakeGenerator
	log       *fakeMessageLog
}

func newTestHarness(t *testing.T, answers map[string]string, generator *fakeGenerator) *testHarness {
	t.Helper()

	hookLogger, _ := logtest.NewNullLogger()
	transport := &fakeTransport{}
	store := newFakeUserStore()
	log := &fakeMessageLog{}

	orc, err := New(Deps{
		Transport:  transport,
		Knowledge:  &fakeKnowledge{answers: answers},
		Generator:  generator,
		Users:      store,
		Log:        log,
		DailyLimit: 200,
		Sentinel:   testSentinel,
		Metrics:    metrics.New(prometheus.NewRegistry()),
		Logger:     logrus.NewEntry(hookLogger),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	return &testHarness{
		orc:       orc,
		transport: transport,
		store:     store,
		generator: generator,
		log:       log,
	}
}

func TestKnowledgeBaseHitShortCircuits(t *testing.T) {
	h := newTestHarness(t,
		map[string]string{"زمان برداشت": "سودها هر دو هفته پرداخت می‌شوند."},
		&fakeGenerator{answer: "should never be used"},
	)

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{FirstName: "Ali"}, "زمان برداشت")

	if got := h.generator.callCount(); got != 0 {
		t.Fatalf("expected generator to stay idle on exact match, got %d calls", got)
	}

	texts := h.transport.sentTexts()
	if len(texts) != 1 || texts[0] != "سودها هر دو هفته پرداخت می‌شوند." {
		t.Fatalf("expected single canned answer, got %v", texts)
	}

	entries := h.log.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].response != "سودها هر دو هفته پرداخت می‌شوند." || entries[0].content != "زمان برداشت" {
		t.Fatalf("unexpected log entry: %+v", entries[0])
	}

	if h.store.recordedCount() != 1 {
		t.Fatalf("expected counters recorded once, got %d", h.store.recordedCount())
	}

	if h.orc.guard.Held(42) {
		t.Fatalf("expected guard to be released after pipeline")
	}
}

func TestEmptyGeneratorAnswerSubstitutesFallback(t *testing.T) {
	h := newTestHarness(t, nil, &fakeGenerator{answer: ""})

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال آزاد")

	texts := h.transport.sentTexts()
	if len(texts) != 2 {
		t.Fatalf("expected processing notice plus answer, got %v", texts)
	}
	if texts[0] != replyProcessing {
		t.Fatalf("expected processing notice first, got %q", texts[0])
	}
	if texts[1] != replyInsufficientInfo {
		t.Fatalf("expected insufficient-info fallback, got %q", texts[1])
	}

	if len(h.transport.deletes) != 1 {
		t.Fatalf("expected processing notice deletion, got %v", h.transport.deletes)
	}

	entries := h.log.all()
	if len(entries) != 1 || entries[0].response != replyInsufficientInfo {
		t.Fatalf("expected fallback text to be logged, got %+v", entries)
	}
}

func TestSentinelAnswerSubstitutesFallback(t *testing.T) {
	h := newTestHarness(t, nil, &fakeGenerator{
		answer: "🙏 " + testSentinel + "، لطفاً با پشتیبانی تماس بگیرید.",
	})

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال آزاد")

	texts := h.transport.sentTexts()
	if len(texts) != 2 || texts[1] != replyInsufficientInfo {
		t.Fatalf("expected sentinel output to be replaced, got %v", texts)
	}
}

func TestGeneratorFailureSubstitutesErrorFallback(t *testing.T) {
	h := newTestHarness(t, nil, &fakeGenerator{err: errors.New("upstream timeout")})

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال آزاد")

	texts := h.transport.sentTexts()
	if len(texts) != 2 || texts[1] != replyProcessingError {
		t.Fatalf("expected processing-error fallback, got %v", texts)
	}

	entries := h.log.all()
	if len(entries) != 1 || entries[0].response != replyProcessingError {
		t.Fatalf("expected error fallback to be logged, got %+v", entries)
	}

	if h.orc.guard.Held(42) {
		t.Fatalf("expected guard release after generator failure")
	}
}

func TestDailyLimitRejectionLeavesStateUntouched(t *testing.T) {
	h := newTestHarness(t, nil, &fakeGenerator{answer: "unused"})
	h.store.seed(domain.User{
		UserID:        42,
		DailyCount:    200,
		LastResetDate: time.Now().UTC(),
	})

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال آزاد")

	texts := h.transport.sentTexts()
	if len(texts) != 1 || texts[0] != replyDailyLimit {
		t.Fatalf("expected only the quota notice, got %v", texts)
	}

	if len(h.log.all()) != 0 {
		t.Fatalf("expected no log entries on quota rejection")
	}
	if h.store.recordedCount() != 0 {
		t.Fatalf("expected counters untouched on quota rejection")
	}
	if got := h.store.dailyCount(42); got != 200 {
		t.Fatalf("expected daily count to stay 200, got %d", got)
	}
	if h.generator.callCount() != 0 {
		t.Fatalf("expected generator to stay idle on quota rejection")
	}
}

func TestStoreErrorDuringQuotaSendsGenericError(t *testing.T) {
	h := newTestHarness(t, nil, &fakeGenerator{answer: "unused"})
	h.store.getErr = errors.New("mongo unavailable")

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال آزاد")

	texts := h.transport.sentTexts()
	if len(texts) != 1 || texts[0] != replyProcessingError {
		t.Fatalf("expected generic processing-error reply, got %v", texts)
	}

	if len(h.log.all()) != 0 {
		t.Fatalf("expected no log entry when quota check fails")
	}
	if h.orc.guard.Held(42) {
		t.Fatalf("expected guard release after store error")
	}
}

func TestSecondMessageWhileInFlightIsDropped(t *testing.T) {
	gen := &fakeGenerator{
		answer:  "پاسخ تولیدشده",
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	h := newTestHarness(t, nil, gen)

	done := make(chan struct{})
	go func() {
		h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال اول")
		close(done)
	}()

	<-gen.started
	before := h.transport.sendCount()

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال دوم")

	if got := h.transport.sendCount(); got != before {
		t.Fatalf("expected dropped message to produce no reply, sends went %d -> %d", before, got)
	}

	close(gen.block)
	<-done

	if gen.callCount() != 1 {
		t.Fatalf("expected exactly one generator call, got %d", gen.callCount())
	}

	entries := h.log.all()
	if len(entries) != 1 || entries[0].content != "سوال اول" {
		t.Fatalf("expected only the first question to be logged, got %+v", entries)
	}
}

func TestBackDuringGenerationDiscardsLateResult(t *testing.T) {
	gen := &fakeGenerator{
		answer:  "پاسخ دیرهنگام",
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	h := newTestHarness(t, nil, gen)

	done := make(chan struct{})
	go func() {
		h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال آزاد")
		close(done)
	}()

	<-gen.started

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, menu.BackLabel)

	if h.orc.guard.Held(42) {
		t.Fatalf("expected back action to clear the guard")
	}

	close(gen.block)
	<-done

	for _, text := range h.transport.sentTexts() {
		if text == "پاسخ دیرهنگام" {
			t.Fatalf("late generator result must not be delivered")
		}
	}

	if len(h.log.all()) != 0 {
		t.Fatalf("expected no log entry for a discarded result, got %+v", h.log.all())
	}
	if h.store.recordedCount() != 0 {
		t.Fatalf("expected counters untouched for a discarded result")
	}
}

func TestMenuSectionLabelRepliesWithoutPipeline(t *testing.T) {
	h := newTestHarness(t, nil, &fakeGenerator{answer: "unused"})

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "💰 تعرفه پاس کردن چالش‌ها")

	sends := func() []sentMessage {
		h.transport.mu.Lock()
		defer h.transport.mu.Unlock()
		out := make([]sentMessage, len(h.transport.sends))
		copy(out, h.transport.sends)
		return out
	}()

	if len(sends) != 1 || sends[0].text != replyChoose || sends[0].menu != menu.Fees {
		t.Fatalf("expected section keyboard prompt, got %+v", sends)
	}

	if h.store.recordedCount() != 0 || len(h.log.all()) != 0 {
		t.Fatalf("expected menu navigation to leave quota and log untouched")
	}
	if h.generator.callCount() != 0 {
		t.Fatalf("expected generator to stay idle on menu navigation")
	}
}

func TestHandleStartSendsWelcomeWithMainMenu(t *testing.T) {
	h := newTestHarness(t, nil, &fakeGenerator{answer: "unused"})

	h.orc.HandleStart(context.Background(), 42, domain.Profile{FirstName: "Sara"})

	h.transport.mu.Lock()
	defer h.transport.mu.Unlock()

	if len(h.transport.sends) != 1 {
		t.Fatalf("expected one welcome message, got %d", len(h.transport.sends))
	}
	if h.transport.sends[0].menu != menu.Main {
		t.Fatalf("expected main menu keyboard on welcome, got %v", h.transport.sends[0].menu)
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if _, ok := h.store.users[42]; !ok {
		t.Fatalf("expected /start to register the user")
	}
}

func TestDailyCountAdvancesByOnePerAnsweredQuestion(t *testing.T) {
	h := newTestHarness(t, map[string]string{"سوال": "پاسخ"}, &fakeGenerator{answer: "unused"})
	h.store.seed(domain.User{
		UserID:        42,
		DailyCount:    7,
		LastResetDate: time.Now().UTC(),
	})

	h.orc.HandleMessage(context.Background(), 42, domain.Profile{}, "سوال")

	if got := h.store.dailyCount(42); got != 8 {
		t.Fatalf("expected daily count 8 after answer, got %d", got)
	}
}
