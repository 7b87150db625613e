package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/callcontrol"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/dialogue"
	"github.com/vehiclecare/voicebook/internal/notify"
	"github.com/vehiclecare/voicebook/internal/repository"
	"github.com/vehiclecare/voicebook/internal/speech"
)

type mockController struct {
	mu           sync.Mutex
	handler      callcontrol.EventHandler
	placeCallErr error
	onPlaceCall  func(sessionID string)
	onSendAudio  func(sessionID string, audio []byte)
	sendAudioErr error
	sent         [][]byte
	hangUps      []string
}

func (c *mockController) RegisterEventHandler(handler callcontrol.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *mockController) PlaceCall(_ context.Context, sessionID, _ string) error {
	if c.placeCallErr != nil {
		return c.placeCallErr
	}
	if c.onPlaceCall != nil {
		go c.onPlaceCall(sessionID)
	}
	return nil
}

func (c *mockController) SendAudio(_ context.Context, sessionID string, audio []byte) error {
	if c.sendAudioErr != nil {
		return c.sendAudioErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, audio)
	c.mu.Unlock()
	if c.onSendAudio != nil {
		go c.onSendAudio(sessionID, audio)
	}
	return nil
}

func (c *mockController) HangUp(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangUps = append(c.hangUps, sessionID)
	return nil
}

func (c *mockController) emit(sessionID string, kind callcontrol.EventKind, text string) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	handler(callcontrol.Event{SessionID: sessionID, Kind: kind, Text: text, At: time.Now()})
}

func (c *mockController) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type mockBridge struct {
	mu            sync.Mutex
	synthFailures int
	synthCalls    int
}

func (b *mockBridge) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.synthCalls++
	if b.synthFailures > 0 {
		b.synthFailures--
		return nil, &speech.ServiceError{Op: "synthesize", Err: errors.New("upstream unavailable")}
	}
	return []byte(text), nil
}

func (b *mockBridge) Recognize(_ context.Context, audio []byte) (string, error) {
	return string(audio), nil
}

// blockingBridge parks every Synthesize call until its context is aborted,
// standing in for a slow live speech provider.
type blockingBridge struct {
	started chan struct{}
}

func (b *blockingBridge) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, &speech.ServiceError{Op: "synthesize", Err: ctx.Err()}
}

func (b *blockingBridge) Recognize(_ context.Context, audio []byte) (string, error) {
	return string(audio), nil
}

type stubEngine struct {
	next func(transcript []booking.Turn, turnsRemaining int) (dialogue.Reply, error)
}

func (e *stubEngine) OpeningUtterance(booking.Request) string {
	return "Hello, I'm calling to book a service appointment."
}

func (e *stubEngine) NextReply(_ context.Context, _ booking.Request, transcript []booking.Turn, turnsRemaining int) (dialogue.Reply, error) {
	return e.next(transcript, turnsRemaining)
}

type mockRepo struct {
	mu       sync.Mutex
	sessions []repository.CreateSessionInput
	results  []repository.SaveResultInput
	turns    []repository.InsertTurnInput
}

func (r *mockRepo) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, input)
	return &repository.Session{ID: input.SessionID, Status: repository.SessionStatusRunning}, nil
}

func (r *mockRepo) SaveResult(_ context.Context, input repository.SaveResultInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, input)
	return nil
}

func (r *mockRepo) GetSessionByID(context.Context, string) (*repository.Session, error) {
	return nil, nil
}

func (r *mockRepo) CloseOrphanSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *mockRepo) InsertTurn(_ context.Context, input repository.InsertTurnInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, input)
	return nil
}

func (r *mockRepo) ListTurnsBySessionID(context.Context, string) ([]repository.ConversationTurn, error) {
	return nil, nil
}

type mockNotifier struct {
	mu       sync.Mutex
	payloads []notify.ResultPayload
}

func (n *mockNotifier) SendResult(_ context.Context, payload notify.ResultPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		DatabaseURL:          "postgres://localhost/voicebook_test",
		ServiceDirectoryPath: "directory.yaml",
		SpeechLanguage:       "en-US",
		DefaultVoice:         "en-US-Neural2-F",
		HTTPListenAddr:       ":0",
		MaxTurns:             3,
		DialTimeout:          300 * time.Millisecond,
		TurnTimeout:          120 * time.Millisecond,
		SessionTimeout:       5 * time.Second,
	}
}

func testDirectory() booking.Directory {
	return booking.NewDirectory([]booking.ServiceCenter{
		{Name: "Downtown", Phone: "+1 555-0100"},
		{Name: "Westside", Phone: "+1 555-0101"},
	})
}

func testRequest() booking.Request {
	return booking.Request{
		CustomerName:      "Jordan Baker",
		CustomerPhone:     "+1 555-867-5309",
		CustomerEmail:     "jordan@example.com",
		VehicleID:         "VH-1042",
		IssueType:         "Engine Overheating",
		IssueDescription:  "Temperature warning light stays on",
		Severity:          "High",
		PreferredDate:     time.Now().AddDate(0, 0, 3),
		PreferredTime:     "10:00 AM",
		ServiceCenterName: "Downtown",
	}
}

func newTestManager(t *testing.T, controller *mockController, bridge speech.Bridge, engine dialogue.Engine) (*Manager, *mockRepo, *mockNotifier) {
	t.Helper()
	return newTestManagerWithConfig(t, testConfig(), controller, bridge, engine)
}

func newTestManagerWithConfig(t *testing.T, cfg *config.Config, controller *mockController, bridge speech.Bridge, engine dialogue.Engine) (*Manager, *mockRepo, *mockNotifier) {
	t.Helper()
	repo := &mockRepo{}
	notifier := &mockNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(cfg, logger, controller, bridge, engine, repo, notifier, testDirectory())
	return m, repo, notifier
}

func continueEngine() *stubEngine {
	return &stubEngine{
		next: func([]booking.Turn, int) (dialogue.Reply, error) {
			return dialogue.Reply{Utterance: "Could you check availability?", Signal: dialogue.SignalContinue}, nil
		},
	}
}

func confirmOnFirstReplyEngine() *stubEngine {
	return &stubEngine{
		next: func([]booking.Turn, int) (dialogue.Reply, error) {
			return dialogue.Reply{
				Signal: dialogue.SignalGoalAchieved,
				Entities: booking.Entities{
					Confirmed:          true,
					ConfirmationNumber: "VC20260903",
				},
			}, nil
		},
	}
}

func TestBook_NoAnswer(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventRinging, "")
		controller.emit(id, callcontrol.EventNoAnswer, "")
	}
	m, repo, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusNoAnswer {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if len(result.Transcript) != 0 {
		t.Fatalf("expected empty transcript, got %d turns", len(result.Transcript))
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.results) != 1 || repo.results[0].ResultStatus != "no-answer" {
		t.Fatalf("expected persisted no-answer result, got %+v", repo.results)
	}
}

func TestBook_BusyDestination(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventRinging, "")
		controller.emit(id, callcontrol.EventBusy, "")
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusBusy {
		t.Fatalf("unexpected status: %s", result.Status)
	}
}

func TestBook_ImmediateConfirmation(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventRinging, "")
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	controller.onSendAudio = func(id string, _ []byte) {
		controller.emit(id, callcontrol.EventSpeechReceived, "Sure, I've booked it. Confirmation number is VC20260903.")
	}
	m, _, notifier := newTestManager(t, controller, &mockBridge{}, confirmOnFirstReplyEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusConfirmed {
		t.Fatalf("unexpected status: %s (%s)", result.Status, result.FailureReason)
	}
	// The opening and the confirming reply, nothing spoken afterwards.
	if len(result.Transcript) != 2 {
		t.Fatalf("expected 2 transcript turns, got %d", len(result.Transcript))
	}
	if result.Transcript[0].Speaker != booking.SpeakerAgent || result.Transcript[1].Speaker != booking.SpeakerCounterparty {
		t.Fatalf("unexpected speaker order: %s, %s", result.Transcript[0].Speaker, result.Transcript[1].Speaker)
	}
	if result.ConfirmationNumber != "VC20260903" {
		t.Fatalf("unexpected confirmation number: %s", result.ConfirmationNumber)
	}
	// The counterparty never restated a schedule, the requested one stands.
	if result.ScheduledDate == "" || result.ScheduledTime != "10:00 AM" {
		t.Fatalf("expected schedule fallback, got %q %q", result.ScheduledDate, result.ScheduledTime)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.payloads) != 1 || notifier.payloads[0].Status != "confirmed" {
		t.Fatalf("expected one confirmed webhook payload, got %+v", notifier.payloads)
	}
}

func TestBook_DeadAirFails(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	// The counterparty never says anything after answering.
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusFailed {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if !strings.Contains(result.FailureReason, "stopped responding") {
		t.Fatalf("unexpected failure reason: %s", result.FailureReason)
	}
	// Only the opening was spoken, no re-prompt during the first silence.
	if len(result.Transcript) != 1 {
		t.Fatalf("expected 1 transcript turn, got %d", len(result.Transcript))
	}
}

func TestBook_TurnLimit(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	controller.onSendAudio = func(id string, _ []byte) {
		controller.emit(id, callcontrol.EventSpeechReceived, "Hmm, let me see what we have.")
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusFailed {
		t.Fatalf("unexpected status: %s (%s)", result.Status, result.FailureReason)
	}
	if !strings.Contains(result.FailureReason, "turn limit") {
		t.Fatalf("unexpected failure reason: %s", result.FailureReason)
	}
	// MaxTurns agent utterances, each answered once.
	if controller.sentCount() != testConfig().MaxTurns {
		t.Fatalf("expected %d agent utterances, got %d", testConfig().MaxTurns, controller.sentCount())
	}
	if len(result.Transcript) != testConfig().MaxTurns*2 {
		t.Fatalf("expected %d transcript turns, got %d", testConfig().MaxTurns*2, len(result.Transcript))
	}
	for i, turn := range result.Transcript {
		want := booking.SpeakerAgent
		if i%2 == 1 {
			want = booking.SpeakerCounterparty
		}
		if turn.Speaker != want {
			t.Fatalf("turn %d: expected speaker %s, got %s", i, want, turn.Speaker)
		}
	}
}

func TestBook_CenterDeclines(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	controller.onSendAudio = func(id string, _ []byte) {
		controller.emit(id, callcontrol.EventSpeechReceived, "Sorry, we are fully booked this month.")
	}
	engine := &stubEngine{
		next: func([]booking.Turn, int) (dialogue.Reply, error) {
			return dialogue.Reply{Signal: dialogue.SignalGoalUnreachable}, nil
		},
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, engine)

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusFailed {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if !strings.Contains(result.FailureReason, "declined") {
		t.Fatalf("unexpected failure reason: %s", result.FailureReason)
	}
}

func TestBook_SynthesisRetriesOnce(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	controller.onSendAudio = func(id string, _ []byte) {
		controller.emit(id, callcontrol.EventSpeechReceived, "Booked, confirmation VC11112222.")
	}
	bridge := &mockBridge{synthFailures: 1}
	m, _, _ := newTestManager(t, controller, bridge, confirmOnFirstReplyEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusConfirmed {
		t.Fatalf("unexpected status: %s (%s)", result.Status, result.FailureReason)
	}
	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	if bridge.synthCalls != 2 {
		t.Fatalf("expected 2 synthesis attempts, got %d", bridge.synthCalls)
	}
}

func TestBook_PersistentSynthesisFailure(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	bridge := &mockBridge{synthFailures: 2}
	m, _, _ := newTestManager(t, controller, bridge, continueEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusFailed {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if !strings.Contains(result.FailureReason, "speech delivery failed") {
		t.Fatalf("unexpected failure reason: %s", result.FailureReason)
	}
}

func TestBook_InvalidRequest(t *testing.T) {
	m, repo, _ := newTestManager(t, &mockController{}, &mockBridge{}, continueEngine())

	req := testRequest()
	req.CustomerPhone = "not-a-number"
	_, err := m.Book(context.Background(), req)
	var invalid *booking.InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.sessions) != 0 {
		t.Fatalf("expected no persisted session, got %d", len(repo.sessions))
	}
}

func TestBook_DialErrorSurfaces(t *testing.T) {
	controller := &mockController{
		placeCallErr: &booking.DialError{Destination: "+15550100", Reason: "carrier rejected"},
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	_, err := m.Book(context.Background(), testRequest())
	var dialErr *booking.DialError
	if !errors.As(err, &dialErr) {
		t.Fatalf("expected DialError, got %v", err)
	}
}

func TestCancel_RunningSessionAndIdempotence(t *testing.T) {
	controller := &mockController{}
	started := make(chan string, 1)
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
		started <- id
	}
	// The counterparty never replies, the session idles until cancelled.
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	resultCh := make(chan booking.Result, 1)
	go func() {
		result, err := m.Book(context.Background(), testRequest())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		resultCh <- result
	}()

	var sessionID string
	select {
	case sessionID = <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call to start")
	}

	cancelled, err := m.Cancel(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cancelled.Status != booking.StatusCancelled {
		t.Fatalf("unexpected status: %s", cancelled.Status)
	}

	select {
	case booked := <-resultCh:
		if booked.Status != booking.StatusCancelled {
			t.Fatalf("Book returned status %s", booked.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Book to return")
	}

	again, err := m.Cancel(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("expected no error on repeated cancel, got %v", err)
	}
	if again.Status != booking.StatusCancelled || again.SessionID != cancelled.SessionID {
		t.Fatalf("repeated cancel returned a different result: %+v", again)
	}
}

func TestCancel_PreemptsInFlightSynthesis(t *testing.T) {
	controller := &mockController{}
	started := make(chan string, 1)
	controller.onPlaceCall = func(id string) {
		started <- id
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	bridge := &blockingBridge{started: make(chan struct{}, 1)}
	m, _, _ := newTestManager(t, controller, bridge, continueEngine())

	resultCh := make(chan booking.Result, 1)
	go func() {
		result, err := m.Book(context.Background(), testRequest())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		resultCh <- result
	}()

	var sessionID string
	select {
	case sessionID = <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call to start")
	}
	select {
	case <-bridge.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for synthesis to start")
	}

	// Synthesis is in flight; cancellation must abort it rather than wait
	// for it to return.
	cancelCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	begin := time.Now()
	cancelled, err := m.Cancel(cancelCtx, sessionID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("cancel waited %v for in-flight synthesis", elapsed)
	}
	if cancelled.Status != booking.StatusCancelled {
		t.Fatalf("unexpected status: %s", cancelled.Status)
	}

	select {
	case booked := <-resultCh:
		if booked.Status != booking.StatusCancelled {
			t.Fatalf("Book returned status %s", booked.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Book to return")
	}
}

func TestBook_SessionTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = 400 * time.Millisecond
	cfg.TurnTimeout = 5 * time.Second
	cfg.MaxTurns = 1000

	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	// The counterparty chats forever without ever deciding.
	controller.onSendAudio = func(id string, _ []byte) {
		time.Sleep(50 * time.Millisecond)
		controller.emit(id, callcontrol.EventSpeechReceived, "Hold on, let me check another calendar.")
	}
	m, _, _ := newTestManagerWithConfig(t, cfg, controller, &mockBridge{}, continueEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusTimedOut {
		t.Fatalf("unexpected status: %s (%s)", result.Status, result.FailureReason)
	}
	if !strings.Contains(result.FailureReason, "session timeout") {
		t.Fatalf("unexpected failure reason: %s", result.FailureReason)
	}
	// The conversation that had accumulated is kept.
	if len(result.Transcript) < 2 {
		t.Fatalf("expected an accumulated transcript, got %d turns", len(result.Transcript))
	}
}

func TestBook_DisconnectedMidExchange(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	controller.onSendAudio = func(id string, _ []byte) {
		controller.emit(id, callcontrol.EventDisconnected, "")
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusFailed {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if !strings.Contains(result.FailureReason, "disconnected") {
		t.Fatalf("unexpected failure reason: %s", result.FailureReason)
	}
}

func TestBook_EarlySpeechEventIgnored(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		// Speech before the call is answered is provider noise.
		controller.emit(id, callcontrol.EventSpeechReceived, "Hello? Anyone there?")
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	controller.onSendAudio = func(id string, _ []byte) {
		controller.emit(id, callcontrol.EventSpeechReceived, "Booked, confirmation VC20260903.")
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, confirmOnFirstReplyEngine())

	result, err := m.Book(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusConfirmed {
		t.Fatalf("unexpected status: %s (%s)", result.Status, result.FailureReason)
	}
	if len(result.Transcript) != 2 {
		t.Fatalf("expected 2 transcript turns, got %d", len(result.Transcript))
	}
	if result.Transcript[1].Text != "Booked, confirmation VC20260903." {
		t.Fatalf("early speech leaked into the transcript: %q", result.Transcript[1].Text)
	}
}

func TestResult_EvictsOldestBeyondCap(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventNoAnswer, "")
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())
	m.resultCap = 2

	var ids []string
	for i := 0; i < 3; i++ {
		result, err := m.Book(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		ids = append(ids, result.SessionID)
	}

	if _, ok := m.Result(ids[0]); ok {
		t.Fatal("expected the oldest result to be evicted")
	}
	for _, id := range ids[1:] {
		if _, ok := m.Result(id); !ok {
			t.Fatalf("expected result %s to be retained", id)
		}
	}
}

func TestCancel_UnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t, &mockController{}, &mockBridge{}, continueEngine())
	if _, err := m.Cancel(context.Background(), "11111111-2222-4333-8444-555555555555"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestHandleCallEvent_UnknownSessionDropped(t *testing.T) {
	controller := &mockController{}
	newTestManager(t, controller, &mockBridge{}, continueEngine())
	// Must not panic or block.
	controller.emit("11111111-2222-4333-8444-555555555555", callcontrol.EventAnswered, "")
}

func TestBookAny_WalksDirectoryUntilConfirmed(t *testing.T) {
	controller := &mockController{}
	var calls int
	var callsMu sync.Mutex
	controller.onPlaceCall = func(id string) {
		callsMu.Lock()
		calls++
		first := calls == 1
		callsMu.Unlock()
		if first {
			// Downtown rings out.
			controller.emit(id, callcontrol.EventNoAnswer, "")
			return
		}
		controller.emit(id, callcontrol.EventAnswered, "")
	}
	controller.onSendAudio = func(id string, _ []byte) {
		controller.emit(id, callcontrol.EventSpeechReceived, "Booked, confirmation VC99990000.")
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, confirmOnFirstReplyEngine())

	req := testRequest()
	req.ServiceCenterName = ""
	result, err := m.BookAny(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusConfirmed {
		t.Fatalf("unexpected status: %s (%s)", result.Status, result.FailureReason)
	}
	if result.ServiceCenter != "Westside" {
		t.Fatalf("expected Westside to confirm, got %s", result.ServiceCenter)
	}
}

func TestBookAny_AllCentersFail(t *testing.T) {
	controller := &mockController{}
	controller.onPlaceCall = func(id string) {
		controller.emit(id, callcontrol.EventNoAnswer, "")
	}
	m, _, _ := newTestManager(t, controller, &mockBridge{}, continueEngine())

	req := testRequest()
	req.ServiceCenterName = ""
	result, err := m.BookAny(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Status != booking.StatusNoAnswer {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if result.ServiceCenter != "Westside" {
		t.Fatalf("expected the last center's result, got %s", result.ServiceCenter)
	}
}
