package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/callcontrol"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/dialogue"
	"github.com/vehiclecare/voicebook/internal/notify"
	"github.com/vehiclecare/voicebook/internal/repository"
	"github.com/vehiclecare/voicebook/internal/speech"
)

const (
	persistTimeout      = 5 * time.Second
	scheduledDateLayout = "January 2, 2006"
	// consecutive counterparty silences tolerated before giving up;
	// the first one is waited out without re-prompting
	maxConsecutiveSilences = 2
	// finished results retained in memory for Result and Cancel lookups
	defaultResultCap = 1000
)

var ErrUnknownSession = errors.New("unknown session")

// Manager orchestrates booking calls. Book blocks until the call reaches a
// terminal status and always returns a Result for calls that were placed;
// only pre-call failures (validation, undialable numbers) surface as errors.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	calls     callcontrol.Controller
	bridge    speech.Bridge
	engine    dialogue.Engine
	repo      repository.Repository
	notifier  notify.Sender
	directory booking.Directory

	mu       sync.Mutex
	sessions map[string]*callSession
	results  map[string]booking.Result
	// finished session ids in completion order, oldest first; once
	// resultCap is exceeded the oldest results are evicted and lookups
	// fall through to the repository
	resultOrder []string
	resultCap   int
}

func NewManager(
	cfg *config.Config,
	logger *slog.Logger,
	calls callcontrol.Controller,
	bridge speech.Bridge,
	engine dialogue.Engine,
	repo repository.Repository,
	notifier notify.Sender,
	directory booking.Directory,
) *Manager {
	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		calls:     calls,
		bridge:    bridge,
		engine:    engine,
		repo:      repo,
		notifier:  notifier,
		directory: directory,
		sessions:  make(map[string]*callSession),
		results:   make(map[string]booking.Result),
		resultCap: defaultResultCap,
	}
	calls.RegisterEventHandler(m.handleCallEvent)
	return m
}

func (m *Manager) mode() Mode {
	if m.cfg.LiveCallingEnabled() {
		return ModeLive
	}
	return ModeSimulation
}

// Book places one call to the request's service center and drives the
// dialogue to a terminal result.
func (m *Manager) Book(ctx context.Context, req booking.Request) (booking.Result, error) {
	normalized, err := req.Normalized(m.directory, time.Now())
	if err != nil {
		return booking.Result{}, err
	}

	sess := newCallSession(uuid.NewString(), normalized, m.mode(), time.Now())
	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "booking session starting",
		slog.String("session_id", sess.id),
		slog.String("mode", string(sess.mode)),
		slog.String("service_center", normalized.ServiceCenterName),
		slog.String("destination", normalized.ServiceCenterPhone),
	)
	m.persistSessionCreated(sess)

	sess.state = StateDialing
	if err := m.calls.PlaceCall(ctx, sess.id, normalized.ServiceCenterPhone); err != nil {
		m.mu.Lock()
		delete(m.sessions, sess.id)
		m.mu.Unlock()
		m.persistResult(sess, booking.Result{
			SessionID:     sess.id,
			Status:        booking.StatusFailed,
			ServiceCenter: normalized.ServiceCenterName,
			FailureReason: err.Error(),
			StartedAt:     sess.startedAt,
			EndedAt:       time.Now(),
		})
		return booking.Result{}, err
	}

	result := m.drive(ctx, sess)
	m.finish(sess, result)
	return result, nil
}

// BookAny walks the service-center directory in order and books with the
// first center that confirms. The returned Result is the confirmed one, or
// the last attempt's when every center fails.
func (m *Manager) BookAny(ctx context.Context, req booking.Request) (booking.Result, error) {
	centers := m.directory.Centers()
	if len(centers) == 0 {
		return booking.Result{}, &booking.InvalidRequestError{Field: "service_center", Reason: "directory is empty"}
	}

	var last booking.Result
	var lastErr error
	for _, center := range centers {
		attempt := req
		attempt.ServiceCenterName = center.Name
		attempt.ServiceCenterPhone = ""

		result, err := m.Book(ctx, attempt)
		if err != nil {
			var invalid *booking.InvalidRequestError
			if errors.As(err, &invalid) {
				// The request itself is broken, trying more centers is pointless.
				return booking.Result{}, err
			}
			lastErr = err
			continue
		}
		if result.Confirmed() {
			return result, nil
		}
		last = result
		lastErr = nil

		if err := ctx.Err(); err != nil {
			return last, nil
		}
	}
	if lastErr != nil && last.SessionID == "" {
		return booking.Result{}, lastErr
	}
	return last, nil
}

// Cancel aborts a running session or returns the stored result of a finished
// one. Cancelling twice returns the same result.
func (m *Manager) Cancel(ctx context.Context, sessionID string) (booking.Result, error) {
	m.mu.Lock()
	if result, ok := m.results[sessionID]; ok {
		m.mu.Unlock()
		return result, nil
	}
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return booking.Result{}, ErrUnknownSession
	}

	sess.cancel()
	select {
	case <-sess.done:
	case <-ctx.Done():
		return booking.Result{}, ctx.Err()
	}

	m.mu.Lock()
	result := m.results[sessionID]
	m.mu.Unlock()
	return result, nil
}

// Result returns the stored outcome of a finished session.
func (m *Manager) Result(sessionID string) (booking.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[sessionID]
	return result, ok
}

// handleCallEvent routes provider events to their session. Events for
// unknown sessions are dropped; that is a protocol error on the provider
// side, not ours.
func (m *Manager) handleCallEvent(event callcontrol.Event) {
	m.mu.Lock()
	sess, ok := m.sessions[event.SessionID]
	m.mu.Unlock()
	if !ok {
		m.logger.Warn("dropping event for unknown session",
			slog.String("session_id", event.SessionID),
			slog.String("kind", string(event.Kind)),
		)
		return
	}
	select {
	case sess.events <- event:
	default:
		m.logger.Error("session event buffer full, dropping event",
			slog.String("session_id", event.SessionID),
			slog.String("kind", string(event.Kind)),
		)
	}
}

// drive is the per-session event loop. It consumes telephony events and
// timers until the session reaches a terminal status.
func (m *Manager) drive(ctx context.Context, sess *callSession) booking.Result {
	// callCtx aborts in-flight synthesis and dialogue calls the moment the
	// session is cancelled, not at the next loop iteration.
	callCtx, stopCall := context.WithCancel(ctx)
	defer stopCall()
	go func() {
		select {
		case <-sess.cancelled:
			stopCall()
		case <-callCtx.Done():
		}
	}()

	overall := time.NewTimer(m.cfg.SessionTimeout)
	defer overall.Stop()
	dial := time.NewTimer(m.cfg.DialTimeout)
	defer dial.Stop()

	turn := time.NewTimer(m.cfg.TurnTimeout)
	stopTimer(turn)
	defer turn.Stop()

	silences := 0
	awaitingReply := false

	for {
		select {
		case <-ctx.Done():
			return m.terminal(sess, booking.StatusCancelled, "caller context cancelled")

		case <-sess.cancelled:
			return m.terminal(sess, booking.StatusCancelled, "cancelled by operator")

		case <-overall.C:
			return m.terminal(sess, booking.StatusTimedOut, "session timeout reached")

		case <-dial.C:
			if sess.state == StateDialing || sess.state == StateRinging {
				return m.terminal(sess, booking.StatusNoAnswer, "no answer within dial timeout")
			}

		case <-turn.C:
			if !awaitingReply {
				continue
			}
			silences++
			if silences >= maxConsecutiveSilences {
				return m.terminal(sess, booking.StatusFailed, "counterparty stopped responding")
			}
			// Wait out the first silence without speaking so the
			// transcript keeps strict alternation.
			m.logger.InfoContext(ctx, "counterparty silent, waiting",
				slog.String("session_id", sess.id),
				slog.Int("consecutive_silences", silences),
			)
			resetTimer(turn, m.cfg.TurnTimeout)

		case event := <-sess.events:
			switch event.Kind {
			case callcontrol.EventRinging:
				if sess.state == StateDialing {
					sess.state = StateRinging
				}

			case callcontrol.EventAnswered:
				if sess.state != StateDialing && sess.state != StateRinging {
					m.logEventDropped(sess, event)
					continue
				}
				stopTimer(dial)
				sess.state = StateConnected
				opening := m.engine.OpeningUtterance(sess.req)
				if err := m.speak(callCtx, sess, opening); err != nil {
					if callCtx.Err() != nil {
						return m.terminal(sess, booking.StatusCancelled, cancelReason(sess, ctx))
					}
					return m.terminal(sess, booking.StatusFailed, fmt.Sprintf("speech delivery failed: %v", err))
				}
				sess.state = StateExchanging
				awaitingReply = true
				silences = 0
				resetTimer(turn, m.cfg.TurnTimeout)

			case callcontrol.EventBusy:
				return m.terminal(sess, booking.StatusBusy, "destination busy")

			case callcontrol.EventNoAnswer:
				return m.terminal(sess, booking.StatusNoAnswer, "destination did not answer")

			case callcontrol.EventDisconnected:
				if sess.state == StateExchanging || sess.state == StateConnected {
					return m.terminal(sess, booking.StatusFailed, "call disconnected before a decision")
				}
				return m.terminal(sess, booking.StatusFailed, "call disconnected")

			case callcontrol.EventSpeechReceived:
				if sess.state != StateExchanging {
					m.logEventDropped(sess, event)
					continue
				}
				stopTimer(turn)
				awaitingReply = false
				silences = 0

				entities := new(booking.Entities)
				reply, err := m.engine.NextReply(callCtx, sess.req, append(sess.transcript, booking.Turn{
					Speaker: booking.SpeakerCounterparty,
					Text:    event.Text,
					At:      event.At,
				}), m.cfg.MaxTurns-sess.agentTurns)
				if err != nil {
					sess.appendTurn(booking.SpeakerCounterparty, event.Text, event.At, entities)
					if callCtx.Err() != nil {
						return m.terminal(sess, booking.StatusCancelled, cancelReason(sess, ctx))
					}
					return m.terminal(sess, booking.StatusFailed, fmt.Sprintf("dialogue engine failed: %v", err))
				}
				*entities = reply.Entities
				sess.appendTurn(booking.SpeakerCounterparty, event.Text, event.At, entities)
				sess.mergeEntities(reply.Entities)

				switch reply.Signal {
				case dialogue.SignalGoalAchieved:
					// The decision is made, speaking again adds nothing.
					return m.terminal(sess, booking.StatusConfirmed, "")
				case dialogue.SignalGoalUnreachable:
					return m.terminal(sess, booking.StatusFailed, "service center declined the booking")
				}

				if sess.agentTurns >= m.cfg.MaxTurns {
					return m.terminal(sess, booking.StatusFailed, "turn limit reached without a decision")
				}
				if err := m.speak(callCtx, sess, reply.Utterance); err != nil {
					if callCtx.Err() != nil {
						return m.terminal(sess, booking.StatusCancelled, cancelReason(sess, ctx))
					}
					return m.terminal(sess, booking.StatusFailed, fmt.Sprintf("speech delivery failed: %v", err))
				}
				awaitingReply = true
				resetTimer(turn, m.cfg.TurnTimeout)
			}
		}
	}
}

// logEventDropped records a provider event that arrived in a state where it
// cannot apply. Late and duplicate provider events are expected wire noise.
func (m *Manager) logEventDropped(sess *callSession, event callcontrol.Event) {
	m.logger.Warn("dropping event in unexpected state",
		slog.String("session_id", sess.id),
		slog.String("kind", string(event.Kind)),
		slog.String("state", string(sess.state)),
	)
}

func cancelReason(sess *callSession, ctx context.Context) string {
	select {
	case <-sess.cancelled:
		return "cancelled by operator"
	default:
	}
	if ctx.Err() != nil {
		return "caller context cancelled"
	}
	return "cancelled by operator"
}

// speak synthesizes one agent utterance and plays it into the call. A
// transient speech-service failure is retried once.
func (m *Manager) speak(ctx context.Context, sess *callSession, text string) error {
	audio, err := m.bridge.Synthesize(ctx, text, m.cfg.DefaultVoice)
	if err != nil {
		var svcErr *speech.ServiceError
		if !errors.As(err, &svcErr) {
			return err
		}
		m.logger.WarnContext(ctx, "speech synthesis failed, retrying",
			slog.String("session_id", sess.id),
			slog.String("error", err.Error()),
		)
		audio, err = m.bridge.Synthesize(ctx, text, m.cfg.DefaultVoice)
		if err != nil {
			return err
		}
	}
	if err := m.calls.SendAudio(ctx, sess.id, audio); err != nil {
		return err
	}
	sess.appendTurn(booking.SpeakerAgent, text, time.Now(), nil)
	sess.agentTurns++
	return nil
}

// terminal freezes the session into its final Result. The session stays in
// Concluding until finish tears the call down.
func (m *Manager) terminal(sess *callSession, status booking.Status, failureReason string) booking.Result {
	sess.state = StateConcluding
	result := booking.Result{
		SessionID:     sess.id,
		Status:        status,
		ServiceCenter: sess.req.ServiceCenterName,
		Transcript:    sess.transcript,
		FailureReason: failureReason,
		StartedAt:     sess.startedAt,
		EndedAt:       time.Now(),
	}
	if status == booking.StatusConfirmed {
		result.ScheduledDate = sess.entities.Date
		result.ScheduledTime = sess.entities.Time
		result.ConfirmationNumber = sess.entities.ConfirmationNumber
		// A confirmed booking always carries a schedule; fall back to
		// what was requested when the counterparty never restated it.
		if result.ScheduledDate == "" {
			result.ScheduledDate = sess.req.PreferredDate.Format(scheduledDateLayout)
		}
		if result.ScheduledTime == "" {
			result.ScheduledTime = sess.req.PreferredTime
		}
		if result.ConfirmationNumber == "" {
			result.ConfirmationNumber = "VC" + time.Now().Format("20060102150405")
		}
	}
	return result
}

// finish tears the session down: hang up, store and persist the result,
// notify the result webhook.
func (m *Manager) finish(sess *callSession, result booking.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := m.calls.HangUp(ctx, sess.id); err != nil {
		m.logger.Warn("hang-up failed",
			slog.String("session_id", sess.id),
			slog.String("error", err.Error()),
		)
	}

	m.mu.Lock()
	delete(m.sessions, sess.id)
	m.results[sess.id] = result
	m.resultOrder = append(m.resultOrder, sess.id)
	for len(m.resultOrder) > m.resultCap {
		delete(m.results, m.resultOrder[0])
		m.resultOrder = m.resultOrder[1:]
	}
	m.mu.Unlock()
	sess.state = StateTerminated
	close(sess.done)

	m.persistResult(sess, result)

	if err := m.notifier.SendResult(ctx, notify.NewResultPayload(result)); err != nil {
		m.logger.Error("result webhook delivery failed",
			slog.String("session_id", sess.id),
			slog.String("error", err.Error()),
		)
	}

	m.logger.Info("booking session finished",
		slog.String("session_id", sess.id),
		slog.String("status", string(result.Status)),
		slog.String("failure_reason", result.FailureReason),
		slog.Int("transcript_turns", len(result.Transcript)),
	)
}

func (m *Manager) persistSessionCreated(sess *callSession) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	_, err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
		SessionID:          sess.id,
		CustomerName:       sess.req.CustomerName,
		CustomerPhone:      sess.req.CustomerPhone,
		VehicleID:          sess.req.VehicleID,
		IssueType:          sess.req.IssueType,
		ServiceCenterName:  sess.req.ServiceCenterName,
		ServiceCenterPhone: sess.req.ServiceCenterPhone,
		Mode:               string(sess.mode),
		StartedAt:          sess.startedAt,
	})
	if err != nil {
		// The call proceeds without persistence rather than failing the booking.
		m.logger.Error("failed to persist session",
			slog.String("session_id", sess.id),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) persistResult(sess *callSession, result booking.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	for i, turn := range result.Transcript {
		err := m.repo.InsertTurn(ctx, repository.InsertTurnInput{
			SessionID: sess.id,
			Speaker:   string(turn.Speaker),
			Content:   turn.Text,
			TurnIndex: i,
			SpokenAt:  turn.At,
		})
		if err != nil {
			m.logger.Error("failed to persist transcript turn",
				slog.String("session_id", sess.id),
				slog.Int("turn_index", i),
				slog.String("error", err.Error()),
			)
			break
		}
	}

	err := m.repo.SaveResult(ctx, repository.SaveResultInput{
		SessionID:          sess.id,
		EndedAt:            result.EndedAt,
		ResultStatus:       string(result.Status),
		ScheduledDate:      result.ScheduledDate,
		ScheduledTime:      result.ScheduledTime,
		ConfirmationNumber: result.ConfirmationNumber,
		FailureReason:      result.FailureReason,
	})
	if err != nil {
		m.logger.Error("failed to persist result",
			slog.String("session_id", sess.id),
			slog.String("error", err.Error()),
		)
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
