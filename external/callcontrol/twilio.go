package callcontrol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/callcontrol"
	"github.com/vehiclecare/voicebook/internal/speech"
)

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	FromNumber     string
	WebhookBaseURL string
}

type twilioCall struct {
	providerSID string
	turnIndex   int
	// synthesized audio by turn index, served back to Twilio over HTTP
	audio map[int][]byte
}

// TwilioController drives real phone calls through the Twilio REST API.
// Outbound control uses REST; inbound signaling arrives on the webhook routes
// this controller mounts, which must be reachable at WebhookBaseURL.
type TwilioController struct {
	client  *twilio.RestClient
	bridge  speech.Bridge
	logger  *slog.Logger
	cfg     TwilioConfig
	baseURL string

	mu      sync.Mutex
	handler callcontrol.EventHandler
	calls   map[string]*twilioCall
}

func NewTwilioController(cfg TwilioConfig, bridge speech.Bridge, logger *slog.Logger) *TwilioController {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioController{
		client:  client,
		bridge:  bridge,
		logger:  logger,
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.WebhookBaseURL, "/"),
		calls:   make(map[string]*twilioCall),
	}
}

func (c *TwilioController) RegisterEventHandler(handler callcontrol.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// RegisterRoutes mounts the webhook and media routes Twilio calls back into.
func (c *TwilioController) RegisterRoutes(r gin.IRouter) {
	r.POST("/voice/answer/:session_id", c.handleAnswer)
	r.POST("/voice/status/:session_id", c.handleStatus)
	r.POST("/voice/gather/:session_id", c.handleGather)
	r.GET("/voice/audio/:session_id/:turn", c.handleAudio)
}

func (c *TwilioController) PlaceCall(ctx context.Context, sessionID, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	canonical, err := booking.CanonicalPhone(destination)
	if err != nil {
		return &booking.DialError{Destination: destination, Reason: err.Error()}
	}

	c.mu.Lock()
	if c.handler == nil {
		c.mu.Unlock()
		return fmt.Errorf("no event handler registered")
	}
	if _, exists := c.calls[sessionID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("session %s already has a call", sessionID)
	}
	c.calls[sessionID] = &twilioCall{audio: make(map[int][]byte)}
	c.mu.Unlock()

	params := &twilioapi.CreateCallParams{}
	params.SetTo(canonical)
	params.SetFrom(c.cfg.FromNumber)
	params.SetUrl(fmt.Sprintf("%s/voice/answer/%s", c.baseURL, sessionID))
	params.SetStatusCallback(fmt.Sprintf("%s/voice/status/%s", c.baseURL, sessionID))
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetMachineDetection("Enable")

	call, err := c.client.Api.CreateCall(params)
	if err != nil {
		c.dropCall(sessionID)
		return &booking.DialError{Destination: canonical, Reason: err.Error()}
	}

	c.mu.Lock()
	if entry, ok := c.calls[sessionID]; ok && call.Sid != nil {
		entry.providerSID = *call.Sid
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "twilio call placed",
		slog.String("session_id", sessionID),
		slog.String("destination", canonical),
	)
	return nil
}

func (c *TwilioController) SendAudio(ctx context.Context, sessionID string, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	call, ok := c.calls[sessionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("session %s has no active call", sessionID)
	}
	turn := call.turnIndex
	call.turnIndex++
	call.audio[turn] = audio
	sid := call.providerSID
	c.mu.Unlock()

	twiml := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?>`+
			`<Response>`+
			`<Play>%s/voice/audio/%s/%d</Play>`+
			`<Gather input="speech" action="%s/voice/gather/%s" method="POST" speechTimeout="auto" timeout="10"/>`+
			`</Response>`,
		c.baseURL, sessionID, turn, c.baseURL, sessionID,
	)

	upd := &twilioapi.UpdateCallParams{}
	upd.SetTwiml(twiml)
	if _, err := c.client.Api.UpdateCall(sid, upd); err != nil {
		return fmt.Errorf("update call with audio: %w", err)
	}
	return nil
}

func (c *TwilioController) HangUp(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	call, ok := c.calls[sessionID]
	var sid string
	if ok {
		sid = call.providerSID
	}
	c.mu.Unlock()
	if !ok || sid == "" {
		return nil
	}

	upd := &twilioapi.UpdateCallParams{}
	upd.SetStatus("completed")
	if _, err := c.client.Api.UpdateCall(sid, upd); err != nil {
		// The provider rejects updates to calls that already ended.
		c.logger.WarnContext(ctx, "twilio hang-up failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// handleAnswer serves the initial TwiML when the counterparty picks up. The
// call idles until the answered status callback triggers the first agent
// utterance, which replaces this TwiML via UpdateCall.
func (c *TwilioController) handleAnswer(gc *gin.Context) {
	gc.Header("Content-Type", "application/xml")
	gc.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response><Pause length="60"/></Response>`)
}

func (c *TwilioController) handleStatus(gc *gin.Context) {
	sessionID := gc.Param("session_id")
	status := gc.PostForm("CallStatus")

	var kind callcontrol.EventKind
	switch status {
	case "initiated", "queued":
		gc.Status(http.StatusNoContent)
		return
	case "ringing":
		kind = callcontrol.EventRinging
	case "answered", "in-progress":
		kind = callcontrol.EventAnswered
	case "busy":
		kind = callcontrol.EventBusy
	case "no-answer":
		kind = callcontrol.EventNoAnswer
	case "completed", "failed", "canceled":
		kind = callcontrol.EventDisconnected
	default:
		c.logger.Warn("unknown twilio call status",
			slog.String("session_id", sessionID),
			slog.String("status", status),
		)
		gc.Status(http.StatusNoContent)
		return
	}

	c.emit(sessionID, kind, "")
	if kind == callcontrol.EventDisconnected || kind == callcontrol.EventBusy || kind == callcontrol.EventNoAnswer {
		c.dropCall(sessionID)
	}
	gc.Status(http.StatusNoContent)
}

// handleGather receives the counterparty's reply. Twilio normally transcribes
// it into the SpeechResult form field; when a media body arrives instead, the
// speech bridge recognizes it.
func (c *TwilioController) handleGather(gc *gin.Context) {
	sessionID := gc.Param("session_id")

	text := strings.TrimSpace(gc.PostForm("SpeechResult"))
	if text == "" && strings.HasPrefix(gc.ContentType(), "audio/") {
		payload, err := io.ReadAll(io.LimitReader(gc.Request.Body, 10<<20))
		if err == nil && len(payload) > 0 {
			recognized, rerr := c.bridge.Recognize(gc.Request.Context(), payload)
			if rerr != nil {
				c.logger.Error("gather audio recognition failed",
					slog.String("session_id", sessionID),
					slog.String("error", rerr.Error()),
				)
			} else {
				text = strings.TrimSpace(recognized)
			}
		}
	}

	if text != "" {
		c.emit(sessionID, callcontrol.EventSpeechReceived, text)
	}

	// Keep the line open until the next agent utterance replaces this TwiML.
	gc.Header("Content-Type", "application/xml")
	gc.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response><Pause length="60"/></Response>`)
}

func (c *TwilioController) handleAudio(gc *gin.Context) {
	sessionID := gc.Param("session_id")
	turn, err := strconv.Atoi(gc.Param("turn"))
	if err != nil {
		gc.Status(http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	var audio []byte
	if call, ok := c.calls[sessionID]; ok {
		audio = call.audio[turn]
	}
	c.mu.Unlock()

	if audio == nil {
		gc.Status(http.StatusNotFound)
		return
	}
	gc.Data(http.StatusOK, "audio/mpeg", audio)
}

func (c *TwilioController) emit(sessionID string, kind callcontrol.EventKind, text string) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		return
	}
	handler(callcontrol.Event{
		SessionID: sessionID,
		Kind:      kind,
		Text:      text,
		At:        time.Now(),
	})
}

func (c *TwilioController) dropCall(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.calls, sessionID)
}
