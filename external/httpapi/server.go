// Package httpapi exposes the booking orchestrator over HTTP: a small JSON
// API for operators plus the telephony webhook routes the call provider
// posts back into.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/callcontrol"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/repository"
	"github.com/vehiclecare/voicebook/internal/session"
)

const (
	requestDateLayout = "2006-01-02"
	shutdownTimeout   = 10 * time.Second
)

// webhookRoutes is implemented by controllers that need inbound HTTP routes,
// the Twilio adapter in practice.
type webhookRoutes interface {
	RegisterRoutes(r gin.IRouter)
}

type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *session.Manager
	repo    repository.Repository
	router  *gin.Engine
}

func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	manager *session.Manager,
	repo repository.Repository,
	calls callcontrol.Controller,
) *Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		repo:    repo,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/healthz", s.handleHealth)
	s.router.POST("/bookings", s.handleBook)
	s.router.POST("/bookings/auto", s.handleBookAny)
	s.router.GET("/bookings/:session_id", s.handleGetBooking)
	s.router.DELETE("/bookings/:session_id", s.handleCancelBooking)

	if wr, ok := calls.(webhookRoutes); ok {
		wr.RegisterRoutes(s.router)
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.HTTPListenAddr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("http server listening", slog.String("addr", s.cfg.HTTPListenAddr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type bookingRequest struct {
	CustomerName       string `json:"customer_name" binding:"required"`
	CustomerPhone      string `json:"customer_phone" binding:"required"`
	CustomerEmail      string `json:"customer_email"`
	VehicleID          string `json:"vehicle_id" binding:"required"`
	IssueType          string `json:"issue_type" binding:"required"`
	IssueDescription   string `json:"issue_description"`
	Severity           string `json:"severity"`
	PreferredDate      string `json:"preferred_date" binding:"required"`
	PreferredTime      string `json:"preferred_time" binding:"required"`
	ServiceCenterName  string `json:"service_center"`
	ServiceCenterPhone string `json:"service_center_phone"`
}

func (b bookingRequest) toDomain() (booking.Request, error) {
	date, err := time.Parse(requestDateLayout, b.PreferredDate)
	if err != nil {
		return booking.Request{}, &booking.InvalidRequestError{
			Field:  "preferred_date",
			Reason: "must be formatted as " + requestDateLayout,
		}
	}
	return booking.Request{
		CustomerName:       b.CustomerName,
		CustomerPhone:      b.CustomerPhone,
		CustomerEmail:      b.CustomerEmail,
		VehicleID:          b.VehicleID,
		IssueType:          b.IssueType,
		IssueDescription:   b.IssueDescription,
		Severity:           b.Severity,
		PreferredDate:      date,
		PreferredTime:      b.PreferredTime,
		ServiceCenterName:  b.ServiceCenterName,
		ServiceCenterPhone: b.ServiceCenterPhone,
	}, nil
}

type transcriptEntry struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

type bookingResponse struct {
	SessionID          string            `json:"session_id"`
	Status             string            `json:"status"`
	ServiceCenter      string            `json:"service_center"`
	ScheduledDate      string            `json:"scheduled_date,omitempty"`
	ScheduledTime      string            `json:"scheduled_time,omitempty"`
	ConfirmationNumber string            `json:"confirmation_number,omitempty"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	EndedAt            time.Time         `json:"ended_at"`
	Transcript         []transcriptEntry `json:"transcript"`
}

func toBookingResponse(result booking.Result) bookingResponse {
	entries := make([]transcriptEntry, 0, len(result.Transcript))
	for _, turn := range result.Transcript {
		entries = append(entries, transcriptEntry{
			Speaker: string(turn.Speaker),
			Text:    turn.Text,
			At:      turn.At,
		})
	}
	return bookingResponse{
		SessionID:          result.SessionID,
		Status:             string(result.Status),
		ServiceCenter:      result.ServiceCenter,
		ScheduledDate:      result.ScheduledDate,
		ScheduledTime:      result.ScheduledTime,
		ConfirmationNumber: result.ConfirmationNumber,
		FailureReason:      result.FailureReason,
		StartedAt:          result.StartedAt,
		EndedAt:            result.EndedAt,
		Transcript:         entries,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleBook(c *gin.Context) {
	s.book(c, s.manager.Book)
}

func (s *Server) handleBookAny(c *gin.Context) {
	s.book(c, s.manager.BookAny)
}

func (s *Server) book(c *gin.Context, book func(context.Context, booking.Request) (booking.Result, error)) {
	var body bookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	req, err := body.toDomain()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := book(c.Request.Context(), req)
	if err != nil {
		var invalid *booking.InvalidRequestError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		var dialErr *booking.DialError
		if errors.As(err, &dialErr) {
			c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("booking failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(result))
}

func (s *Server) handleGetBooking(c *gin.Context) {
	sessionID := c.Param("session_id")
	if result, ok := s.manager.Result(sessionID); ok {
		c.JSON(http.StatusOK, toBookingResponse(result))
		return
	}

	// Not in memory, the session may predate this process.
	stored, err := s.repo.GetSessionByID(c.Request.Context(), sessionID)
	if err != nil {
		s.logger.Error("session lookup failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
		return
	}

	turns, err := s.repo.ListTurnsBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		s.logger.Error("transcript lookup failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := bookingResponse{
		SessionID:          stored.ID,
		Status:             stored.ResultStatus,
		ServiceCenter:      stored.ServiceCenterName,
		ScheduledDate:      stored.ScheduledDate,
		ScheduledTime:      stored.ScheduledTime,
		ConfirmationNumber: stored.ConfirmationNumber,
		FailureReason:      stored.FailureReason,
		StartedAt:          stored.StartedAt,
		Transcript:         make([]transcriptEntry, 0, len(turns)),
	}
	if stored.EndedAt != nil {
		resp.EndedAt = *stored.EndedAt
	}
	for _, turn := range turns {
		resp.Transcript = append(resp.Transcript, transcriptEntry{
			Speaker: turn.Speaker,
			Text:    turn.Content,
			At:      turn.SpokenAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancelBooking(c *gin.Context) {
	sessionID := c.Param("session_id")
	result, err := s.manager.Cancel(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
			return
		}
		s.logger.Error("cancel failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(result))
}
