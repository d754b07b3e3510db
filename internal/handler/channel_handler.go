package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/prepforge/prepforge-backend/internal/model"
	"github.com/prepforge/prepforge-backend/internal/response"
	"github.com/prepforge/prepforge-backend/internal/service"
	"github.com/prepforge/prepforge-backend/internal/session"
	ws "github.com/prepforge/prepforge-backend/internal/websocket"
)

// expiryTimeout bounds the finalize triggered by timer expiry; the request
// context is gone by the time it fires.
const expiryTimeout = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ChannelHandler serves the live attempt channel: the server-driven
// countdown out, partial submissions in.
type ChannelHandler struct {
	attemptService *service.AttemptService
	registry       *session.Registry
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewChannelHandler creates a new ChannelHandler.
func NewChannelHandler(attemptService *service.AttemptService, registry *session.Registry, log zerolog.Logger, allowedOrigins []string) *ChannelHandler {
	return &ChannelHandler{
		attemptService: attemptService,
		registry:       registry,
		log:            log.With().Str("component", "channel_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptChannel godoc
// WS /ws/v1/attempts/:id/channel
// Upgrades to WebSocket and runs the countdown for one attempt. Only the
// timer goroutine writes to the connection; the read loop just consumes
// partial submissions.
func (h *ChannelHandler) AttemptChannel(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), attemptID)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempt.IsFinished() {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	chLog := h.log.With().Str("attempt_id", attemptID.String()).Logger()
	chLog.Info().Msg("Channel opened")

	// Remaining time always derives from the immutable start timestamp, so
	// a reconnect resumes the countdown instead of restarting it.
	timer := session.NewTimer(attemptID, attempt.StartedAt, attempt.Duration(), session.DefaultTickInterval)
	if prev := h.registry.Put(timer); prev != nil {
		// Reconnect: the old connection's timer yields to this one.
		prev.Stop()
	}

	done := make(chan struct{})
	timer.Start(
		func(remainingSeconds int) {
			if err := ws.WriteTyped(conn, ws.NewTick(remainingSeconds)); err != nil {
				chLog.Debug().Err(err).Msg("Tick write failed")
			}
		},
		func() {
			h.expire(chLog, conn, attemptID)
			close(done)
		},
	)
	defer func() {
		timer.Stop()
		h.registry.Remove(timer)
	}()

	for {
		var envelope ws.Envelope
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				chLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				chLog.Debug().Msg("Connection closed")
			}
			return
		}

		if err := ws.DecodeInto(data, &envelope); err != nil || envelope.Type != ws.TypeSubmit {
			// Malformed or unknown frames are dropped, never answered: the
			// channel stays one-directional from the server side.
			chLog.Warn().Str("type", string(envelope.Type)).Msg("Ignoring unexpected frame")
			continue
		}

		var msg ws.SubmitMessage
		if err := ws.DecodeInto(data, &msg); err != nil {
			chLog.Warn().Err(err).Msg("Ignoring malformed submit frame")
			continue
		}
		h.handleSubmit(c.Request.Context(), chLog, attemptID, &msg)

		select {
		case <-done:
			// Expiry fired while we were reading; the channel is over.
			return
		default:
		}
	}
}

// handleSubmit validates and autosaves one partial submission.
func (h *ChannelHandler) handleSubmit(ctx context.Context, chLog zerolog.Logger, attemptID uuid.UUID, msg *ws.SubmitMessage) {
	answers, err := model.ParseAnswerMap(msg.Answers)
	if err != nil {
		chLog.Warn().Err(err).Msg("Ignoring submit with invalid answers")
		return
	}
	if len(answers) == 0 {
		return
	}

	if err := h.attemptService.RecordPartial(ctx, attemptID, answers); err != nil {
		if errors.Is(err, service.ErrAlreadyFinished) {
			chLog.Debug().Msg("Submit after finalize dropped")
			return
		}
		chLog.Error().Err(err).Msg("Autosave failed")
	}
}

// expire seals the attempt at time-up, announces the finish, and closes.
func (h *ChannelHandler) expire(chLog zerolog.Logger, conn *websocket.Conn, attemptID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), expiryTimeout)
	defer cancel()

	if err := h.attemptService.FinalizeExpired(ctx, attemptID); err != nil {
		chLog.Error().Err(err).Msg("Expiry finalize failed")
	}

	if err := ws.WriteTyped(conn, ws.NewFinish()); err != nil {
		chLog.Debug().Err(err).Msg("Finish write failed")
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "time up"), deadline)
	_ = conn.Close()

	chLog.Info().Msg("Channel closed at expiry")
}
