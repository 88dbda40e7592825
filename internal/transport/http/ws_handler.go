package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/domain"
)

// StatusNotifier reports tournament status transitions.
type StatusNotifier interface {
	Watch(tournamentID string, notify func(app.StatusChange)) (cancel func())
}

// WSHandler bridges one websocket connection to one quiz session.
type WSHandler struct {
	service  *app.TournamentService
	sessions app.SessionRepository
	watcher  StatusNotifier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.TournamentService, sessions app.SessionRepository, watcher StatusNotifier, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:  service,
		sessions: sessions,
		watcher:  watcher,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
	domain.SessionSnapshot
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs a quiz session for ?tournamentId= until
// the connection closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tournamentID := r.URL.Query().Get("tournamentId")
	if tournamentID == "" {
		http.Error(w, "missing tournamentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	controller, err := h.service.Play(ctx, tournamentID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorFor(err)})
		return
	}

	sessionID := uuid.NewString()
	logger := h.logger.With(slog.String("session_id", sessionID), slog.String("tournament_id", tournamentID))
	h.sessions.Put(sessionID, controller)
	logger.Info("quiz session opened")

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	var (
		sendMu sync.Mutex
		closed bool
	)
	// emit never blocks past the writer's exit, so observers on the controller
	// and watcher goroutines cannot wedge after a write failure.
	emit := func(msg outboundMessage) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if closed {
			return
		}
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", slog.Any("error", err))
				return
			}
		}
	}()

	unsubscribe := controller.OnSessionChange(func(snap domain.SessionSnapshot) {
		emit(outboundMessage{Type: "session", Payload: sessionPayload{SessionID: sessionID, SessionSnapshot: snap}})
	})
	stopWatching := func() {}
	if h.watcher != nil {
		stopWatching = h.watcher.Watch(tournamentID, func(change app.StatusChange) {
			emit(outboundMessage{Type: "status", Payload: change})
		})
	}

	if status, err := h.service.Status(ctx, tournamentID); err == nil {
		emit(outboundMessage{Type: "status", Payload: app.StatusChange{TournamentID: tournamentID, To: status, At: h.service.Now()}})
	}
	emit(outboundMessage{Type: "session", Payload: sessionPayload{SessionID: sessionID, SessionSnapshot: controller.Snapshot()}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, controller, inbound, emit); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				logger.Debug("rejected quiz message", slog.String("type", inbound.Type), slog.Any("error", err))
			}
			emit(outboundMessage{Type: "error", Payload: errorFor(err)})
		}
	}

	stopWatching()
	unsubscribe()
	switch controller.Phase() {
	case domain.PhaseNotStarted, domain.PhaseInProgress:
		_ = controller.Discard()
		logger.Info("quiz session abandoned")
	}
	h.sessions.Delete(sessionID)

	sendMu.Lock()
	closed = true
	close(send)
	sendMu.Unlock()
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, controller *app.QuizController, inbound inboundMessage, emit func(outboundMessage)) error {
	switch inbound.Type {
	case "start":
		return controller.Start()
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fmt.Errorf("%w: invalid select payload", domain.ErrValidation)
		}
		return controller.SelectAnswer(payload.Option)
	case "next":
		if snap := controller.Snapshot(); snap.Phase == domain.PhaseInProgress && snap.CurrentIndex == snap.Total-1 {
			// Next on the last question submits.
			h.inBackground(ctx, emit, controller.Next)
			return nil
		}
		return controller.Next(ctx)
	case "previous":
		return controller.Previous()
	case "jump":
		var payload jumpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fmt.Errorf("%w: invalid jump payload", domain.ErrValidation)
		}
		return controller.JumpTo(payload.Index)
	case "submit":
		h.inBackground(ctx, emit, func(ctx context.Context) error {
			_, err := controller.Submit(ctx)
			return err
		})
		return nil
	case "discard":
		return controller.Discard()
	default:
		return fmt.Errorf("%w: unsupported message type %q", domain.ErrValidation, inbound.Type)
	}
}

// inBackground runs a submitting operation off the read loop. The API call can
// take a while and the loop must keep reading so a disconnect is noticed.
func (h *WSHandler) inBackground(ctx context.Context, emit func(outboundMessage), op func(context.Context) error) {
	go func() {
		if err := op(context.WithoutCancel(ctx)); err != nil {
			emit(outboundMessage{Type: "error", Payload: errorFor(err)})
		}
	}()
}

func errorFor(err error) errorPayload {
	return errorPayload{Kind: domain.ErrorKind(err), Message: err.Error()}
}
