package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nixxel-company-limited/escpos-checkin/printer"
)

const (
	writeWait    = 5 * time.Second
	eventBacklog = 8
)

// handleEvents streams printer connection changes. The first message is the
// state at subscription time.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := s.logger.With(zap.String("client", conn.RemoteAddr().String()))
	logger.Info("Event client connected")
	defer logger.Info("Event client disconnected")

	updates := make(chan printer.State, eventBacklog)
	unsubscribe := s.printer.Subscribe(func(st printer.State) {
		select {
		case updates <- st:
		default:
			logger.Warn("Event client is slow, dropping printer event", zap.Stringer("state", st))
		}
	})
	defer unsubscribe()

	// Drain client frames so close and ping are processed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(st printer.State) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(newStateResponse(st)); err != nil {
			logger.Debug("Event write failed", zap.Error(err))
			return false
		}
		return true
	}

	if !send(s.printer.State()) {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case st := <-updates:
			if !send(st) {
				return
			}
		}
	}
}
