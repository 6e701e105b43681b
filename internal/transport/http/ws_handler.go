package http

import (
	"log"
	"net/http"
	"time"

	"mock-exam-service/internal/app"

	"github.com/gorilla/websocket"
)

// WSHandler streams live standings to admin dashboards.
type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

const pingInterval = 30 * time.Second

// ServeWS upgrades the request and pushes a standings snapshot after every change.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	paperID := r.URL.Query().Get("paperId")
	if paperID == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "missing paperId"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.SubscribeStandings(r.Context(), paperID)
	if err != nil {
		log.Printf("ws standings %s: %v", paperID, err)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: http.StatusText(statusFor(err))}})
		return
	}
	defer cancel()

	// Reader: the client never sends data, but reading is needed to observe close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "standings", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
