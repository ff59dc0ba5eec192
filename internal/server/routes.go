package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.HelloWorldHandler)

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/websocket", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "Hello World"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(map[string]int{
		"rooms":       s.roomManager.RoomCount(),
		"connections": s.connectionManager.Count(),
	})
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	defer s.handleDisconnect(connectionID)

	for {
		// Read from client
		msgType, data, err := socket.Read(ctx)

		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			log.Printf("Rate limited %s", connectionID)
			s.sendError(socket, ctx, "RATE_LIMITED: Too many messages")
			continue
		}
		s.connectionHealth.UpdateActivity(connectionID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		log.Printf("Message Type '%s' from %s", msg.Type, connectionID)

		// Route the message
		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID)

		case "createRoom":
			s.handleCreateRoom(socket, ctx, connectionID, msg.Payload)

		case "joinRoom":
			s.handleJoinRoom(socket, ctx, connectionID, msg.Payload)

		case "sendMove":
			s.relayToOpponent(connectionID, "receiveMove", msg.Payload)

		case "send-move":
			s.relayToOpponent(connectionID, "receive-move", msg.Payload)

		case "updateState", "newRound":
			s.relayToOpponent(connectionID, msg.Type, msg.Payload)

		case "roundEnd", "gameEnd":
			// Both clients need the authoritative outcome, sender included
			s.relayToRoom(connectionID, msg.Type, msg.Payload)

		default:
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			s.sendError(socket, ctx, fmt.Sprintf("Unknown message type: %s", msg.Type))
		}
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string) {
	log.Printf("Ping from %s", connectionID)

	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("Marshal error: %w", err)
	}

	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// sendFailure reports a registry error to the requesting client as the
// named failure event the protocol defines for it; anything without a
// dedicated event goes out as a generic error.
func (s *Server) sendFailure(socket *websocket.Conn, ctx context.Context, err error) {
	eventType := "error"
	switch {
	case errors.Is(err, ErrRoomNotFound):
		eventType = "roomNotFound"
	case errors.Is(err, ErrRoomFull):
		eventType = "roomFull"
	}

	response := ServerMessage{
		Type: eventType,
		Payload: ErrorMessage{
			Message: err.Error(),
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send failure message: %v", err)
	}
}

// broadcastToRoom sends the message to every listed member that still has
// a live socket. A member that disconnected between snapshot and send is
// skipped silently.
func (s *Server) broadcastToRoom(members []Member, messageType string, payload interface{}) {
	for _, member := range members {
		conn := s.connectionManager.GetConnection(member.ConnectionID)
		if conn == nil {
			continue
		}

		msg := ServerMessage{
			Type:    messageType,
			Payload: payload,
		}
		// Use background context for broadcasts
		if err := s.sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to broadcast %s to %s: %v", messageType, member.ConnectionID, err)
		}
	}
}

// handleDisconnect runs when a connection's read loop ends for any reason.
// It is the only teardown path: registry first, then the countdown, then
// the survivor notification.
func (s *Server) handleDisconnect(connectionID string) {
	s.connectionManager.RemoveConnection(connectionID)
	s.rateLimiter.RemoveConnection(connectionID)
	s.connectionHealth.RemoveConnection(connectionID)
	log.Printf("Connection closed: %s", connectionID)

	report, ok := s.roomManager.RemoveConnection(connectionID)
	if !ok {
		return
	}

	// The registry already left the countdown state, so a tick racing this
	// cancel observes a dead room and skips.
	if report.WasCountdown {
		s.scheduler.Cancel(report.RoomID)
	}

	if report.Evicted {
		log.Printf("Room %s emptied and evicted", report.RoomID)
		return
	}

	log.Printf("Connection %s left room %s, notifying survivor", connectionID, report.RoomID)
	s.broadcastToRoom(report.Survivors, "opponentDisconnected", OpponentDisconnectedNotification{
		RoomID: report.RoomID,
	})
}
