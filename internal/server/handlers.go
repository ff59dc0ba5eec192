package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"

	"basra-server/internal/game"
)

func (s *Server) handleCreateRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	// createRoom needs no fields; a payload is optional and may carry a
	// client-picked room id.
	var req CreateRoomRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			log.Printf("Dropping malformed createRoom from %s: %v", connectionID, err)
			return
		}
	}

	roomID, err := s.roomManager.CreateRoom(connectionID, req.RoomID)
	if err != nil {
		s.sendFailure(socket, ctx, err)
		return
	}

	log.Printf("Room %s created by %s", roomID, connectionID)

	response := ServerMessage{
		Type: "roomCreated",
		Payload: RoomCreatedResponse{
			RoomID:   roomID,
			PlayerID: 0,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send roomCreated: %v", err)
	}
}

func (s *Server) handleJoinRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.RoomID == "" {
		log.Printf("Dropping malformed joinRoom from %s", connectionID)
		return
	}

	slot, members, err := s.roomManager.JoinRoom(req.RoomID, connectionID)
	if err != nil {
		s.sendFailure(socket, ctx, err)
		return
	}

	roomID := NormalizeRoomID(req.RoomID)
	log.Printf("Connection %s joined room %s as player %d", connectionID, roomID, slot)

	response := ServerMessage{
		Type: "playerIdAssigned",
		Payload: PlayerIDAssignedResponse{
			PlayerID: slot,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send playerIdAssigned: %v", err)
		return
	}

	s.broadcastToRoom(members, "roomJoined", RoomJoinedNotification{
		RoomID:      roomID,
		PlayerCount: len(members),
	})

	// The second arrival is the one and only countdown trigger.
	if len(members) == 2 {
		s.startCountdown(roomID, members)
	}
}

// startCountdown announces the full countdown value and hands the room to
// the scheduler. The scheduler ticks seconds-1 down to 0 and then fires
// game start.
func (s *Server) startCountdown(roomID string, members []Member) {
	if err := s.roomManager.BeginCountdown(roomID); err != nil {
		log.Printf("Failed to begin countdown for %s: %v", roomID, err)
		return
	}

	seconds := s.config.CountdownSeconds
	s.broadcastToRoom(members, "waitingStart", CountdownNotification{Countdown: seconds})

	err := s.scheduler.Start(roomID, seconds,
		func(remaining int) { s.handleCountdownTick(roomID, remaining) },
		func() { s.handleCountdownComplete(roomID) },
	)
	if err != nil {
		// Starting a second countdown for a counting room is a programming
		// error; log loudly rather than limp along with two timers.
		log.Printf("BUG: %v (room %s)", err, roomID)
	}
}

func (s *Server) handleCountdownTick(roomID string, remaining int) {
	// The room may have died since the last tick; a stale timer must stay
	// silent, not broadcast into the void.
	if !s.roomManager.InCountdown(roomID) {
		return
	}

	members, ok := s.roomManager.Members(roomID)
	if !ok {
		return
	}

	s.broadcastToRoom(members, "waitingUpdate", CountdownNotification{Countdown: remaining})
}

// handleCountdownComplete is the single authoritative game-start path. The
// countdown -> in_game transition is atomic in the registry, so a room torn
// down mid-countdown can never produce a startGame.
func (s *Server) handleCountdownComplete(roomID string) {
	members, err := s.roomManager.BeginGame(roomID)
	if err != nil {
		// Room disappeared while the timer was in flight. Skip silently.
		return
	}

	deck := game.NewDeck()
	deck.Shuffle()

	result, err := deck.Deal(s.config.HandSize, s.config.GroundSize, s.config.GroundDistribution)
	if err != nil {
		log.Printf("Deal failed for room %s: %v", roomID, err)
		s.broadcastToRoom(members, "error", ErrorMessage{Message: err.Error()})
		return
	}

	log.Printf("Game started in room %s", roomID)

	s.broadcastToRoom(members, "startGame", StartGamePayload{
		PlayerCount:       2,
		TargetScore:       s.config.TargetScore,
		StartingPlayerID:  0,
		PlayerHands:       result.Hands,
		PlayerGroundPiles: result.Grounds,
		Deck:              result.Remainder,
	})
}

// relayToOpponent forwards an opaque payload to the other member of the
// sender's room. The payload is not inspected; the relay is best-effort
// and a connection outside any room is simply dropped.
func (s *Server) relayToOpponent(connectionID, eventType string, payload json.RawMessage) {
	_, members, _, ok := s.roomManager.RoomByConnection(connectionID)
	if !ok {
		log.Printf("Dropping %s from %s: not in a room", eventType, connectionID)
		return
	}

	for _, member := range members {
		if member.ConnectionID == connectionID {
			continue
		}

		conn := s.connectionManager.GetConnection(member.ConnectionID)
		if conn == nil {
			continue
		}

		msg := ServerMessage{
			Type:    eventType,
			Payload: payload,
		}
		if err := s.sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to relay %s to %s: %v", eventType, member.ConnectionID, err)
		}
	}
}

// relayToRoom broadcasts an opaque payload to the whole room, sender
// included.
func (s *Server) relayToRoom(connectionID, eventType string, payload json.RawMessage) {
	_, members, _, ok := s.roomManager.RoomByConnection(connectionID)
	if !ok {
		log.Printf("Dropping %s from %s: not in a room", eventType, connectionID)
		return
	}

	s.broadcastToRoom(members, eventType, payload)
}
