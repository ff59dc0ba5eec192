package server

import "basra-server/internal/game"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// CREATE ROOM (createRoom)
// ============================================================================
type CreateRoomRequest struct {
	// RoomID lets the client pick its own id; empty means generate one.
	RoomID   string `json:"roomId,omitempty"`
	PlayerID *int   `json:"playerId,omitempty"` // advisory, server assigns slots
}

type RoomCreatedResponse struct {
	RoomID   string `json:"roomId"`
	PlayerID int    `json:"playerId"`
}

// ============================================================================
// JOIN ROOM (joinRoom)
// ============================================================================
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID *int   `json:"playerId,omitempty"`
}

type PlayerIDAssignedResponse struct {
	PlayerID int `json:"playerId"`
}

type RoomJoinedNotification struct {
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
}

// ============================================================================
// COUNTDOWN (waitingStart / waitingUpdate broadcasts)
// ============================================================================
type CountdownNotification struct {
	Countdown int `json:"countdown"`
}

// ============================================================================
// GAME START (startGame broadcast)
// ============================================================================
type StartGamePayload struct {
	PlayerCount       int            `json:"playerCount"`
	TargetScore       int            `json:"targetScore"`
	StartingPlayerID  int            `json:"startingPlayerId"`
	PlayerHands       [2][]game.Card `json:"playerHands"`
	PlayerGroundPiles [2][]game.Card `json:"playerGroundPiles"`
	Deck              []game.Card    `json:"deck"`
}

// ============================================================================
// DISCONNECT (opponentDisconnected broadcast)
// ============================================================================
type OpponentDisconnectedNotification struct {
	RoomID string `json:"roomId"`
}
