package server

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// RoomManager is the single source of truth for room membership and slot
// assignment. Every mutation happens under its mutex, so no two operations
// touching the same room ever interleave. Terminated rooms are evicted
// immediately and are never observable through the manager.
type RoomManager struct {
	rooms   map[string]*Room
	byConn  map[string]string // connectionID -> roomID reverse index
	usedIDs map[string]bool   // live room ids, for random-id dedup
	mu      sync.Mutex
}

type Room struct {
	ID        string
	Members   []Member
	State     RoomState
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	ConnectionID string
	Slot         int
}

type RoomState string

const (
	StateWaitingForFirst  RoomState = "waiting_first"
	StateWaitingForSecond RoomState = "waiting_second"
	StateCountdown        RoomState = "countdown"
	StateInGame           RoomState = "in_game"
)

var (
	ErrRoomNotFound  = errors.New("ROOM_NOT_FOUND: Room not found")
	ErrRoomFull      = errors.New("ROOM_FULL: Room already has 2 players")
	ErrRoomExists    = errors.New("ROOM_EXISTS: Room id already in use")
	ErrAlreadyInRoom = errors.New("ALREADY_IN_ROOM: Connection already belongs to a room")
)

// RemovalReport describes what RemoveConnection did to the room the
// connection belonged to.
type RemovalReport struct {
	RoomID       string
	Survivors    []Member
	Evicted      bool
	WasCountdown bool
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:   make(map[string]*Room),
		byConn:  make(map[string]string),
		usedIDs: make(map[string]bool),
	}
}

// CreateRoom creates a room and seats the connection in slot 0. A client-
// supplied id is validated and must be unused; an empty id is generated
// randomly with the usual bounded retry.
func (rm *RoomManager) CreateRoom(connID, requestedID string) (string, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, inRoom := rm.byConn[connID]; inRoom {
		return "", ErrAlreadyInRoom
	}

	var roomID string
	if requestedID != "" {
		requestedID = NormalizeRoomID(requestedID)
		if err := ValidateRoomID(requestedID); err != nil {
			return "", err
		}
		if rm.usedIDs[requestedID] {
			return "", ErrRoomExists
		}
		roomID = requestedID
	} else {
		generated, err := GenerateRoomID(rm.usedIDs)
		if err != nil {
			return "", err
		}
		roomID = generated
	}

	now := time.Now()
	room := &Room{
		ID:        roomID,
		Members:   make([]Member, 0, 2),
		State:     StateWaitingForFirst,
		CreatedAt: now,
		UpdatedAt: now,
	}
	room.addMember(connID)

	rm.rooms[roomID] = room
	rm.usedIDs[roomID] = true
	rm.byConn[connID] = roomID

	return roomID, nil
}

// JoinRoom seats the connection in the next free slot, assigned by arrival
// order and never reassigned for the room's lifetime.
func (rm *RoomManager) JoinRoom(roomID, connID string) (int, []Member, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, inRoom := rm.byConn[connID]; inRoom {
		return -1, nil, ErrAlreadyInRoom
	}

	room, exists := rm.rooms[NormalizeRoomID(roomID)]
	if !exists {
		return -1, nil, ErrRoomNotFound
	}

	if len(room.Members) >= 2 {
		return -1, nil, ErrRoomFull
	}

	slot := room.addMember(connID)
	room.UpdatedAt = time.Now()
	rm.byConn[connID] = room.ID

	return slot, slices.Clone(room.Members), nil
}

// addMember seats the connection in the lowest free slot. Slots stay fixed
// for the room's lifetime, so a member joining after an opponent left takes
// whichever of 0/1 the survivor does not hold. Caller holds the manager lock.
func (r *Room) addMember(connID string) int {
	taken := [2]bool{}
	for _, m := range r.Members {
		taken[m.Slot] = true
	}

	slot := 0
	if taken[0] {
		slot = 1
	}

	r.Members = append(r.Members, Member{ConnectionID: connID, Slot: slot})
	if len(r.Members) == 1 {
		r.State = StateWaitingForSecond
	}

	return slot
}

// Members returns a snapshot of the room's membership, or false if the
// room does not exist (including after eviction).
func (rm *RoomManager) Members(roomID string) ([]Member, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[roomID]
	if !exists {
		return nil, false
	}
	return slices.Clone(room.Members), true
}

// RoomByConnection resolves the room a connection belongs to, for relaying.
func (rm *RoomManager) RoomByConnection(connID string) (string, []Member, int, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	roomID, inRoom := rm.byConn[connID]
	if !inRoom {
		return "", nil, -1, false
	}

	room := rm.rooms[roomID]
	selfSlot := -1
	for _, m := range room.Members {
		if m.ConnectionID == connID {
			selfSlot = m.Slot
			break
		}
	}

	return roomID, slices.Clone(room.Members), selfSlot, true
}

// BeginCountdown moves a full room into the countdown state.
func (rm *RoomManager) BeginCountdown(roomID string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[roomID]
	if !exists {
		return ErrRoomNotFound
	}
	if len(room.Members) != 2 {
		return errors.New("INVALID_STATE: Countdown requires 2 members")
	}

	room.State = StateCountdown
	room.UpdatedAt = time.Now()
	return nil
}

// BeginGame atomically transitions countdown -> in_game and returns the
// membership snapshot to broadcast to. It is the only path that starts a
// game; a timer firing after the room was torn down (or its countdown
// cancelled) sees ErrRoomNotFound here and must skip silently.
func (rm *RoomManager) BeginGame(roomID string) ([]Member, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[roomID]
	if !exists || room.State != StateCountdown {
		return nil, ErrRoomNotFound
	}

	room.State = StateInGame
	room.UpdatedAt = time.Now()
	return slices.Clone(room.Members), nil
}

// InCountdown reports whether the room is currently counting down. Timer
// ticks check this so a cancelled countdown never broadcasts again.
func (rm *RoomManager) InCountdown(roomID string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[roomID]
	return exists && room.State == StateCountdown
}

// RemoveConnection takes the connection out of its room. An emptied room is
// evicted (its id becomes reusable); a surviving member is reported so the
// caller can notify it. The invariant that a connection belongs to at most
// one room makes the report singular.
func (rm *RoomManager) RemoveConnection(connID string) (RemovalReport, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	roomID, inRoom := rm.byConn[connID]
	if !inRoom {
		return RemovalReport{}, false
	}
	delete(rm.byConn, connID)

	room := rm.rooms[roomID]
	report := RemovalReport{
		RoomID:       roomID,
		WasCountdown: room.State == StateCountdown,
	}

	room.Members = slices.DeleteFunc(room.Members, func(m Member) bool {
		return m.ConnectionID == connID
	})

	if len(room.Members) == 0 {
		delete(rm.rooms, roomID)
		delete(rm.usedIDs, roomID)
		report.Evicted = true
		return report, true
	}

	room.State = StateWaitingForSecond
	room.UpdatedAt = time.Now()
	report.Survivors = slices.Clone(room.Members)
	return report, true
}

// RoomCount reports the number of live rooms, for the health endpoint.
func (rm *RoomManager) RoomCount() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.rooms)
}
