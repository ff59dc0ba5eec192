package server

import (
	"errors"
	"math/rand"
	"strings"
)

const (
	roomIDLength  = 6
	roomIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// With 36^6 ids, collisions are negligible; the bound only matters in
	// pathological tests that pre-fill the id space.
	maxIDAttempts = 100
)

var ErrIDSpaceExhausted = errors.New("ID_SPACE_EXHAUSTED: could not generate an unused room id")

func GenerateRoomID(usedIDs map[string]bool) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		code := make([]byte, roomIDLength)
		for i := range code {
			code[i] = roomIDCharset[rand.Intn(len(roomIDCharset))]
		}
		roomID := string(code)

		if !usedIDs[roomID] {
			return roomID, nil
		}
	}

	return "", ErrIDSpaceExhausted
}

func ValidateRoomID(id string) error {
	if len(id) != roomIDLength {
		return errors.New("Room id must be exactly 6 characters")
	}

	for _, ch := range strings.ToUpper(id) {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return errors.New("Room id must contain only A-Z and 0-9")
		}
	}

	return nil
}

func NormalizeRoomID(id string) string {
	return strings.ToUpper(id)
}
