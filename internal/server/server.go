package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"

	"basra-server/internal/game"
)

const defaultPort = 3000

// GameConfig carries the dealing parameters baked into every startGame
// payload. Basra defaults: hands of 6, 4 ground cards dealt to slot 0,
// play to 101.
type GameConfig struct {
	HandSize           int
	GroundSize         int
	GroundDistribution game.GroundDistribution
	CountdownSeconds   int
	TargetScore        int
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		HandSize:           6,
		GroundSize:         4,
		GroundDistribution: game.GroundAllToSlot0,
		CountdownSeconds:   5,
		TargetScore:        101,
	}
}

type Server struct {
	port              int
	connectionManager *ConnectionManager
	roomManager       *RoomManager
	scheduler         *CountdownScheduler
	rateLimiter       *RateLimiter
	connectionHealth  *ConnectionHealth
	config            GameConfig
}

func NewServer() (*Server, *http.Server) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port <= 0 {
		port = defaultPort
	}

	srv := &Server{
		port:              port,
		connectionManager: NewConnectionManager(),
		roomManager:       NewRoomManager(),
		scheduler:         NewCountdownScheduler(),
		rateLimiter:       NewRateLimiter(20, time.Second),
		connectionHealth:  NewConnectionHealth(),
		config:            DefaultGameConfig(),
	}

	go srv.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer
}

// Shutdown stops every countdown and closes all live sockets. The room
// table is process-local, so there is nothing to flush.
func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.CancelAll()

	conns := s.connectionManager.AllConnections()
	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "Server closing")
	}

	log.Printf("Closed %d connections, dropped %d rooms", len(conns), s.roomManager.RoomCount())
	return ctx.Err()
}

// cleanupTask prunes rate-limiter state for connections that went quiet.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.rateLimiter.Cleanup()
	}
}
