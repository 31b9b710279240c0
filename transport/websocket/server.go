package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-engine/internal/entity"
	eventbus "github.com/rocketscienceinc/tictactoe-engine/internal/transport/redis"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

type gameUseCase interface {
	NewGame(ctx context.Context) (string, entity.State, error)
	MakeTurn(ctx context.Context, gameID string, cell int) (entity.MoveResult, entity.State, error)
	ResetGame(ctx context.Context, gameID string) (entity.State, error)
	GetGame(ctx context.Context, gameID string) (entity.State, error)
	EndGame(ctx context.Context, gameID string) error
}

type eventSubscriber interface {
	Subscribe(ctx context.Context, gameID string) (*eventbus.Subscription, error)
}

type handlerFunc func(ctx context.Context, conn *connection, message *Message) error

type Server struct {
	logger   *slog.Logger
	games    gameUseCase
	events   eventSubscriber
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, games gameUseCase, events eventSubscriber) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		games:  games,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionNewGame] = server.handleNewGame
	server.handlers[actionTurn] = server.handleGameTurn
	server.handlers[actionReset] = server.handleResetGame
	server.handlers[actionState] = server.handleGameState
	server.handlers[actionWatch] = server.handleWatchGame

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)

	return mux
}

// Start - starts WebSocket server, it stops when ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket and serves it until it closes.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	wsConn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	conn := newConnection(wsConn)

	defer func() {
		cancel()
		that.cleanup(conn)
	}()

	log.Info("WebSocket connection established", "remote", req.RemoteAddr)

	go conn.keepAlive(ctx)

	if err = that.handleMessages(ctx, conn); err != nil {
		log.Info("connection closed", "reason", err)
	}
}

// handleMessages - processes messages from the client.
func (that *Server) handleMessages(ctx context.Context, conn *connection) error {
	log := that.logger.With("method", "handleMessages")

	for {
		_, reqBody, err := conn.ws.ReadMessage()
		if err != nil {
			return err
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			if err = that.sendErrorResponse(conn, actionError, "malformed message"); err != nil {
				return err
			}
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			if err = that.sendErrorResponse(conn, message.Action, "unknown action"); err != nil {
				return err
			}
			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
			return err
		}
	}
}

// cleanup - ends the games created on the connection and stops its watches.
func (that *Server) cleanup(conn *connection) {
	log := that.logger.With("method", "cleanup")

	gameIDs, subs := conn.release()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			log.Error("failed to close subscription", "error", err)
		}
	}

	for _, gameID := range gameIDs {
		if err := that.games.EndGame(context.Background(), gameID); err != nil {
			log.Warn("failed to end game", "gameID", gameID, "error", err)
		}
	}

	_ = conn.ws.Close()
}

func (that *Server) sendMessage(conn *connection, action string, payload Payload) error {
	message, err := newMessage(action, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err = conn.write(message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (that *Server) sendErrorResponse(conn *connection, action, errMsg string) error {
	return that.sendMessage(conn, action, Payload{Error: errMsg})
}

// connection - a client socket, the games it created and the games it watches.
type connection struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	games   map[string]struct{}
	watches map[string]*eventbus.Subscription
}

func newConnection(ws *websocket.Conn) *connection {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &connection{
		ws:      ws,
		games:   make(map[string]struct{}),
		watches: make(map[string]*eventbus.Subscription),
	}
}

// write - gorilla connections support one concurrent writer.
func (that *connection) write(message *Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = that.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return that.ws.WriteJSON(message)
}

func (that *connection) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.writeMu.Lock()
			err := that.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			that.writeMu.Unlock()

			if err != nil {
				return
			}
		}
	}
}

func (that *connection) ownGame(gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.games[gameID] = struct{}{}
}

// addWatch - returns false when the game is already watched.
func (that *connection) addWatch(gameID string, sub *eventbus.Subscription) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.watches[gameID]; ok {
		return false
	}

	that.watches[gameID] = sub
	return true
}

func (that *connection) release() ([]string, []*eventbus.Subscription) {
	that.mu.Lock()
	defer that.mu.Unlock()

	gameIDs := make([]string, 0, len(that.games))
	for gameID := range that.games {
		gameIDs = append(gameIDs, gameID)
	}

	subs := make([]*eventbus.Subscription, 0, len(that.watches))
	for _, sub := range that.watches {
		subs = append(subs, sub)
	}

	that.games = make(map[string]struct{})
	that.watches = make(map[string]*eventbus.Subscription)

	return gameIDs, subs
}
