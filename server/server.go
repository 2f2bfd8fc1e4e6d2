// server/server.go
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/chainreaction/gameserver/broker"
	"github.com/chainreaction/gameserver/config"
	"github.com/chainreaction/gameserver/lifecycle"
	"github.com/chainreaction/gameserver/logger"
	"github.com/chainreaction/gameserver/monitor"
	"github.com/chainreaction/gameserver/persistence"
	"github.com/chainreaction/gameserver/services"
)

// GameServer is the HTTP face of the coordination layer: account
// routes, the command endpoint, channel authorization and the realtime
// socket.
type GameServer struct {
	cfg        *config.Config
	store      persistence.Store
	hub        *broker.Hub
	controller *lifecycle.Controller
	accounts   *services.AccountService
	monitor    *monitor.Monitor
	upgrader   websocket.Upgrader
	router     chi.Router
}

func NewGameServer(
	cfg *config.Config,
	store persistence.Store,
	hub *broker.Hub,
	controller *lifecycle.Controller,
	accounts *services.AccountService,
	mon *monitor.Monitor,
) *GameServer {
	s := &GameServer{
		cfg:        cfg,
		store:      store,
		hub:        hub,
		controller: controller,
		accounts:   accounts,
		monitor:    mon,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/activate", s.handleActivate)
	r.Post("/request-password-reset", s.handleRequestPasswordReset)
	r.Post("/reset-password", s.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionAuth)
		r.Post("/logout", s.handleLogout)
		r.Post("/regenerate-activation-key", s.handleRegenerateActivation)
		r.Post("/game-server-endpoint", s.handleCommand)
		r.Post("/pusher/application-settings", s.handleAppSettings)
		r.Post("/pusher/channel-auth", s.handleChannelAuth)
		r.Get("/ws", s.handleWebSocket)
	})

	s.router = r
	return s
}

func (s *GameServer) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.Server.HTTPAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return srv.ListenAndServe()
}

// Handler exposes the router for tests.
func (s *GameServer) Handler() http.Handler { return s.router }

// handleWebSocket upgrades the connection and services subscribe /
// unsubscribe frames until the client goes away. Subscriptions to
// private and presence channels must carry grants from the channel-auth
// endpoint.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	conn := broker.NewConnection(wsConn)
	logger.Log.Infof("New realtime connection from %s, socket ID: %s", wsConn.RemoteAddr(), conn.ID())

	defer func() {
		logger.Log.Infof("Realtime connection closed, socket ID: %s", conn.ID())
		s.hub.UnsubscribeAll(conn.ID())
		conn.Close()
	}()

	if err := conn.SendEvent(&broker.Event{
		Event: "connection_established",
		Data:  map[string]string{"socket_id": conn.ID()},
	}); err != nil {
		return
	}

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msg.Event {
		case broker.EventSubscribe:
			if err := s.hub.Subscribe(msg.Channel, conn, msg.Auth, msg.ChannelData); err != nil {
				conn.SendEvent(&broker.Event{
					Channel: msg.Channel,
					Event:   "subscription_error",
					Data:    map[string]string{"reason": err.Error()},
				})
				continue
			}
			conn.SendEvent(&broker.Event{
				Channel: msg.Channel,
				Event:   "subscription_succeeded",
				Data:    map[string]interface{}{},
			})
		case broker.EventUnsubscribe:
			s.hub.Unsubscribe(msg.Channel, conn.ID())
		case broker.EventPing:
			conn.SendEvent(&broker.Event{Event: broker.EventPong})
		default:
			logger.Log.Infof("Unknown client event %q on socket %s", msg.Event, conn.ID())
		}
	}
}
