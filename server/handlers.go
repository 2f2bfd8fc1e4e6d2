// server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chainreaction/gameserver/broker"
	"github.com/chainreaction/gameserver/lifecycle"
	"github.com/chainreaction/gameserver/logger"
	"github.com/chainreaction/gameserver/models"
	"github.com/chainreaction/gameserver/persistence"
	"github.com/chainreaction/gameserver/services"
)

const sessionCookieName = "session_id"

type contextKey int

const sessionContextKey contextKey = iota

type apiResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Token   string `json:"token,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Infof("Failed to write response: %v", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, apiResponse{Success: false, Reason: reason})
}

// sessionAuth resolves the session cookie to a stored session record
// and rejects the request when none exists.
func (s *GameServer) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			writeFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sess, err := s.store.GetSessionByID(r.Context(), cookie.Value)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *models.SessionRecord {
	sess, _ := r.Context().Value(sessionContextKey).(*models.SessionRecord)
	return sess
}

// verifyToken checks the request token against the session the cookie
// resolved to. A token minted for another session means the request was
// tampered with.
func verifyToken(r *http.Request, sess *models.SessionRecord) bool {
	id, err := services.SessionFromToken(r.PostFormValue("token"))
	return err == nil && id == sess.SessionID
}

func (s *GameServer) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Duration(s.cfg.Session.TimeoutHours) * time.Hour / time.Second),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// handleCommand is the single lifecycle endpoint: the command name and
// its parameters arrive as form fields and are dispatched to the
// controller.
func (s *GameServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := r.ParseForm(); err != nil || !verifyToken(r, sess) {
		writeJSON(w, http.StatusOK, lifecycle.Result{Success: false, Reason: "unauthorized"})
		return
	}

	cmd := lifecycle.Command{
		Name:   r.PostFormValue("command"),
		Params: map[string]string{},
	}
	for key, values := range r.PostForm {
		if key == "command" || key == "token" || len(values) == 0 {
			continue
		}
		cmd.Params[key] = values[0]
	}

	s.monitor.IncCommandsReceived(cmd.Name)
	start := time.Now()
	wasWaiting := sess.State.IsWaitingForGame()
	result := s.controller.Execute(r.Context(), sess.SessionID, cmd)
	s.monitor.ObserveCommandLatency(time.Since(start))
	if result.Success && result.GameState != nil && wasWaiting != result.GameState.IsWaitingForGame() {
		if result.GameState.IsWaitingForGame() {
			s.monitor.IncWaitingPlayers()
		} else {
			s.monitor.DecWaitingPlayers()
		}
		// Room rows only change when a player enters or leaves a lobby.
		if count, err := s.store.CountOpenRooms(r.Context()); err == nil {
			s.monitor.SetOpenRooms(count)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// handleChannelAuth issues subscription grants. A client may authorize
// its own private channel or the presence channel its game state names,
// nothing else.
func (s *GameServer) handleChannelAuth(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := r.ParseForm(); err != nil || !verifyToken(r, sess) {
		writeFailure(w, http.StatusForbidden, "unauthorized")
		return
	}
	socketID := r.PostFormValue("socket_id")
	channel := r.PostFormValue("channel_name")
	token := services.SessionToken(sess.SessionID)

	switch {
	case broker.IsPrivateChannel(channel):
		if channel != services.PrivateChannel(token) {
			writeFailure(w, http.StatusForbidden, "unauthorized")
			return
		}
		grant, err := s.hub.AuthorizeChannel(channel, socketID, nil)
		if err != nil {
			writeFailure(w, http.StatusForbidden, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, grant)
	case broker.IsPresenceChannel(channel):
		if sess.State == nil || channel != sess.State.ChannelName() {
			writeFailure(w, http.StatusForbidden, "unauthorized")
			return
		}
		member := &broker.PresenceMember{
			UserID: token,
			UserInfo: map[string]interface{}{
				"subscription_time": time.Now().Unix(),
			},
		}
		grant, err := s.hub.AuthorizeChannel(channel, socketID, member)
		if err != nil {
			writeFailure(w, http.StatusForbidden, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, grant)
	default:
		writeFailure(w, http.StatusForbidden, "unauthorized")
	}
}

// handleAppSettings hands the client everything it needs to open the
// realtime connection.
func (s *GameServer) handleAppSettings(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":           s.hub.AppKey(),
		"cluster":       s.cfg.Broker.Cluster,
		"auth_endpoint": "/pusher/channel-auth",
		"ws_endpoint":   "/ws",
		"token":         services.SessionToken(sess.SessionID),
	})
}

func (s *GameServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	email := r.PostFormValue("email")

	sessionID, err := s.accounts.Register(r.Context(), username, password, email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserExists):
			writeFailure(w, http.StatusConflict, "user exists")
		case errors.Is(err, services.ErrInvalidData):
			writeFailure(w, http.StatusBadRequest, "received invalid data")
		default:
			writeFailure(w, http.StatusInternalServerError, "database query failed")
		}
		return
	}
	s.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Token: services.SessionToken(sessionID)})
}

func (s *GameServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	sessionID, status, err := s.accounts.Login(r.Context(), username, password)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "database query failed")
		return
	}
	if status == services.CredentialsInvalid {
		writeFailure(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, struct {
		apiResponse
		Activated bool `json:"activated"`
	}{
		apiResponse: apiResponse{Success: true, Token: services.SessionToken(sessionID)},
		Activated:   status == services.CredentialsValid,
	})
}

func (s *GameServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.accounts.Logout(r.Context(), sess.SessionID); err != nil {
		writeFailure(w, http.StatusInternalServerError, "database query failed")
		return
	}
	clearSessionCookie(w)
	// Logging out while waiting for a game released a lobby slot.
	if count, err := s.store.CountOpenRooms(r.Context()); err == nil {
		s.monitor.SetOpenRooms(count)
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (s *GameServer) handleActivate(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("_user")
	key := r.PostFormValue("_activation_key")

	sessionID, err := s.accounts.Activate(r.Context(), username, key)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidKey), errors.Is(err, persistence.ErrNotFound):
			writeFailure(w, http.StatusForbidden, "invalid key")
		default:
			writeFailure(w, http.StatusInternalServerError, "database query failed")
		}
		return
	}
	s.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Token: services.SessionToken(sessionID)})
}

func (s *GameServer) handleRegenerateActivation(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.accounts.RegenerateActivationKey(r.Context(), sess.Username); err != nil {
		writeFailure(w, http.StatusInternalServerError, "database query failed")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (s *GameServer) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	email := r.PostFormValue("email")

	err := s.accounts.RequestPasswordReset(r.Context(), username, email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrResetPending):
			writeFailure(w, http.StatusConflict, "a reset key was already issued")
		case errors.Is(err, services.ErrNotActivated):
			writeFailure(w, http.StatusForbidden, "account is not yet activated")
		case errors.Is(err, persistence.ErrNotFound), errors.Is(err, services.ErrInvalidData):
			writeFailure(w, http.StatusForbidden, "received invalid data")
		default:
			writeFailure(w, http.StatusInternalServerError, "database query failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (s *GameServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("_user")
	key := r.PostFormValue("_reset_key")
	password := r.PostFormValue("password")

	err := s.accounts.ResetPassword(r.Context(), username, key, password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidKey), errors.Is(err, persistence.ErrNotFound):
			writeFailure(w, http.StatusForbidden, "invalid key")
		case errors.Is(err, services.ErrInvalidData):
			writeFailure(w, http.StatusBadRequest, "received invalid data")
		default:
			writeFailure(w, http.StatusInternalServerError, "database query failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}
