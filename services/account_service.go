// services/account_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chainreaction/gameserver/broker"
	"github.com/chainreaction/gameserver/lobby"
	"github.com/chainreaction/gameserver/logger"
	"github.com/chainreaction/gameserver/mail"
	"github.com/chainreaction/gameserver/models"
	"github.com/chainreaction/gameserver/persistence"
)

// CredentialStatus is the outcome of a credential check.
type CredentialStatus int

const (
	CredentialsInvalid CredentialStatus = iota
	CredentialsDormant                  // correct password, account not yet activated
	CredentialsValid
)

var (
	ErrUserExists   = errors.New("user exists")
	ErrInvalidData  = errors.New("received invalid data")
	ErrInvalidKey   = errors.New("invalid key")
	ErrNotActivated = errors.New("account is not yet activated")
	ErrResetPending = errors.New("a reset key was already issued")
)

const passwordResetExpiry = 2 * time.Hour

// AccountService owns registration, credential verification, account
// activation, password recovery and the single-session-per-user
// binding.
type AccountService struct {
	store   persistence.Store
	broker  broker.Broker
	lobby   *lobby.Allocator
	mailer  mail.Sender
	baseURL string
}

func NewAccountService(store persistence.Store, brk broker.Broker, alloc *lobby.Allocator, mailer mail.Sender, baseURL string) *AccountService {
	return &AccountService{
		store:   store,
		broker:  brk,
		lobby:   alloc,
		mailer:  mailer,
		baseURL: baseURL,
	}
}

// Register creates a dormant account, mails the activation key and logs
// the fresh user in.
func (s *AccountService) Register(ctx context.Context, username, password, email string) (sessionID string, err error) {
	if len(username) < 5 || len(username) > 15 || len(password) < 5 {
		return "", ErrInvalidData
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidData)
	}
	if _, err := s.store.GetUser(ctx, username); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	keys, err := deriveKeyPair(saltFromHash(string(hash)))
	if err != nil {
		return "", err
	}
	user := &models.UserModel{
		Username:       username,
		Hash:           string(hash),
		Email:          email,
		ActivationHash: keys.Private,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return "", err
	}
	s.sendActivationMail(username, email, keys.Public)
	return s.IssueSession(ctx, username)
}

// VerifyCredentials checks a password against the stored hash. Unknown
// users still pay for one bcrypt comparison so the two failure paths
// take similar time.
func (s *AccountService) VerifyCredentials(ctx context.Context, username, password string) (CredentialStatus, error) {
	user, err := s.store.GetUser(ctx, username)
	if errors.Is(err, persistence.ErrNotFound) {
		dummy, _ := bcrypt.GenerateFromPassword([]byte("timing"), bcrypt.DefaultCost)
		_ = bcrypt.CompareHashAndPassword(dummy, []byte(password))
		return CredentialsInvalid, nil
	}
	if err != nil {
		return CredentialsInvalid, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)) != nil {
		return CredentialsInvalid, nil
	}
	// A successful login voids any outstanding reset key.
	if user.PasswordResetHash != "" {
		if err := s.store.ClearPasswordResetKey(ctx, username); err != nil {
			logger.Log.Warnf("clearing stale reset key for %s: %v", username, err)
		}
	}
	if !user.ActivationStatus {
		return CredentialsDormant, nil
	}
	return CredentialsValid, nil
}

// Login verifies credentials and, when they match, issues a session.
// Dormant accounts get a session too: they need one to request a new
// activation key.
func (s *AccountService) Login(ctx context.Context, username, password string) (sessionID string, status CredentialStatus, err error) {
	status, err = s.VerifyCredentials(ctx, username, password)
	if err != nil || status == CredentialsInvalid {
		return "", status, err
	}
	sessionID, err = s.IssueSession(ctx, username)
	return sessionID, status, err
}

// IssueSession generates a fresh session id for the user and installs
// it together with an empty game state, superseding whatever session
// was active. The old session's private channel is told it has been
// revoked.
func (s *AccountService) IssueSession(ctx context.Context, username string) (string, error) {
	prior, err := s.store.GetSessionByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if prior.SessionID != "" {
		s.invalidateSession(prior.SessionID)
	}
	sessionID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := s.store.BindSession(ctx, username, sessionID, models.NewGameState()); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *AccountService) invalidateSession(sessionID string) {
	token := SessionToken(sessionID)
	channel := PrivateChannel(token)
	occupied, err := s.broker.Occupancy(channel)
	if err != nil {
		logger.Log.Warnf("checking occupancy of %s: %v", channel, err)
		return
	}
	if occupied == 0 {
		return
	}
	if err := s.broker.Trigger(channel, InvalidationEvent(token), map[string]interface{}{}); err != nil {
		logger.Log.Warnf("notifying superseded session %s: %v", sessionID, err)
	}
}

// Logout releases any held lobby slot and clears the session binding.
func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSessionByID(ctx, sessionID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if channel := sess.State.ChannelName(); channel != "" {
		if err := s.lobby.Release(ctx, channel, sess.State.PlayerCount()); err != nil {
			logger.Log.Errorf("releasing room %s on logout of %s: %v", channel, sess.Username, err)
		}
	}
	return s.store.ClearSession(ctx, sessionID)
}

// Activate flips the account to active when the presented key matches
// the stored activation material, then issues a fresh session.
func (s *AccountService) Activate(ctx context.Context, username, key string) (sessionID string, err error) {
	user, err := s.store.GetUser(ctx, username)
	if errors.Is(err, persistence.ErrNotFound) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", err
	}
	if user.ActivationStatus || user.ActivationHash == "" {
		return "", ErrInvalidKey
	}
	if !verifyKey(user.ActivationHash, key, saltFromHash(user.Hash)) {
		return "", ErrInvalidKey
	}
	if err := s.store.ActivateUser(ctx, username); err != nil {
		return "", err
	}
	return s.IssueSession(ctx, username)
}

// RegenerateActivationKey derives and mails a new activation key for a
// dormant account.
func (s *AccountService) RegenerateActivationKey(ctx context.Context, username string) error {
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if user.ActivationStatus {
		return ErrInvalidKey
	}
	keys, err := deriveKeyPair(saltFromHash(user.Hash))
	if err != nil {
		return err
	}
	if err := s.store.SetActivationHash(ctx, username, keys.Private); err != nil {
		return err
	}
	s.sendActivationMail(username, user.Email, keys.Public)
	return nil
}

// RequestPasswordReset issues and mails a reset key, refusing while an
// unexpired key is outstanding.
func (s *AccountService) RequestPasswordReset(ctx context.Context, username, email string) error {
	if len(username) < 5 || len(username) > 15 {
		return ErrInvalidData
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return ErrInvalidData
	}
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if user.Email != email {
		return persistence.ErrNotFound
	}
	if !user.ActivationStatus {
		return ErrNotActivated
	}
	if user.PasswordResetHash != "" && time.Since(user.ResetRequestedAt) <= passwordResetExpiry {
		return ErrResetPending
	}
	keys, err := deriveKeyPair(saltFromHash(user.Hash))
	if err != nil {
		return err
	}
	if err := s.store.SetPasswordResetKey(ctx, username, keys.Private); err != nil {
		return err
	}
	s.sendPasswordResetMail(username, email, keys.Public)
	return nil
}

// ResetPassword redeems a reset key, installs the new password hash and
// revokes the user's active session.
func (s *AccountService) ResetPassword(ctx context.Context, username, key, newPassword string) error {
	if len(newPassword) < 5 {
		return ErrInvalidData
	}
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if user.PasswordResetHash == "" || time.Since(user.ResetRequestedAt) > passwordResetExpiry {
		return ErrInvalidKey
	}
	if !verifyKey(user.PasswordResetHash, key, saltFromHash(user.Hash)) {
		return ErrInvalidKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, username, string(hash)); err != nil {
		return err
	}
	sess, err := s.store.GetSessionByUsername(ctx, username)
	if err == nil && sess.SessionID != "" {
		s.invalidateSession(sess.SessionID)
		if err := s.store.ClearSession(ctx, sess.SessionID); err != nil {
			logger.Log.Warnf("clearing session after password reset for %s: %v", username, err)
		}
	}
	return nil
}

func (s *AccountService) sendActivationMail(username, email, publicKey string) {
	userKey := SessionToken(username)
	link := fmt.Sprintf("%s/activate?q=%s&_token=%s", s.baseURL, userKey, publicKey)
	page := fmt.Sprintf("%s/activate?username=%s", s.baseURL, username)
	go func() {
		if err := s.mailer.Send(email, "Activate your new account!", mail.TemplateWelcome, map[string]string{
			"Username": username,
			"Key":      publicKey,
			"Link":     link,
			"Page":     page,
		}); err != nil {
			logger.Log.Errorf("sending activation mail to %s: %v", email, err)
		}
	}()
}

func (s *AccountService) sendPasswordResetMail(username, email, publicKey string) {
	userKey := SessionToken(username)
	link := fmt.Sprintf("%s/reset-password?q=%s&_token=%s", s.baseURL, userKey, publicKey)
	page := fmt.Sprintf("%s/reset-password?username=%s", s.baseURL, username)
	go func() {
		if err := s.mailer.Send(email, "Important: reset your account password!", mail.TemplatePasswordReset, map[string]string{
			"Username": username,
			"Key":      publicKey,
			"Link":     link,
			"Page":     page,
		}); err != nil {
			logger.Log.Errorf("sending password reset mail to %s: %v", email, err)
		}
	}()
}
