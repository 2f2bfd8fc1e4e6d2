// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/chainreaction/gameserver/models"
)

// PostgreSQL is a database/sql Store implementation for deployments
// that prefer hand-written SQL over the GORM variant.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}
	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_models (
            id SERIAL PRIMARY KEY,
            username TEXT UNIQUE NOT NULL,
            hash TEXT NOT NULL,
            email TEXT NOT NULL,
            activation_status BOOLEAN NOT NULL DEFAULT FALSE,
            activation_hash TEXT DEFAULT '',
            password_reset_hash TEXT DEFAULT '',
            reset_requested_at TIMESTAMP,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS session_models (
            id SERIAL PRIMARY KEY,
            username TEXT UNIQUE NOT NULL,
            session_id TEXT DEFAULT '',
            activation_status BOOLEAN NOT NULL DEFAULT FALSE,
            game_state JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_session_models_session_id ON session_models (session_id)`,
		`CREATE TABLE IF NOT EXISTS room_models (
            id SERIAL PRIMARY KEY,
            channel_name TEXT NOT NULL,
            room_name TEXT UNIQUE NOT NULL,
            user_count SMALLINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_room_models_channel_name ON room_models (channel_name)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgreSQL) scanSession(row *sql.Row) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	var stateJSON string
	err := row.Scan(&rec.Username, &rec.SessionID, &rec.Activated, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	state := models.NewGameState()
	if err := json.Unmarshal([]byte(stateJSON), state); err != nil {
		return nil, fmt.Errorf("stored game state for %s: %w", rec.Username, err)
	}
	rec.State = state
	return &rec, nil
}

func (p *PostgreSQL) GetSessionByID(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT username, session_id, activation_status, game_state
         FROM session_models WHERE session_id = $1`, sessionID)
	return p.scanSession(row)
}

func (p *PostgreSQL) GetSessionByUsername(ctx context.Context, username string) (*models.SessionRecord, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT username, session_id, activation_status, game_state
         FROM session_models WHERE username = $1`, username)
	return p.scanSession(row)
}

func (p *PostgreSQL) PutState(ctx context.Context, sessionID string, state *models.GameState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE session_models SET game_state = $1, updated_at = NOW() WHERE session_id = $2`,
		string(payload), sessionID)
	return oneRow(res, err)
}

func (p *PostgreSQL) BindSession(ctx context.Context, username, sessionID string, state *models.GameState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE session_models SET session_id = $1, game_state = $2, updated_at = NOW() WHERE username = $3`,
		sessionID, string(payload), username)
	return oneRow(res, err)
}

func (p *PostgreSQL) ClearSession(ctx context.Context, sessionID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE session_models SET session_id = '', updated_at = NOW() WHERE session_id = $1`,
		sessionID)
	return oneRow(res, err)
}

func (p *PostgreSQL) CreateUser(ctx context.Context, user *models.UserModel) error {
	freshState, err := json.Marshal(models.NewGameState())
	if err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_models (username, hash, email, activation_status, activation_hash)
         VALUES ($1, $2, $3, $4, $5)`,
		user.Username, user.Hash, user.Email, user.ActivationStatus, user.ActivationHash); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_models (username, activation_status, game_state) VALUES ($1, $2, $3)`,
		user.Username, user.ActivationStatus, string(freshState)); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgreSQL) GetUser(ctx context.Context, username string) (*models.UserModel, error) {
	var user models.UserModel
	var resetAt sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT username, hash, email, activation_status, activation_hash, password_reset_hash, reset_requested_at
         FROM user_models WHERE username = $1`, username).
		Scan(&user.Username, &user.Hash, &user.Email, &user.ActivationStatus,
			&user.ActivationHash, &user.PasswordResetHash, &resetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resetAt.Valid {
		user.ResetRequestedAt = resetAt.Time
	}
	return &user, nil
}

func (p *PostgreSQL) DeleteUser(ctx context.Context, username string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_models WHERE username = $1`, username); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_models WHERE username = $1`, username); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgreSQL) ActivateUser(ctx context.Context, username string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx,
		`UPDATE user_models SET activation_status = TRUE, activation_hash = '' WHERE username = $1`, username)
	if err := oneRow(res, err); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE session_models SET activation_status = TRUE WHERE username = $1`, username); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgreSQL) SetActivationHash(ctx context.Context, username, hash string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE user_models SET activation_hash = $1 WHERE username = $2`, hash, username)
	return oneRow(res, err)
}

func (p *PostgreSQL) SetPasswordResetKey(ctx context.Context, username, hash string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE user_models SET password_reset_hash = $1, reset_requested_at = NOW() WHERE username = $2`,
		hash, username)
	return oneRow(res, err)
}

func (p *PostgreSQL) ClearPasswordResetKey(ctx context.Context, username string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE user_models SET password_reset_hash = '' WHERE username = $1`, username)
	return oneRow(res, err)
}

func (p *PostgreSQL) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE user_models SET hash = $1, password_reset_hash = '' WHERE username = $2`, hash, username)
	return oneRow(res, err)
}

func (p *PostgreSQL) JoinOrCreateRoom(ctx context.Context, channelBase string, players int, newRoomID string) (*models.Room, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var room models.Room
	created := false
	err = tx.QueryRowContext(ctx,
		`SELECT channel_name, room_name, user_count FROM room_models
         WHERE channel_name = $1 AND user_count < $2
         ORDER BY id LIMIT 1 FOR UPDATE`, channelBase, players).
		Scan(&room.ChannelBase, &room.RoomID, &room.Occupants)
	switch {
	case err == nil:
		room.Occupants++
		if _, err := tx.ExecContext(ctx,
			`UPDATE room_models SET user_count = $1, updated_at = NOW() WHERE room_name = $2`,
			room.Occupants, room.RoomID); err != nil {
			return nil, false, err
		}
	case errors.Is(err, sql.ErrNoRows):
		room = models.Room{ChannelBase: channelBase, RoomID: newRoomID, Occupants: 1}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_models (channel_name, room_name, user_count) VALUES ($1, $2, 1)`,
			channelBase, newRoomID); err != nil {
			return nil, false, err
		}
		created = true
	default:
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &room, created, nil
}

func (p *PostgreSQL) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := p.db.QueryRowContext(ctx,
		`SELECT channel_name, room_name, user_count FROM room_models WHERE room_name = $1`, roomID).
		Scan(&room.ChannelBase, &room.RoomID, &room.Occupants)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (p *PostgreSQL) ReleaseRoom(ctx context.Context, roomID string, players int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT user_count FROM room_models WHERE room_name = $1 FOR UPDATE`, roomID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if count == players {
		if _, err := tx.ExecContext(ctx, `DELETE FROM room_models WHERE room_name = $1`, roomID); err != nil {
			return err
		}
	} else {
		next := count - 1
		if next < 0 {
			next = 0
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE room_models SET user_count = $1, updated_at = NOW() WHERE room_name = $2`,
			next, roomID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgreSQL) IncrementRoom(ctx context.Context, roomID string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE room_models SET user_count = user_count + 1 WHERE room_name = $1`, roomID)
	return err
}

func (p *PostgreSQL) DecrementRoom(ctx context.Context, roomID string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE room_models SET user_count = GREATEST(user_count - 1, 0) WHERE room_name = $1`, roomID)
	return err
}

func (p *PostgreSQL) CountOpenRooms(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_models`).Scan(&count)
	return count, err
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

func oneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
