// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chainreaction/gameserver/models"
)

// GormPostgreSQL is the GORM-backed Store implementation.
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL opens a pooled PostgreSQL connection and migrates
// the user, session and room tables.
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.UserModel{},
		&models.SessionModel{},
		&models.RoomModel{},
	); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func decodeSession(row *models.SessionModel) (*models.SessionRecord, error) {
	state := models.NewGameState()
	if row.GameState != "" {
		if err := json.Unmarshal([]byte(row.GameState), state); err != nil {
			return nil, fmt.Errorf("stored game state for %s: %w", row.Username, err)
		}
	}
	return &models.SessionRecord{
		Username:  row.Username,
		SessionID: row.SessionID,
		Activated: row.ActivationStatus,
		State:     state,
	}, nil
}

func (p *GormPostgreSQL) GetSessionByID(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	var row models.SessionModel
	err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(&row)
}

func (p *GormPostgreSQL) GetSessionByUsername(ctx context.Context, username string) (*models.SessionRecord, error) {
	var row models.SessionModel
	err := p.db.WithContext(ctx).Where("username = ?", username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(&row)
}

func (p *GormPostgreSQL) PutState(ctx context.Context, sessionID string, state *models.GameState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	res := p.db.WithContext(ctx).Model(&models.SessionModel{}).
		Where("session_id = ?", sessionID).
		Update("game_state", string(payload))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPostgreSQL) BindSession(ctx context.Context, username, sessionID string, state *models.GameState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	res := p.db.WithContext(ctx).Model(&models.SessionModel{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"session_id": sessionID,
			"game_state": string(payload),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPostgreSQL) ClearSession(ctx context.Context, sessionID string) error {
	res := p.db.WithContext(ctx).Model(&models.SessionModel{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"session_id": "",
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPostgreSQL) CreateUser(ctx context.Context, user *models.UserModel) error {
	freshState, err := json.Marshal(models.NewGameState())
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		session := models.SessionModel{
			Username:         user.Username,
			ActivationStatus: user.ActivationStatus,
			GameState:        string(freshState),
		}
		return tx.Create(&session).Error
	})
}

func (p *GormPostgreSQL) GetUser(ctx context.Context, username string) (*models.UserModel, error) {
	var row models.UserModel
	err := p.db.WithContext(ctx).Where("username = ?", username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *GormPostgreSQL) DeleteUser(ctx context.Context, username string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).Delete(&models.UserModel{}).Error; err != nil {
			return err
		}
		return tx.Where("username = ?", username).Delete(&models.SessionModel{}).Error
	})
}

func (p *GormPostgreSQL) ActivateUser(ctx context.Context, username string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserModel{}).Where("username = ?", username).
			Updates(map[string]interface{}{"activation_status": true, "activation_hash": ""})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.SessionModel{}).Where("username = ?", username).
			Update("activation_status", true).Error
	})
}

func (p *GormPostgreSQL) SetActivationHash(ctx context.Context, username, hash string) error {
	return p.updateUserColumns(ctx, username, map[string]interface{}{"activation_hash": hash})
}

func (p *GormPostgreSQL) SetPasswordResetKey(ctx context.Context, username, hash string) error {
	return p.updateUserColumns(ctx, username, map[string]interface{}{
		"password_reset_hash": hash,
		"reset_requested_at":  time.Now(),
	})
}

func (p *GormPostgreSQL) ClearPasswordResetKey(ctx context.Context, username string) error {
	return p.updateUserColumns(ctx, username, map[string]interface{}{"password_reset_hash": ""})
}

func (p *GormPostgreSQL) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	return p.updateUserColumns(ctx, username, map[string]interface{}{
		"hash":                hash,
		"password_reset_hash": "",
	})
}

func (p *GormPostgreSQL) updateUserColumns(ctx context.Context, username string, cols map[string]interface{}) error {
	res := p.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("username = ?", username).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPostgreSQL) JoinOrCreateRoom(ctx context.Context, channelBase string, players int, newRoomID string) (*models.Room, bool, error) {
	var out models.Room
	created := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.RoomModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("channel_name = ? AND user_count < ?", channelBase, players).
			Order("id").
			First(&row).Error
		switch {
		case err == nil:
			row.UserCount++
			if err := tx.Model(&row).Update("user_count", row.UserCount).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.RoomModel{ChannelName: channelBase, RoomName: newRoomID, UserCount: 1}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			created = true
		default:
			return err
		}
		out = models.Room{ChannelBase: row.ChannelName, RoomID: row.RoomName, Occupants: row.UserCount}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

func (p *GormPostgreSQL) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var row models.RoomModel
	err := p.db.WithContext(ctx).Where("room_name = ?", roomID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.Room{ChannelBase: row.ChannelName, RoomID: row.RoomName, Occupants: row.UserCount}, nil
}

func (p *GormPostgreSQL) ReleaseRoom(ctx context.Context, roomID string, players int) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.RoomModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_name = ?", roomID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Already released by another path.
			return nil
		}
		if err != nil {
			return err
		}
		if row.UserCount == players {
			return tx.Delete(&row).Error
		}
		next := row.UserCount - 1
		if next < 0 {
			next = 0
		}
		return tx.Model(&row).Update("user_count", next).Error
	})
}

func (p *GormPostgreSQL) IncrementRoom(ctx context.Context, roomID string) error {
	return p.db.WithContext(ctx).Model(&models.RoomModel{}).
		Where("room_name = ?", roomID).
		Update("user_count", gorm.Expr("user_count + 1")).Error
}

func (p *GormPostgreSQL) DecrementRoom(ctx context.Context, roomID string) error {
	return p.db.WithContext(ctx).Model(&models.RoomModel{}).
		Where("room_name = ?", roomID).
		Update("user_count", gorm.Expr("GREATEST(user_count - 1, 0)")).Error
}

func (p *GormPostgreSQL) CountOpenRooms(ctx context.Context) (int, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.RoomModel{}).Count(&count).Error
	return int(count), err
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
