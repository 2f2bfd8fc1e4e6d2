// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserModel holds credentials and the activation / password-reset key
// material for one registered user.
type UserModel struct {
	gorm.Model
	Username          string `gorm:"uniqueIndex;not null"`
	Hash              string `gorm:"not null"`
	Email             string `gorm:"not null"`
	ActivationStatus  bool   `gorm:"not null;default:false"`
	ActivationHash    string
	PasswordResetHash string
	ResetRequestedAt  time.Time
}

// SessionModel is the single-session-per-user binding. SessionID is
// empty while the user is logged out; GameState holds the serialized
// state JSON.
type SessionModel struct {
	gorm.Model
	Username         string `gorm:"uniqueIndex;not null"`
	SessionID        string `gorm:"index"`
	ActivationStatus bool   `gorm:"not null;default:false"`
	GameState        string `gorm:"type:jsonb;not null"`
}

// RoomModel is one matchmaking room row. RoomName is the random token
// appended to ChannelName to form the full presence channel.
type RoomModel struct {
	gorm.Model
	ChannelName string `gorm:"index;not null"`
	RoomName    string `gorm:"uniqueIndex;not null"`
	UserCount   int    `gorm:"not null;default:0"`
}
