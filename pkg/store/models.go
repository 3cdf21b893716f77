package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	Username     string    `gorm:"primaryKey;size:255"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	FullName     string    `gorm:"size:255;not null"`
	Role         string    `gorm:"size:50;not null;default:user"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type BookModel struct {
	Path      string         `gorm:"primaryKey;size:512"`
	Owner     string         `gorm:"size:255;not null;index"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	PageIdx   int            `gorm:"not null;default:0"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time
}

func (BookModel) TableName() string { return "books" }

type TTSModelRecord struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	BookPath  string         `gorm:"size:512;not null;uniqueIndex"`
	ModelName string         `gorm:"size:255;not null"`
	Keys      datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (TTSModelRecord) TableName() string { return "tts_models" }

type RecordingModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Owner     string    `gorm:"size:255;not null;index"`
	BookPath  string    `gorm:"size:512;not null;index"`
	AudioPath string    `gorm:"size:512;not null"`
	Voice     string    `gorm:"size:64"`
	Engine    string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (RecordingModel) TableName() string { return "recordings" }
