package store

import (
	"errors"
	"time"

	"readaloud/pkg/domain"
)

// Conflict and lookup sentinels shared by store implementations.
var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already registered")
	ErrBookExists    = errors.New("book already exists")
)

// Store defines persistence for users, books, TTS models, and recordings.
// All lookups report absence with a bool instead of an error.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	UpdateUser(domain.User) error
	DeleteUser(username string) (bool, error)
	ListUsers() ([]domain.User, error)
	UserCount() (int, error)

	// books; a book is created together with its default TTS model as one unit
	CreateBookWithModel(domain.Book, domain.TTSModel) error
	ListBooksByOwner(owner string) ([]domain.Book, error)
	GetBook(path string) (domain.Book, bool, error)
	SetPageIndex(path string, page int) (bool, error)
	SetImagePath(path, imagePath string) (bool, error)
	DeleteBook(path string) (bool, error)

	// tts models
	GetTTSModel(bookPath string) (domain.TTSModel, bool, error)
	UpdateTTSModel(bookPath, modelName string, keys domain.TTSKeys) (bool, error)

	// recordings
	SaveRecording(domain.Recording) error
	GetRecording(id string) (domain.Recording, bool, error)
	ListRecordingsByOwner(owner string) ([]domain.Recording, error)
}

// SessionStore issues and validates bearer session tokens.
type SessionStore interface {
	NewSession(username string) (string, error)
	UsernameFromToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// TokenRevoker tracks revoked tokens until expiry.
type TokenRevoker interface {
	Revoke(tokenID string, ttl time.Duration) error
	IsRevoked(tokenID string) (bool, error)
}
