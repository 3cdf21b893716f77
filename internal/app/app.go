package app

import (
	"fmt"
	"strings"
	"time"

	"readaloud/pkg/auth"
	"readaloud/pkg/domain"
	"readaloud/pkg/queue"
	"readaloud/pkg/storage"
	"readaloud/pkg/store"
	"readaloud/pkg/tts"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	SecretKey   string
	SessionTTL  time.Duration
	JWTIssuer   string
	JWTAudience string
	JWTLeeway   time.Duration

	// Relative prefixes inside the media root.
	DocPrefix   string
	ImagePrefix string
	AudioPrefix string

	ChunkSize int

	Store    store.Store
	Sessions store.SessionStore
	Media    *storage.MediaStore

	// Optional pieces. Nil disables the corresponding feature.
	Archive     storage.AudioArchive
	Jobs        *queue.RedisJobQueue
	LocalEngine tts.Engine
	CloudClient *tts.CloudClient
}

// App is the core application service wiring storage, auth and synthesis.
type App struct {
	store    store.Store
	sessions store.SessionStore
	media    *storage.MediaStore
	archive  storage.AudioArchive
	jobs     *queue.RedisJobQueue
	local    tts.Engine
	cloud    *tts.CloudClient

	docPrefix   string
	imagePrefix string
	audioPrefix string
	chunkSize   int
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.DocPrefix == "" {
		cfg.DocPrefix = "docs"
	}
	if cfg.ImagePrefix == "" {
		cfg.ImagePrefix = "images"
	}
	if cfg.AudioPrefix == "" {
		cfg.AudioPrefix = "audio"
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.SecretKey) == "" {
			return nil, fmt.Errorf("secret key required")
		}
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStoreWithOptions(cfg.SecretKey, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	if cfg.Media == nil {
		return nil, fmt.Errorf("media store required")
	}

	return &App{
		store:       dataStore,
		sessions:    sessionStore,
		media:       cfg.Media,
		archive:     cfg.Archive,
		jobs:        cfg.Jobs,
		local:       cfg.LocalEngine,
		cloud:       cfg.CloudClient,
		docPrefix:   cfg.DocPrefix,
		imagePrefix: cfg.ImagePrefix,
		audioPrefix: cfg.AudioPrefix,
		chunkSize:   cfg.ChunkSize,
	}, nil
}

// Register creates a new account. The first registered account becomes
// the admin.
func (a *App) Register(fullName, email, username, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return domain.User{}, ErrRegistrationFields
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	role := domain.RoleUser
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}

	now := time.Now().UTC()
	user := domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate validates credentials and issues a session token.
func (a *App) Authenticate(username, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.Username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Logout revokes the presented token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a bearer token to its account.
func (a *App) UserFromToken(token string) (domain.User, bool, error) {
	username, ok, err := a.sessions.UsernameFromToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("fetch user: %w", err)
	}
	return user, ok, nil
}

// ListUsers returns every account, for the admin view.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}
