package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"readaloud/pkg/domain"
)

const migrateLockID int64 = 48120331

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the Postgres database and runs auto-migrations under an
// advisory lock so concurrent instances do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		return autoMigrate(tx)
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an already opened gorm.DB (sqlite in tests) and
// runs auto-migrations without the Postgres advisory lock.
func NewGormStoreFromDB(db *gorm.DB) (*GormStore, error) {
	if err := autoMigrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserModel{}, &BookModel{}, &TTSModelRecord{}, &RecordingModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser registers a new user, failing on duplicate username or email.
func (s *GormStore) CreateUser(u domain.User) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&UserModel{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		if err := tx.Model(&UserModel{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		model := userToModel(u)
		return tx.Create(&model).Error
	})
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUser persists mutable profile fields of an existing user.
func (s *GormStore) UpdateUser(u domain.User) error {
	return s.db.Model(&UserModel{}).
		Where("username = ?", u.Username).
		Updates(map[string]any{
			"email":         u.Email,
			"full_name":     u.FullName,
			"password_hash": u.PasswordHash,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// DeleteUser removes a user. Returns false when the user does not exist.
func (s *GormStore) DeleteUser(username string) (bool, error) {
	res := s.db.Delete(&UserModel{}, "username = ?", username)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListUsers returns all users ordered by creation time.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns the number of registered users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateBookWithModel inserts the book and its default TTS model in a single
// transaction, so a failed model insert never leaves an orphan book row.
func (s *GormStore) CreateBookWithModel(b domain.Book, m domain.TTSModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&BookModel{}).Where("path = ?", b.Path).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrBookExists
		}
		bookModel, err := bookToModel(b)
		if err != nil {
			return err
		}
		if err := tx.Create(&bookModel).Error; err != nil {
			return err
		}
		modelRecord, err := ttsModelToRecord(m)
		if err != nil {
			return err
		}
		modelRecord.BookPath = b.Path
		return tx.Create(&modelRecord).Error
	})
}

// ListBooksByOwner returns the books whose owner matches exactly.
func (s *GormStore) ListBooksByOwner(owner string) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Where("owner = ?", owner).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// GetBook retrieves a book by path.
func (s *GormStore) GetBook(path string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "path = ?", path).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// SetPageIndex stores the reader's current page for a book.
func (s *GormStore) SetPageIndex(path string, page int) (bool, error) {
	res := s.db.Model(&BookModel{}).
		Where("path = ?", path).
		Updates(map[string]any{
			"page_idx":   page,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetImagePath updates the derived image path inside the metadata blob.
// The read-modify-write runs in one transaction so a concurrent metadata
// update cannot drop the image path.
func (s *GormStore) SetImagePath(path, imagePath string) (bool, error) {
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model BookModel
		if err := tx.First(&model, "path = ?", path).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		book := bookFromModel(model)
		book.Metadata.ImagePath = imagePath
		raw, err := json.Marshal(book.Metadata)
		if err != nil {
			return err
		}
		if err := tx.Model(&BookModel{}).
			Where("path = ?", path).
			Updates(map[string]any{
				"metadata":   raw,
				"updated_at": time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// DeleteBook removes the book row together with its TTS model and recording
// rows. Returns false when no book with that path exists.
func (s *GormStore) DeleteBook(path string) (bool, error) {
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&BookModel{}, "path = ?", path)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found = true
		if err := tx.Delete(&TTSModelRecord{}, "book_path = ?", path).Error; err != nil {
			return err
		}
		return tx.Delete(&RecordingModel{}, "book_path = ?", path).Error
	})
	return found, err
}

// GetTTSModel returns the TTS model configuration for a book.
func (s *GormStore) GetTTSModel(bookPath string) (domain.TTSModel, bool, error) {
	var record TTSModelRecord
	if err := s.db.First(&record, "book_path = ?", bookPath).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.TTSModel{}, false, nil
		}
		return domain.TTSModel{}, false, err
	}
	return ttsModelFromRecord(record), true, nil
}

// UpdateTTSModel replaces a book's model name and keys.
// Returns false when the book has no TTS model row.
func (s *GormStore) UpdateTTSModel(bookPath, modelName string, keys domain.TTSKeys) (bool, error) {
	raw, err := json.Marshal(keys)
	if err != nil {
		return false, err
	}
	res := s.db.Model(&TTSModelRecord{}).
		Where("book_path = ?", bookPath).
		Updates(map[string]any{
			"model_name": modelName,
			"keys":       raw,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveRecording stores a generated-audio record.
func (s *GormStore) SaveRecording(r domain.Recording) error {
	model := recordingToModel(r)
	return s.db.Create(&model).Error
}

// GetRecording returns one recording by ID.
func (s *GormStore) GetRecording(id string) (domain.Recording, bool, error) {
	var model RecordingModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Recording{}, false, nil
		}
		return domain.Recording{}, false, err
	}
	return recordingFromModel(model), true, nil
}

// ListRecordingsByOwner returns a user's recordings, newest first.
func (s *GormStore) ListRecordingsByOwner(owner string) ([]domain.Recording, error) {
	var models []RecordingModel
	if err := s.db.Where("owner = ?", owner).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Recording, 0, len(models))
	for _, m := range models {
		res = append(res, recordingFromModel(m))
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FullName:     m.FullName,
		Role:         role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) (BookModel, error) {
	raw, err := json.Marshal(b.Metadata)
	if err != nil {
		return BookModel{}, err
	}
	return BookModel{
		Path:      b.Path,
		Owner:     b.Owner,
		Metadata:  raw,
		PageIdx:   b.PageIndex,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}, nil
}

func bookFromModel(m BookModel) domain.Book {
	var meta domain.BookMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return domain.Book{
		Path:      m.Path,
		Owner:     m.Owner,
		Metadata:  meta,
		PageIndex: m.PageIdx,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ttsModelToRecord(m domain.TTSModel) (TTSModelRecord, error) {
	raw, err := json.Marshal(m.Keys)
	if err != nil {
		return TTSModelRecord{}, err
	}
	return TTSModelRecord{
		ID:        m.ID,
		BookPath:  m.BookPath,
		ModelName: m.ModelName,
		Keys:      raw,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func ttsModelFromRecord(r TTSModelRecord) domain.TTSModel {
	var keys domain.TTSKeys
	if len(r.Keys) > 0 {
		_ = json.Unmarshal(r.Keys, &keys)
	}
	return domain.TTSModel{
		ID:        r.ID,
		BookPath:  r.BookPath,
		ModelName: r.ModelName,
		Keys:      keys,
		UpdatedAt: r.UpdatedAt,
	}
}

func recordingToModel(r domain.Recording) RecordingModel {
	return RecordingModel{
		ID:        r.ID,
		Owner:     r.Owner,
		BookPath:  r.BookPath,
		AudioPath: r.AudioPath,
		Voice:     r.Voice,
		Engine:    r.Engine,
		CreatedAt: r.CreatedAt,
	}
}

func recordingFromModel(m RecordingModel) domain.Recording {
	return domain.Recording{
		ID:        m.ID,
		Owner:     m.Owner,
		BookPath:  m.BookPath,
		AudioPath: m.AudioPath,
		Voice:     m.Voice,
		Engine:    m.Engine,
		CreatedAt: m.CreatedAt,
	}
}
