package store

import (
	"sort"
	"sync"
	"time"

	"readaloud/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development and mirrors the GormStore semantics.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User      // username -> user
	emails     map[string]string           // email -> username
	books      map[string]domain.Book      // path -> book
	bookOrder  []string                    // insertion order of book paths
	models     map[string]domain.TTSModel  // book path -> model
	recordings map[string]domain.Recording // id -> recording
	nextModel  int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		emails:     make(map[string]string),
		books:      make(map[string]domain.Book),
		models:     make(map[string]domain.TTSModel),
		recordings: make(map[string]domain.Recording),
	}
}

func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; exists {
		return ErrUsernameTaken
	}
	if _, exists := m.emails[u.Email]; exists {
		return ErrEmailTaken
	}
	m.users[u.Username] = u
	m.emails[u.Email] = u.Username
	return nil
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if username, ok := m.emails[email]; ok {
		u, exists := m.users[username]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.Username]
	if !ok {
		return nil
	}
	if old.Email != u.Email {
		delete(m.emails, old.Email)
		m.emails[u.Email] = u.Username
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[u.Username] = u
	return nil
}

func (m *MemoryStore) DeleteUser(username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return false, nil
	}
	delete(m.users, username)
	delete(m.emails, u.Email)
	return true, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *MemoryStore) CreateBookWithModel(b domain.Book, model domain.TTSModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.Path]; exists {
		return ErrBookExists
	}
	m.books[b.Path] = b
	m.bookOrder = append(m.bookOrder, b.Path)
	m.nextModel++
	model.ID = m.nextModel
	model.BookPath = b.Path
	m.models[b.Path] = model
	return nil
}

func (m *MemoryStore) ListBooksByOwner(owner string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0)
	for _, path := range m.bookOrder {
		if b, ok := m.books[path]; ok && b.Owner == owner {
			res = append(res, b)
		}
	}
	return res, nil
}

func (m *MemoryStore) GetBook(path string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[path]
	return b, ok, nil
}

func (m *MemoryStore) SetPageIndex(path string, page int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[path]
	if !ok {
		return false, nil
	}
	b.PageIndex = page
	b.UpdatedAt = time.Now().UTC()
	m.books[path] = b
	return true, nil
}

func (m *MemoryStore) SetImagePath(path, imagePath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[path]
	if !ok {
		return false, nil
	}
	b.Metadata.ImagePath = imagePath
	b.UpdatedAt = time.Now().UTC()
	m.books[path] = b
	return true, nil
}

func (m *MemoryStore) DeleteBook(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[path]; !ok {
		return false, nil
	}
	delete(m.books, path)
	delete(m.models, path)
	for id, rec := range m.recordings {
		if rec.BookPath == path {
			delete(m.recordings, id)
		}
	}
	filtered := m.bookOrder[:0]
	for _, p := range m.bookOrder {
		if p != path {
			filtered = append(filtered, p)
		}
	}
	m.bookOrder = filtered
	return true, nil
}

func (m *MemoryStore) GetTTSModel(bookPath string) (domain.TTSModel, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	model, ok := m.models[bookPath]
	return model, ok, nil
}

func (m *MemoryStore) UpdateTTSModel(bookPath, modelName string, keys domain.TTSKeys) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.models[bookPath]
	if !ok {
		return false, nil
	}
	model.ModelName = modelName
	model.Keys = keys
	model.UpdatedAt = time.Now().UTC()
	m.models[bookPath] = model
	return true, nil
}

func (m *MemoryStore) SaveRecording(r domain.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings[r.ID] = r
	return nil
}

func (m *MemoryStore) GetRecording(id string) (domain.Recording, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recordings[id]
	return r, ok, nil
}

func (m *MemoryStore) ListRecordingsByOwner(owner string) ([]domain.Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Recording, 0)
	for _, r := range m.recordings {
		if r.Owner == owner {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
