package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is a registered reader account. Username is the primary identifier.
type User struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BookMetadata is the structured form of a PDF's embedded document
// information dictionary plus the path of the derived first-page image.
type BookMetadata struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	CreationDate string `json:"creationDate,omitempty"`
	ModDate      string `json:"modDate,omitempty"`
	ImagePath    string `json:"imgPath,omitempty"`
}

// Book is a stored PDF document. Path is the on-disk document path under the
// media root and doubles as the primary key; Owner is the exact username of
// the uploader.
type Book struct {
	Path      string       `json:"path"`
	Owner     string       `json:"owner"`
	Metadata  BookMetadata `json:"metadata"`
	PageIndex int          `json:"page"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Synthesis engines a recording can come from.
const (
	EngineLocal = "local"
	EngineCloud = "cloud"
)

// DefaultModelName is the TTS model configuration every book starts with.
const DefaultModelName = "standard"

// DefaultTTSKeys returns the synthesis parameters assigned to a freshly
// added book.
func DefaultTTSKeys() TTSKeys {
	return TTSKeys{
		Voice:        "Joanna",
		Engine:       EngineCloud,
		Language:     "en-US",
		SampleRateHz: 22050,
		SpeakingRate: 1.0,
	}
}

// TTSKeys are the per-book synthesis parameters. All fields are optional;
// zero values fall back to engine defaults.
type TTSKeys struct {
	Voice        string  `json:"voice,omitempty" validate:"omitempty,max=64"`
	Engine       string  `json:"engine,omitempty" validate:"omitempty,oneof=local cloud"`
	Language     string  `json:"language,omitempty" validate:"omitempty,max=16"`
	SampleRateHz int     `json:"sampleRateHz,omitempty" validate:"omitempty,min=8000,max=48000"`
	SpeakingRate float64 `json:"speakingRate,omitempty" validate:"omitempty,gt=0,lte=4"`
}

// TTSModel is the named speech-synthesis configuration attached one-to-one
// to a book.
type TTSModel struct {
	ID        int64     `json:"id"`
	BookPath  string    `json:"path"`
	ModelName string    `json:"modelName"`
	Keys      TTSKeys   `json:"modelKeys"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Recording is a generated audio file derived from a book.
type Recording struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	BookPath  string    `json:"bookPath"`
	AudioPath string    `json:"audioPath"`
	Voice     string    `json:"voice,omitempty"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"createdAt"`
}
