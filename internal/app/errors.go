package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect username or password")

	ErrRegistrationFields = errors.New("username, email and password required")

	ErrFilenameRequired = errors.New("filename required")
	ErrNotPDF           = errors.New("only PDF files are supported")
	ErrBookExists       = errors.New("book already exists")
	ErrBookNotFound     = errors.New("book not found")
	ErrNoThumbnail      = errors.New("no thumbnail for book")

	ErrRecordingNotFound = errors.New("recording not found")
	ErrJobNotFound       = errors.New("job not found")

	ErrNoLocalEngine  = errors.New("local synthesizer not configured")
	ErrNoCloudEngine  = errors.New("cloud speech api not configured")
	ErrQueueDisabled  = errors.New("asynchronous synthesis not configured")
	ErrNoArchive      = errors.New("audio archive not configured")
	ErrNothingToSpeak = errors.New("book has no extractable text")
)
