package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"readaloud/pkg/domain"
	"readaloud/pkg/pdfdoc"
)

// withTempPDF spools an upload to disk so the PDF parser can seek.
func withTempPDF(r io.Reader, fn func(path string) error) error {
	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("spool upload: %w", err)
	}
	return fn(tmp.Name())
}

// ExtractUploadedText extracts the full text of an uploaded PDF without
// storing it.
func (a *App) ExtractUploadedText(r io.Reader) (string, error) {
	var text string
	err := withTempPDF(r, func(path string) error {
		var err error
		text, err = pdfdoc.AllText(path)
		return err
	})
	return text, err
}

// SynthesizeUploadedPDF extracts an uploaded PDF and speaks it with the
// local engine. Nothing is persisted.
func (a *App) SynthesizeUploadedPDF(ctx context.Context, r io.Reader, voice string) ([]byte, error) {
	if a.local == nil {
		return nil, ErrNoLocalEngine
	}
	text, err := a.ExtractUploadedText(r)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrNothingToSpeak
	}
	keys := domain.TTSKeys{Engine: domain.EngineLocal, Voice: voice}
	return a.local.Synthesize(ctx, text, keys)
}

// ChunkText splits raw text for synthesis without touching storage.
func (a *App) ChunkText(text string, size int) []string {
	if size <= 0 {
		size = a.chunkSize
	}
	return pdfdoc.ChunkText(text, size)
}
