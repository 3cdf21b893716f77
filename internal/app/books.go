package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"readaloud/pkg/domain"
	"readaloud/pkg/pdfdoc"
	"readaloud/pkg/storage"
	"readaloud/pkg/store"
)

// AddBook stores an uploaded PDF, extracts its metadata, creates the
// book with its default TTS model and renders a cover thumbnail.
func (a *App) AddBook(owner domain.User, filename string, r io.Reader) (domain.Book, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return domain.Book{}, ErrFilenameRequired
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return domain.Book{}, ErrNotPDF
	}

	docKey := pdfdoc.MakePath(a.docPrefix, owner.Username, filename)
	key := filepath.Base(docKey)
	if _, err := a.media.Save(docKey, r); err != nil {
		if errors.Is(err, storage.ErrFileExists) {
			return domain.Book{}, ErrBookExists
		}
		return domain.Book{}, fmt.Errorf("save document: %w", err)
	}

	docPath, err := a.media.Path(docKey)
	if err != nil {
		_ = a.media.Delete(docKey)
		return domain.Book{}, err
	}
	meta, err := pdfdoc.Metadata(docPath)
	if err != nil {
		_ = a.media.Delete(docKey)
		return domain.Book{}, fmt.Errorf("read pdf: %w", err)
	}

	now := time.Now().UTC()
	book := domain.Book{
		Path:      key,
		Owner:     owner.Username,
		Metadata:  meta,
		PageIndex: 0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	model := domain.TTSModel{
		BookPath:  key,
		ModelName: domain.DefaultModelName,
		Keys:      domain.DefaultTTSKeys(),
		UpdatedAt: now,
	}
	if err := a.store.CreateBookWithModel(book, model); err != nil {
		_ = a.media.Delete(docKey)
		if errors.Is(err, store.ErrBookExists) {
			return domain.Book{}, ErrBookExists
		}
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}

	// The book is usable without a cover, thumbnail failures only log.
	if imgKey, err := a.renderThumbnail(docPath, key); err != nil {
		slog.Warn("thumbnail render failed", "path", key, "error", err)
	} else {
		book.Metadata.ImagePath = imgKey
	}
	return book, nil
}

func (a *App) renderThumbnail(docPath, key string) (string, error) {
	jpeg, err := pdfdoc.FirstPageJPEG(docPath)
	if err != nil {
		return "", err
	}
	imgKey := path.Join(a.imagePrefix, key+".jpg")
	if err := a.media.SaveBytes(imgKey, jpeg); err != nil {
		return "", err
	}
	if _, err := a.store.SetImagePath(key, imgKey); err != nil {
		return "", err
	}
	return imgKey, nil
}

// ListBooks returns the owner's books.
func (a *App) ListBooks(owner domain.User) ([]domain.Book, error) {
	return a.store.ListBooksByOwner(owner.Username)
}

// bookForOwner loads a book and enforces ownership. A book owned by
// someone else looks exactly like a missing one.
func (a *App) bookForOwner(owner domain.User, bookPath string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookPath)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok || book.Owner != owner.Username {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// OpenBook returns the text of the first page.
func (a *App) OpenBook(owner domain.User, bookPath string) (string, error) {
	return a.readPage(owner, bookPath, 0)
}

// FlipPage returns the text of the requested page and persists it as
// the reading position.
func (a *App) FlipPage(owner domain.User, bookPath string, page int) (string, error) {
	text, err := a.readPage(owner, bookPath, page)
	if err != nil {
		return "", err
	}
	if _, err := a.store.SetPageIndex(bookPath, page); err != nil {
		return "", fmt.Errorf("save reading position: %w", err)
	}
	return text, nil
}

func (a *App) readPage(owner domain.User, bookPath string, page int) (string, error) {
	book, err := a.bookForOwner(owner, bookPath)
	if err != nil {
		return "", err
	}
	docPath, err := a.media.Path(path.Join(a.docPrefix, book.Path))
	if err != nil {
		return "", err
	}
	return pdfdoc.PageText(docPath, page)
}

// PageCount returns the number of pages in the book.
func (a *App) PageCount(owner domain.User, bookPath string) (int, error) {
	book, err := a.bookForOwner(owner, bookPath)
	if err != nil {
		return 0, err
	}
	docPath, err := a.media.Path(path.Join(a.docPrefix, book.Path))
	if err != nil {
		return 0, err
	}
	return pdfdoc.PageCount(docPath)
}

// Thumbnail opens the book's cover image.
func (a *App) Thumbnail(owner domain.User, bookPath string) (*os.File, error) {
	book, err := a.bookForOwner(owner, bookPath)
	if err != nil {
		return nil, err
	}
	if book.Metadata.ImagePath == "" {
		return nil, ErrNoThumbnail
	}
	f, err := a.media.Open(book.Metadata.ImagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoThumbnail
		}
		return nil, err
	}
	return f, nil
}

// BookText extracts the whole text of the book.
func (a *App) BookText(owner domain.User, bookPath string) (string, error) {
	book, err := a.bookForOwner(owner, bookPath)
	if err != nil {
		return "", err
	}
	docPath, err := a.media.Path(path.Join(a.docPrefix, book.Path))
	if err != nil {
		return "", err
	}
	return pdfdoc.AllText(docPath)
}

// ChunkBookText extracts the book text pre-split for synthesis.
func (a *App) ChunkBookText(owner domain.User, bookPath string, size int) ([]string, error) {
	text, err := a.BookText(owner, bookPath)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = a.chunkSize
	}
	return pdfdoc.ChunkText(text, size), nil
}

// DeleteBook removes the book row, its TTS model and recordings in one
// transaction, then cleans up files. File cleanup failures do not undo
// the delete, they are returned as warnings.
func (a *App) DeleteBook(ctx context.Context, owner domain.User, bookPath string) ([]string, error) {
	book, err := a.bookForOwner(owner, bookPath)
	if err != nil {
		return nil, err
	}
	recordings, err := a.store.ListRecordingsByOwner(owner.Username)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	found, err := a.store.DeleteBook(book.Path)
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}
	if !found {
		return nil, ErrBookNotFound
	}

	var cleanup *multierror.Error
	if err := a.media.Delete(path.Join(a.docPrefix, book.Path)); err != nil {
		cleanup = multierror.Append(cleanup, fmt.Errorf("document: %w", err))
	}
	if book.Metadata.ImagePath != "" {
		if err := a.media.Delete(book.Metadata.ImagePath); err != nil {
			cleanup = multierror.Append(cleanup, fmt.Errorf("thumbnail: %w", err))
		}
	}
	for _, rec := range recordings {
		if rec.BookPath != book.Path {
			continue
		}
		if err := a.media.Delete(rec.AudioPath); err != nil {
			cleanup = multierror.Append(cleanup, fmt.Errorf("recording %s: %w", rec.ID, err))
		}
		if a.archive != nil {
			if err := a.archive.Delete(ctx, rec.AudioPath); err != nil {
				cleanup = multierror.Append(cleanup, fmt.Errorf("archived recording %s: %w", rec.ID, err))
			}
		}
	}

	var warnings []string
	if cleanup != nil {
		for _, e := range cleanup.Errors {
			warnings = append(warnings, e.Error())
		}
		slog.Warn("book deleted with file cleanup failures", "path", book.Path, "failures", len(cleanup.Errors))
	}
	return warnings, nil
}

// TTSModelFor returns the book's synthesis configuration.
func (a *App) TTSModelFor(owner domain.User, bookPath string) (domain.TTSModel, error) {
	if _, err := a.bookForOwner(owner, bookPath); err != nil {
		return domain.TTSModel{}, err
	}
	model, ok, err := a.store.GetTTSModel(bookPath)
	if err != nil {
		return domain.TTSModel{}, fmt.Errorf("fetch tts model: %w", err)
	}
	if !ok {
		return domain.TTSModel{}, ErrBookNotFound
	}
	return model, nil
}

// UpdateTTSModel replaces the book's synthesis configuration.
func (a *App) UpdateTTSModel(owner domain.User, bookPath, modelName string, keys domain.TTSKeys) (domain.TTSModel, error) {
	if _, err := a.bookForOwner(owner, bookPath); err != nil {
		return domain.TTSModel{}, err
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = domain.DefaultModelName
	}
	found, err := a.store.UpdateTTSModel(bookPath, modelName, keys)
	if err != nil {
		return domain.TTSModel{}, fmt.Errorf("update tts model: %w", err)
	}
	if !found {
		return domain.TTSModel{}, ErrBookNotFound
	}
	return a.TTSModelFor(owner, bookPath)
}
