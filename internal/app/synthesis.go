package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"readaloud/internal/util"
	"readaloud/pkg/domain"
	"readaloud/pkg/queue"
	"readaloud/pkg/tts"
)

// SynthesizePage converts one page of the book to audio using its
// configured model, persisting the result as a recording.
func (a *App) SynthesizePage(ctx context.Context, owner domain.User, bookPath string, page int) (domain.Recording, []byte, error) {
	text, err := a.readPage(owner, bookPath, page)
	if err != nil {
		return domain.Recording{}, nil, err
	}
	if text == "" {
		return domain.Recording{}, nil, ErrNothingToSpeak
	}
	return a.synthesizeAndRecord(ctx, owner, bookPath, text)
}

// SynthesizeBook converts the whole book to audio synchronously.
func (a *App) SynthesizeBook(ctx context.Context, owner domain.User, bookPath string) (domain.Recording, []byte, error) {
	text, err := a.BookText(owner, bookPath)
	if err != nil {
		return domain.Recording{}, nil, err
	}
	if text == "" {
		return domain.Recording{}, nil, ErrNothingToSpeak
	}
	return a.synthesizeAndRecord(ctx, owner, bookPath, text)
}

// SynthesizeDirect converts caller supplied text through the cloud API
// with the caller's own credentials. Nothing is persisted.
func (a *App) SynthesizeDirect(ctx context.Context, text, voice string, creds tts.Credentials) ([]byte, error) {
	if a.cloud == nil {
		return nil, ErrNoCloudEngine
	}
	keys := domain.DefaultTTSKeys()
	if voice != "" {
		keys.Voice = voice
	}
	return a.cloud.SynthesizeWithCredentials(ctx, text, keys, creds)
}

func (a *App) synthesizeAndRecord(ctx context.Context, owner domain.User, bookPath, text string) (domain.Recording, []byte, error) {
	model, ok, err := a.store.GetTTSModel(bookPath)
	if err != nil {
		return domain.Recording{}, nil, fmt.Errorf("fetch tts model: %w", err)
	}
	if !ok {
		return domain.Recording{}, nil, ErrBookNotFound
	}

	engine, err := a.engineFor(model.Keys)
	if err != nil {
		return domain.Recording{}, nil, err
	}
	audio, err := engine.Synthesize(ctx, text, model.Keys)
	if err != nil {
		return domain.Recording{}, nil, fmt.Errorf("synthesize: %w", err)
	}

	rec := domain.Recording{
		ID:        util.NewID(),
		Owner:     owner.Username,
		BookPath:  bookPath,
		Voice:     model.Keys.Voice,
		Engine:    model.Keys.Engine,
		CreatedAt: time.Now().UTC(),
	}
	rec.AudioPath = path.Join(a.audioPrefix, rec.ID+".wav")
	if err := a.media.SaveBytes(rec.AudioPath, audio); err != nil {
		return domain.Recording{}, nil, fmt.Errorf("save audio: %w", err)
	}
	if err := a.store.SaveRecording(rec); err != nil {
		_ = a.media.Delete(rec.AudioPath)
		return domain.Recording{}, nil, fmt.Errorf("save recording: %w", err)
	}

	if a.archive != nil {
		if err := a.archive.Put(ctx, rec.AudioPath, bytes.NewReader(audio), int64(len(audio)), "audio/wav"); err != nil {
			slog.Warn("archive upload failed", "recording", rec.ID, "error", err)
		}
	}
	return rec, audio, nil
}

func (a *App) engineFor(keys domain.TTSKeys) (tts.Engine, error) {
	switch keys.Engine {
	case domain.EngineLocal:
		if a.local == nil {
			return nil, ErrNoLocalEngine
		}
		return a.local, nil
	case domain.EngineCloud:
		if a.cloud == nil {
			return nil, ErrNoCloudEngine
		}
		return a.cloud, nil
	default:
		// Unset engine falls through to whichever is available.
		if a.cloud != nil {
			return a.cloud, nil
		}
		if a.local != nil {
			return a.local, nil
		}
		return nil, ErrNoCloudEngine
	}
}

// EnqueueBookSynthesis queues a whole-book synthesis job.
func (a *App) EnqueueBookSynthesis(ctx context.Context, owner domain.User, bookPath string) (queue.JobStatus, error) {
	if a.jobs == nil {
		return queue.JobStatus{}, ErrQueueDisabled
	}
	book, err := a.bookForOwner(owner, bookPath)
	if err != nil {
		return queue.JobStatus{}, err
	}
	return a.jobs.Enqueue(ctx, book.Path, owner.Username)
}

// SynthesisJob returns a job's status. Jobs are only visible to their
// owner.
func (a *App) SynthesisJob(ctx context.Context, owner domain.User, jobID string) (queue.JobStatus, error) {
	if a.jobs == nil {
		return queue.JobStatus{}, ErrQueueDisabled
	}
	job, found, err := a.jobs.GetJob(ctx, jobID)
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("fetch job: %w", err)
	}
	if !found || job.Owner != owner.Username {
		return queue.JobStatus{}, ErrJobNotFound
	}
	return job, nil
}

// StartWorker launches queue consumers that synthesize whole books in
// the background.
func (a *App) StartWorker(ctx context.Context, concurrency int) {
	if a.jobs == nil {
		return
	}
	a.jobs.Start(ctx, concurrency, func(ctx context.Context, job queue.JobStatus) error {
		owner, ok, err := a.store.GetUserByUsername(job.Owner)
		if err != nil {
			return fmt.Errorf("fetch owner: %w", err)
		}
		if !ok {
			return fmt.Errorf("owner %s no longer exists", job.Owner)
		}
		rec, _, err := a.SynthesizeBook(ctx, owner, job.BookPath)
		if err != nil {
			return err
		}
		if err := a.jobs.SetResult(ctx, job.ID, rec.ID); err != nil {
			slog.Warn("record job result failed", "job", job.ID, "error", err)
		}
		slog.Info("book synthesized", "job", job.ID, "book", job.BookPath, "recording", rec.ID)
		return nil
	})
}

// Recordings returns the owner's generated audio, newest first.
func (a *App) Recordings(owner domain.User) ([]domain.Recording, error) {
	return a.store.ListRecordingsByOwner(owner.Username)
}

// OpenRecording opens a recording's audio file for streaming.
func (a *App) OpenRecording(owner domain.User, id string) (domain.Recording, *os.File, error) {
	rec, ok, err := a.store.GetRecording(id)
	if err != nil {
		return domain.Recording{}, nil, fmt.Errorf("fetch recording: %w", err)
	}
	if !ok || rec.Owner != owner.Username {
		return domain.Recording{}, nil, ErrRecordingNotFound
	}
	f, err := a.media.Open(rec.AudioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Recording{}, nil, ErrRecordingNotFound
		}
		return domain.Recording{}, nil, err
	}
	return rec, f, nil
}

// RecordingURL returns a presigned archive URL for a recording's audio.
func (a *App) RecordingURL(ctx context.Context, owner domain.User, id string) (string, error) {
	if a.archive == nil {
		return "", ErrNoArchive
	}
	rec, ok, err := a.store.GetRecording(id)
	if err != nil {
		return "", fmt.Errorf("fetch recording: %w", err)
	}
	if !ok || rec.Owner != owner.Username {
		return "", ErrRecordingNotFound
	}
	return a.archive.PresignGet(ctx, rec.AudioPath, 15*time.Minute)
}
