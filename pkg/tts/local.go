package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"readaloud/pkg/domain"
	"readaloud/pkg/pdfdoc"
)

const (
	defaultLocalChunkSize   = 3000
	defaultLocalConcurrency = 2
	defaultLocalTimeout     = 5 * time.Minute
)

// LocalEngine drives an external synthesizer command (piper, espeak and
// the like). The command reads text on stdin and writes a WAV file to
// stdout. Long texts are split into chunks, synthesized with bounded
// concurrency and concatenated in order.
type LocalEngine struct {
	command     string
	args        []string
	voiceFlag   string
	chunkSize   int
	concurrency int
	timeout     time.Duration
}

// LocalOption tweaks a LocalEngine.
type LocalOption func(*LocalEngine)

// WithVoiceFlag sets the command flag used to pass the voice name.
func WithVoiceFlag(flag string) LocalOption {
	return func(e *LocalEngine) { e.voiceFlag = flag }
}

// WithChunkSize overrides the per-invocation text size in runes.
func WithChunkSize(size int) LocalOption {
	return func(e *LocalEngine) {
		if size > 0 {
			e.chunkSize = size
		}
	}
}

// WithConcurrency bounds how many synthesizer processes run at once.
func WithConcurrency(n int) LocalOption {
	return func(e *LocalEngine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTimeout bounds a single synthesizer invocation.
func WithTimeout(d time.Duration) LocalOption {
	return func(e *LocalEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewLocalEngine validates the command and applies options.
func NewLocalEngine(command string, args []string, opts ...LocalOption) (*LocalEngine, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.New("synthesizer command required")
	}
	e := &LocalEngine{
		command:     command,
		args:        args,
		chunkSize:   defaultLocalChunkSize,
		concurrency: defaultLocalConcurrency,
		timeout:     defaultLocalTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Synthesize runs the command over the text chunks and joins the audio.
func (e *LocalEngine) Synthesize(ctx context.Context, text string, keys domain.TTSKeys) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty text")
	}

	chunks := pdfdoc.ChunkText(text, e.chunkSize)
	results := make([][]byte, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			audio, err := e.run(gctx, chunk, keys)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			results[i] = audio
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ConcatWAV(results)
}

func (e *LocalEngine) run(ctx context.Context, text string, keys domain.TTSKeys) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := e.args
	if e.voiceFlag != "" && keys.Voice != "" {
		args = append(append([]string{}, args...), e.voiceFlag, keys.Voice)
	}
	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Stdin = strings.NewReader(text)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("synthesizer: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("synthesizer: %w", err)
	}
	if out.Len() == 0 {
		return nil, errors.New("synthesizer produced no audio")
	}
	return out.Bytes(), nil
}
