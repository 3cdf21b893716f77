package tts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"readaloud/pkg/domain"
)

func writeFixtureWAV(t *testing.T, samples []int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	if err := os.WriteFile(path, makeWAV(t, 22050, samples), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLocalEngineSynthesizesChunksInOrder(t *testing.T) {
	wavPath := writeFixtureWAV(t, []int16{1, 2})

	// The fake synthesizer consumes stdin and emits a fixed WAV.
	e, err := NewLocalEngine("/bin/sh", []string{"-c", "cat >/dev/null; cat " + wavPath},
		WithChunkSize(4), WithConcurrency(3))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	out, err := e.Synthesize(context.Background(), strings.Repeat("x", 10), domain.TTSKeys{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	_, data, err := parseWAV(out)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	// 10 runes at chunk size 4 gives 3 invocations of 2 samples each.
	if len(data) != 3*4 {
		t.Fatalf("data length = %d, want %d", len(data), 3*4)
	}
}

func TestLocalEngineReportsCommandFailure(t *testing.T) {
	e, err := NewLocalEngine("/bin/sh", []string{"-c", "echo boom >&2; exit 1"})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = e.Synthesize(context.Background(), "hello", domain.TTSKeys{})
	if err == nil {
		t.Fatal("expected synthesis failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error should carry stderr, got %v", err)
	}
}

func TestLocalEngineRejectsEmptyText(t *testing.T) {
	e, err := NewLocalEngine("/bin/true", nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := e.Synthesize(context.Background(), "   ", domain.TTSKeys{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestLocalEngineHonorsContext(t *testing.T) {
	e, err := NewLocalEngine("/bin/sh", []string{"-c", "sleep 10"}, WithTimeout(time.Hour))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := e.Synthesize(ctx, "hello", domain.TTSKeys{}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestNewLocalEngineRequiresCommand(t *testing.T) {
	if _, err := NewLocalEngine("  ", nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}
