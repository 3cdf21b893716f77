// Package tts turns text into WAV audio, either through an external
// synthesizer command or a cloud speech API.
package tts

import (
	"context"

	"readaloud/pkg/domain"
)

// Engine synthesizes speech for a text using the given parameters.
type Engine interface {
	Synthesize(ctx context.Context, text string, keys domain.TTSKeys) ([]byte, error)
}
