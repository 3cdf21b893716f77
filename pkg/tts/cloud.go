package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"readaloud/pkg/domain"
)

// maxCloudAudioBytes caps a single synthesis response.
const maxCloudAudioBytes = 64 << 20

// Credentials authenticate a cloud synthesis call. They can come from
// server config or be supplied per request by the caller.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Valid reports whether the credential set is usable.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.AccessKeyID) != "" && strings.TrimSpace(c.SecretAccessKey) != ""
}

// APIError represents a cloud speech API error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("speech api: %s (status %d)", e.Message, e.Status)
}

// CloudClient calls a speech synthesis HTTP API.
type CloudClient struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// NewCloudClient constructs a speech API client with default credentials.
func NewCloudClient(baseURL string, creds Credentials) (*CloudClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("speech api url required")
	}
	return &CloudClient{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Synthesize converts text to audio using the client's own credentials.
func (c *CloudClient) Synthesize(ctx context.Context, text string, keys domain.TTSKeys) ([]byte, error) {
	return c.SynthesizeWithCredentials(ctx, text, keys, c.creds)
}

// SynthesizeWithCredentials converts text to audio with caller supplied
// credentials, for users bringing their own cloud account.
func (c *CloudClient) SynthesizeWithCredentials(ctx context.Context, text string, keys domain.TTSKeys, creds Credentials) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text")
	}
	if !creds.Valid() {
		return nil, errors.New("cloud credentials required")
	}

	payload := synthesizeRequest{
		Text:         text,
		Voice:        keys.Voice,
		Language:     keys.Language,
		SampleRateHz: keys.SampleRateHz,
		SpeakingRate: keys.SpeakingRate,
		OutputFormat: "wav",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Key-Id", creds.AccessKeyID)
	req.Header.Set("X-Secret-Access-Key", creds.SecretAccessKey)
	if creds.Region != "" {
		req.Header.Set("X-Region", creds.Region)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxCloudAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("speech api returned no audio")
	}
	return audio, nil
}

type synthesizeRequest struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voice,omitempty"`
	Language     string  `json:"language,omitempty"`
	SampleRateHz int     `json:"sampleRateHz,omitempty"`
	SpeakingRate float64 `json:"speakingRate,omitempty"`
	OutputFormat string  `json:"outputFormat"`
}
