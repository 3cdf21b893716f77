package server

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"readaloud/pkg/domain"
	"readaloud/pkg/tts"
)

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	file, _, ok := s.uploadedPDF(w, r)
	if !ok {
		return
	}
	defer file.Close()

	text, err := s.app.ExtractUploadedText(file)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type chunkRequest struct {
	Text      string `json:"text" validate:"required"`
	ChunkSize int    `json:"chunk_size" validate:"omitempty,min=1,max=100000"`
}

func (s *Server) handleChunkText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chunkRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	chunks := s.app.ChunkText(req.Text, req.ChunkSize)
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks": chunks,
		"count":  len(chunks),
	})
}

type ttsModelUpdateRequest struct {
	ModelName string         `json:"modelName" validate:"omitempty,max=64"`
	ModelKeys domain.TTSKeys `json:"modelKeys"`
}

func (s *Server) handleTTSModel(w http.ResponseWriter, r *http.Request, user domain.User) {
	bookPath := r.URL.Query().Get("book_path")
	if bookPath == "" {
		writeError(w, http.StatusBadRequest, "book_path query parameter is required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		model, err := s.app.TTSModelFor(user, bookPath)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, model)
	case http.MethodPut:
		var req ttsModelUpdateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		model, err := s.app.UpdateTTSModel(user, bookPath, req.ModelName, req.ModelKeys)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, model)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.synthesisLimiter, "too many synthesis requests") {
		s.audit(r, "tts.synthesize", "rate_limited", "username", user.Username)
		return
	}
	file, _, ok := s.uploadedPDF(w, r)
	if !ok {
		return
	}
	defer file.Close()

	audio, err := s.app.SynthesizeUploadedPDF(r.Context(), file, r.FormValue("voice"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

type synthesizeAPIRequest struct {
	Text    string `json:"text" validate:"required,max=100000"`
	VoiceID string `json:"voice_id" validate:"omitempty,max=64"`
}

func (s *Server) handleSynthesizeAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.synthesisLimiter, "too many synthesis requests") {
		s.audit(r, "tts.synthesize_api", "rate_limited")
		return
	}
	var req synthesizeAPIRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	creds := tts.Credentials{
		AccessKeyID:     strings.TrimSpace(r.Header.Get("X-Access-Key-Id")),
		SecretAccessKey: strings.TrimSpace(r.Header.Get("X-Secret-Access-Key")),
		Region:          strings.TrimSpace(r.Header.Get("X-Region")),
	}
	audio, err := s.app.SynthesizeDirect(r.Context(), req.Text, req.VoiceID, creds)
	if err != nil {
		s.audit(r, "tts.synthesize_api", "fail", "reason", err.Error())
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"audio": hex.EncodeToString(audio),
	})
}

func (s *Server) handleSynthesizeBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.synthesisLimiter, "too many synthesis requests") {
		s.audit(r, "tts.synthesize_book", "rate_limited", "username", user.Username)
		return
	}
	bookPath, ok := requirePathParam(w, r)
	if !ok {
		return
	}
	job, err := s.app.EnqueueBookSynthesis(r.Context(), user, bookPath)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.audit(r, "tts.synthesize_book", "success", "username", user.Username, "job_id", job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleSynthesisJob(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/synthesize_book/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.app.SynthesisJob(r.Context(), user, jobID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	recordings, err := s.app.Recordings(user)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": recordings,
		"count": len(recordings),
	})
}

func (s *Server) handleRecordingAudio(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/recordings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	if r.URL.Query().Get("presign") != "" {
		url, err := s.app.RecordingURL(r.Context(), user, id)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}
	_, file, err := s.app.OpenRecording(user, id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	defer file.Close()
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, file)
}
