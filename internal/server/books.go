package server

import (
	"io"
	"net/http"
	"strconv"

	"readaloud/pkg/domain"
)

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListBooks(user)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	file, header, ok := s.uploadedPDF(w, r)
	if !ok {
		return
	}
	defer file.Close()

	book, err := s.app.AddBook(user, header.Filename, file)
	if err != nil {
		s.audit(r, "book.add", "fail", "username", user.Username, "reason", err.Error())
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.audit(r, "book.add", "success", "username", user.Username, "path", book.Path)
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	bookPath, ok := requirePathParam(w, r)
	if !ok {
		return
	}
	text, err := s.app.OpenBook(user, bookPath)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path": bookPath,
		"page": 0,
		"text": text,
	})
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	bookPath, ok := requirePathParam(w, r)
	if !ok {
		return
	}
	pageRaw := r.URL.Query().Get("page_num")
	page, err := strconv.Atoi(pageRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page_num must be an integer")
		return
	}
	text, err := s.app.FlipPage(user, bookPath, page)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path": bookPath,
		"page": page,
		"text": text,
	})
}

func (s *Server) handlePagesNum(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	bookPath, ok := requirePathParam(w, r)
	if !ok {
		return
	}
	count, err := s.app.PageCount(user, bookPath)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":      bookPath,
		"pages_num": count,
	})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	bookPath := r.URL.Query().Get("book_path")
	if bookPath == "" {
		writeError(w, http.StatusBadRequest, "book_path query parameter is required")
		return
	}
	file, err := s.app.Thumbnail(user, bookPath)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	defer file.Close()
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, file)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	bookPath, ok := requirePathParam(w, r)
	if !ok {
		return
	}
	warnings, err := s.app.DeleteBook(r.Context(), user, bookPath)
	if err != nil {
		s.audit(r, "book.delete", "fail", "username", user.Username, "path", bookPath)
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.audit(r, "book.delete", "success", "username", user.Username, "path", bookPath)
	resp := map[string]any{"deleted": bookPath}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	writeJSON(w, http.StatusOK, resp)
}

func requirePathParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	bookPath := r.URL.Query().Get("path")
	if bookPath == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return "", false
	}
	return bookPath, true
}
