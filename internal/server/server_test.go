package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"readaloud/internal/app"
	"readaloud/pkg/domain"
	"readaloud/pkg/pdfdoc"
	"readaloud/pkg/storage"
	"readaloud/pkg/store"
	"readaloud/pkg/tts"
)

type fakeEngine struct {
	audio []byte
	calls int
}

func (f *fakeEngine) Synthesize(_ context.Context, _ string, _ domain.TTSKeys) ([]byte, error) {
	f.calls++
	return f.audio, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	media, err := storage.NewMediaStore(t.TempDir())
	if err != nil {
		t.Fatalf("media store: %v", err)
	}
	a, err := app.New(app.Config{
		SecretKey:   "test-secret",
		Store:       store.NewMemoryStore(),
		Media:       media,
		LocalEngine: &fakeEngine{audio: []byte("RIFFaudio")},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	s, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func samplePDF(t *testing.T) []byte {
	t.Helper()
	content := "BT /F1 12 Tf 72 720 Td (hello reader) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Title (Fixture) /Author (Fixture Author) >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)
	return buf.Bytes()
}

func registerUser(t *testing.T, ts *httptest.Server, username string) {
	t.Helper()
	body := fmt.Sprintf(`{"fullname":"Test Person","email":"%s@example.com","username":"%s","password":"password123"}`, username, username)
	resp, err := http.Post(ts.URL+"/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("register %s: status %d body %s", username, resp.StatusCode, raw)
	}
}

func loginToken(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := http.PostForm(ts.URL+"/token", form)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("token: status %d body %s", resp.StatusCode, raw)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if payload.TokenType != "bearer" || payload.AccessToken == "" {
		t.Fatalf("unexpected token payload: %+v", payload)
	}
	return payload.AccessToken
}

func doAuth(t *testing.T, ts *httptest.Server, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func uploadPDF(t *testing.T, ts *httptest.Server, path, token, filename string, extra map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf_file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(samplePDF(t)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return doAuth(t, ts, http.MethodPost, path, token, &buf, mw.FormDataContentType())
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestRegisterAndToken(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")

	// duplicate username
	body := `{"email":"other@example.com","username":"alice","password":"password123"}`
	resp, err := http.Post(ts.URL+"/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d, want 400", resp.StatusCode)
	}

	token := loginToken(t, ts, "alice", "password123")
	if token == "" {
		t.Fatal("empty token")
	}

	form := url.Values{"username": {"alice"}, "password": {"wrongpass"}}
	resp, err = http.PostForm(ts.URL+"/token", form)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)
	cases := []string{
		`{"email":"not-an-email","username":"alice","password":"password123"}`,
		`{"email":"a@example.com","username":"al","password":"password123"}`,
		`{"email":"a@example.com","username":"alice","password":"short"}`,
		`not json`,
	}
	for _, body := range cases {
		resp, err := http.Post(ts.URL+"/register", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("register request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	for _, token := range []string{"", "garbage"} {
		resp := doAuth(t, ts, http.MethodGet, "/books", token, nil, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want 401", token, resp.StatusCode)
		}
	}
}

func TestAdminUsers(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice") // first user is admin
	registerUser(t, ts, "bob")

	adminToken := loginToken(t, ts, "alice", "password123")
	resp := doAuth(t, ts, http.MethodGet, "/admin/users", adminToken, nil, "")
	var listing struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &listing)
	if resp.StatusCode != http.StatusOK || listing.Count != 2 {
		t.Fatalf("admin listing: status %d count %d", resp.StatusCode, listing.Count)
	}

	userToken := loginToken(t, ts, "bob", "password123")
	resp = doAuth(t, ts, http.MethodGet, "/admin/users", userToken, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")
	token := loginToken(t, ts, "alice", "password123")

	resp := doAuth(t, ts, http.MethodPost, "/logout", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", resp.StatusCode)
	}

	resp = doAuth(t, ts, http.MethodGet, "/profile/me", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("profile after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestBookLifecycle(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")
	token := loginToken(t, ts, "alice", "password123")

	resp := uploadPDF(t, ts, "/add_book", token, "novel.pdf", nil)
	var book domain.Book
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("add_book status = %d body %s", resp.StatusCode, raw)
	}
	decodeBody(t, resp, &book)
	if book.Path != "alice_novel.pdf" || book.Metadata.Title != "Fixture" {
		t.Fatalf("unexpected book: %+v", book)
	}

	// duplicate upload
	resp = uploadPDF(t, ts, "/add_book", token, "novel.pdf", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate add_book status = %d, want 400", resp.StatusCode)
	}

	resp = doAuth(t, ts, http.MethodGet, "/books", token, nil, "")
	var listing struct {
		Count int           `json:"count"`
		Items []domain.Book `json:"items"`
	}
	decodeBody(t, resp, &listing)
	if listing.Count != 1 || listing.Items[0].Path != book.Path {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	resp = doAuth(t, ts, http.MethodGet, "/get_book?path="+book.Path, token, nil, "")
	var page struct {
		Text string `json:"text"`
		Page int    `json:"page"`
	}
	decodeBody(t, resp, &page)
	if !strings.Contains(page.Text, "hello reader") || page.Page != 0 {
		t.Fatalf("unexpected page: %+v", page)
	}

	resp = doAuth(t, ts, http.MethodGet, "/get_pages_num?path="+book.Path, token, nil, "")
	var pages struct {
		PagesNum int `json:"pages_num"`
	}
	decodeBody(t, resp, &pages)
	if pages.PagesNum != 1 {
		t.Fatalf("pages_num = %d, want 1", pages.PagesNum)
	}

	resp = doAuth(t, ts, http.MethodGet, "/flip?path="+book.Path+"&page_num=0", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("flip status = %d, want 200", resp.StatusCode)
	}
	resp = doAuth(t, ts, http.MethodGet, "/flip?path="+book.Path+"&page_num=5", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("flip out of range status = %d, want 400", resp.StatusCode)
	}
	resp = doAuth(t, ts, http.MethodGet, "/flip?path="+book.Path+"&page_num=abc", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("flip non-integer status = %d, want 400", resp.StatusCode)
	}
	resp = doAuth(t, ts, http.MethodGet, "/flip?page_num=0", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("flip missing path status = %d, want 400", resp.StatusCode)
	}

	resp = doAuth(t, ts, http.MethodDelete, "/delete_book?path="+book.Path, token, nil, "")
	var deleted struct {
		Deleted  string   `json:"deleted"`
		Warnings []string `json:"warnings"`
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("delete status = %d body %s", resp.StatusCode, raw)
	}
	decodeBody(t, resp, &deleted)
	if deleted.Deleted != book.Path || len(deleted.Warnings) != 0 {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}

	resp = doAuth(t, ts, http.MethodDelete, "/delete_book?path="+book.Path, token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestOwnerIsolation(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")
	registerUser(t, ts, "bob")
	aliceToken := loginToken(t, ts, "alice", "password123")
	bobToken := loginToken(t, ts, "bob", "password123")

	resp := uploadPDF(t, ts, "/add_book", aliceToken, "novel.pdf", nil)
	var book domain.Book
	decodeBody(t, resp, &book)

	for _, path := range []string{
		"/get_book?path=" + book.Path,
		"/get_pages_num?path=" + book.Path,
		"/tts_model?book_path=" + book.Path,
	} {
		resp := doAuth(t, ts, http.MethodGet, path, bobToken, nil, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s as bob: status = %d, want 404", path, resp.StatusCode)
		}
	}

	resp = doAuth(t, ts, http.MethodGet, "/books", bobToken, nil, "")
	var listing struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &listing)
	if listing.Count != 0 {
		t.Fatalf("bob sees %d books, want 0", listing.Count)
	}
}

func TestChunkText(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/chunk_text", "application/json", strings.NewReader(`{"text":"aaaa","chunk_size":2}`))
	if err != nil {
		t.Fatalf("chunk_text: %v", err)
	}
	var payload struct {
		Chunks []string `json:"chunks"`
		Count  int      `json:"count"`
	}
	decodeBody(t, resp, &payload)
	if payload.Count != 2 || payload.Chunks[0] != "aa" || payload.Chunks[1] != "aa" {
		t.Fatalf("unexpected chunks: %+v", payload)
	}

	resp, err = http.Post(ts.URL+"/chunk_text", "application/json", strings.NewReader(`{"chunk_size":2}`))
	if err != nil {
		t.Fatalf("chunk_text: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing text status = %d, want 400", resp.StatusCode)
	}
}

func TestExtractText(t *testing.T) {
	ts := newTestServer(t)
	resp := uploadPDF(t, ts, "/text", "", "doc.pdf", nil)
	var payload struct {
		Text string `json:"text"`
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("text status = %d body %s", resp.StatusCode, raw)
	}
	decodeBody(t, resp, &payload)
	if !strings.Contains(payload.Text, "hello reader") {
		t.Fatalf("unexpected text: %q", payload.Text)
	}
}

func TestTTSModelRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")
	token := loginToken(t, ts, "alice", "password123")
	resp := uploadPDF(t, ts, "/add_book", token, "novel.pdf", nil)
	var book domain.Book
	decodeBody(t, resp, &book)

	resp = doAuth(t, ts, http.MethodGet, "/tts_model?book_path="+book.Path, token, nil, "")
	var model domain.TTSModel
	decodeBody(t, resp, &model)
	if model.ModelName != domain.DefaultModelName || model.Keys.Voice != "Joanna" {
		t.Fatalf("unexpected default model: %+v", model)
	}

	update := `{"modelName":"narrator","modelKeys":{"voice":"Matthew","engine":"local"}}`
	resp = doAuth(t, ts, http.MethodPut, "/tts_model?book_path="+book.Path, token, strings.NewReader(update), "application/json")
	decodeBody(t, resp, &model)
	if model.ModelName != "narrator" || model.Keys.Engine != domain.EngineLocal {
		t.Fatalf("unexpected updated model: %+v", model)
	}

	bad := `{"modelKeys":{"engine":"steam"}}`
	resp = doAuth(t, ts, http.MethodPut, "/tts_model?book_path="+book.Path, token, strings.NewReader(bad), "application/json")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid engine status = %d, want 400", resp.StatusCode)
	}
}

func TestSynthesizeUpload(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")
	token := loginToken(t, ts, "alice", "password123")

	resp := uploadPDF(t, ts, "/synthesize", token, "doc.pdf", map[string]string{"voice": "Matthew"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("synthesize status = %d body %s", resp.StatusCode, raw)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("content type = %q, want audio/wav", ct)
	}
	audio, _ := io.ReadAll(resp.Body)
	if string(audio) != "RIFFaudio" {
		t.Fatalf("unexpected audio body: %q", audio)
	}
}

func TestSynthesizeAPIWithoutCloudEngine(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/synthesize_api", "application/json", strings.NewReader(`{"text":"hello","voice_id":"Joanna"}`))
	if err != nil {
		t.Fatalf("synthesize_api: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSynthesizeBookQueueDisabled(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")
	token := loginToken(t, ts, "alice", "password123")
	resp := uploadPDF(t, ts, "/add_book", token, "novel.pdf", nil)
	var book domain.Book
	decodeBody(t, resp, &book)

	resp = doAuth(t, ts, http.MethodPost, "/synthesize_book?path="+book.Path, token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRecordings(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")
	token := loginToken(t, ts, "alice", "password123")

	resp := doAuth(t, ts, http.MethodGet, "/recordings", token, nil, "")
	var listing struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &listing)
	if resp.StatusCode != http.StatusOK || listing.Count != 0 {
		t.Fatalf("recordings: status %d count %d", resp.StatusCode, listing.Count)
	}

	resp = doAuth(t, ts, http.MethodGet, "/recordings/nope", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing recording status = %d, want 404", resp.StatusCode)
	}

	resp = doAuth(t, ts, http.MethodGet, "/recordings/nope?presign=1", token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("presign without archive status = %d, want 503", resp.StatusCode)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{app.ErrInvalidCredentials, http.StatusUnauthorized},
		{app.ErrBookNotFound, http.StatusNotFound},
		{app.ErrRecordingNotFound, http.StatusNotFound},
		{app.ErrBookExists, http.StatusBadRequest},
		{pdfdoc.ErrInvalidPage, http.StatusBadRequest},
		{pdfdoc.ErrNoText, http.StatusBadRequest},
		{fmt.Errorf("extract text: %w", pdfdoc.ErrNoText), http.StatusBadRequest},
		{app.ErrNothingToSpeak, http.StatusBadRequest},
		{app.ErrQueueDisabled, http.StatusServiceUnavailable},
		{&tts.APIError{Status: http.StatusForbidden, Message: "denied"}, http.StatusForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

// textlessPDF is structurally valid but has no text operators, like a
// scanned document.
func textlessPDF(t *testing.T) []byte {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)
	return buf.Bytes()
}

func TestExtractTextFromTextlessPDF(t *testing.T) {
	ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf_file", "scan.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(textlessPDF(t)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp := doAuth(t, ts, http.MethodPost, "/text", "", &buf, mw.FormDataContentType())
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("textless pdf status = %d, want 400", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/register")
	if err != nil {
		t.Fatalf("get register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
