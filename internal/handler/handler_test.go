package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leca/photophriend/internal/database"
	"github.com/leca/photophriend/internal/handler"
	"github.com/leca/photophriend/internal/keywords"
	"github.com/leca/photophriend/internal/lifecycle"
	"github.com/leca/photophriend/internal/router"
	"github.com/leca/photophriend/internal/storage"
)

const testToken = "test-token"

type testEnv struct {
	ts    *httptest.Server
	db    *database.SQLiteDB
	store *storage.FileSystem
	mgr   *lifecycle.Manager
}

type option func(h *handler.Handler, token *string)

func withTagger(t keywords.Tagger) option {
	return func(h *handler.Handler, _ *string) {
		h.Keywords = keywords.NewGenerator(h.Log, h.DB, h.Store, t)
	}
}

func withMaxUpload(n int64) option {
	return func(h *handler.Handler, _ *string) { h.MaxUploadBytes = n }
}

// withStore wraps the storage the handler writes through.
func withStore(wrap func(storage.Storage) storage.Storage) option {
	return func(h *handler.Handler, _ *string) { h.Store = wrap(h.Store) }
}

func withAuth() option {
	return func(_ *handler.Handler, token *string) { *token = testToken }
}

// testServer creates a test HTTP server backed by in-memory SQLite
// and a temporary filesystem storage directory.
func testServer(t *testing.T, opts ...option) *testEnv {
	t.Helper()

	db, err := database.NewSQLiteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zaptest.NewLogger(t)
	store := storage.NewFileSystem(t.TempDir())
	mgr := lifecycle.NewManager(log, db, store, lifecycle.Config{Retention: 30 * 24 * time.Hour, PurgeBatchSize: 10})

	h := &handler.Handler{
		Log:            log,
		DB:             db,
		Store:          store,
		Lifecycle:      mgr,
		MaxUploadBytes: 20 << 20,
	}
	token := ""
	for _, opt := range opts {
		opt(h, &token)
	}

	srv := router.New(log, h, token)
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, db: db, store: store, mgr: mgr}
}

// envelope is api.Response with the result left undecoded.
type envelope struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// do sends body as JSON (nil sends no body) and returns the response.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeResponse decodes the envelope and, when target is non-nil, its result.
func decodeResponse(t *testing.T, resp *http.Response, target interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if target != nil {
		require.NoError(t, json.Unmarshal(env.Result, target))
	}
	return env
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// multipartFileBody builds a multipart request body with a file field and
// optional extra fields.
func multipartFileBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if content != nil {
		fw, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, fileID string, content []byte) *http.Response {
	t.Helper()
	fields := map[string]string{}
	if fileID != "" {
		fields["fileId"] = fileID
	}
	body, ct := multipartFileBody(t, "holiday.jpg", content, fields)
	resp, err := http.Post(e.ts.URL+"/photos", ct, body)
	require.NoError(t, err)
	return resp
}

// mustUpload uploads a small JPEG under id.
func (e *testEnv) mustUpload(t *testing.T, id string) {
	t.Helper()
	resp := e.upload(t, id, testJPEG(t, 80, 60))
	env := decodeResponse(t, resp, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%+v", env.Errors)
}

// stubTagger tags every photo with its own id.
type stubTagger struct{}

func (stubTagger) Tag(_ context.Context, images []keywords.Image) (map[string]keywords.Set, error) {
	out := make(map[string]keywords.Set, len(images))
	for _, img := range images {
		out[img.PhotoID] = keywords.Set{Wide: []string{"outdoors"}, Specific: []string{img.PhotoID}}
	}
	return out, nil
}
