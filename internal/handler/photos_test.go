package handler_test

import (
	"archive/zip"
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/photophriend/internal/model"
)

func TestHealth(t *testing.T) {
	env := testServer(t, withAuth())
	resp := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthRequired(t *testing.T) {
	env := testServer(t, withAuth())

	resp := env.do(t, http.MethodGet, "/photos", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/photos", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadPhoto(t *testing.T) {
	env := testServer(t)

	resp := env.upload(t, "abc123", testJPEG(t, 80, 60))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rec model.PhotoRecord
	decodeResponse(t, resp, &rec)

	assert.Equal(t, "abc123", rec.Photo.ID)
	assert.Equal(t, "holiday.jpg", rec.Photo.Filename)
	assert.Regexp(t, `^photos/abc123/abc123_[0-9a-f]{12}\.jpg$`, rec.Photo.OriginalPath)
	assert.Equal(t, "image/jpeg", rec.Photo.MimeType)
	assert.Equal(t, 80, rec.Photo.Width)
	assert.Equal(t, 60, rec.Photo.Height)
	assert.Empty(t, rec.Keywords)
	require.Len(t, rec.Versions, 3)

	thumb := rec.Version(model.VersionThumb)
	require.NotNil(t, thumb)
	assert.Regexp(t, `^photos/thumb/abc123_[0-9a-f]{12}_thumb\.jpg$`, thumb.Path)
	assert.Equal(t, "abc123_thumb.jpg", thumb.Name)
	assert.Equal(t, 10, thumb.Width)

	for _, p := range rec.Paths() {
		ok, err := env.store.Exists(p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}

	t.Run("get", func(t *testing.T) {
		var got model.PhotoRecord
		resp := env.do(t, http.MethodGet, "/photos/abc123", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeResponse(t, resp, &got)
		assert.Equal(t, rec.Versions, got.Versions)
	})

	t.Run("list", func(t *testing.T) {
		var list []model.PhotoRecord
		resp := env.do(t, http.MethodGet, "/photos", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeResponse(t, resp, &list)
		require.Len(t, list, 1)
	})

	t.Run("duplicate id", func(t *testing.T) {
		resp := env.upload(t, "abc123", testJPEG(t, 8, 8))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("id of a trashed photo", func(t *testing.T) {
		env.mustUpload(t, "gone")
		resp := env.do(t, http.MethodPost, "/trash", map[string][]string{"photoIds": {"gone"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = env.upload(t, "gone", testJPEG(t, 8, 8))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestUploadGeneratesID(t *testing.T) {
	env := testServer(t)
	resp := env.upload(t, "", testJPEG(t, 16, 16))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rec model.PhotoRecord
	decodeResponse(t, resp, &rec)
	assert.Len(t, rec.Photo.ID, 36)
}

func TestUploadRejects(t *testing.T) {
	env := testServer(t, withMaxUpload(4<<10))

	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartFileBody(t, "", nil, map[string]string{"fileId": "x"})
		resp, err := http.Post(env.ts.URL+"/photos", ct, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("not an image", func(t *testing.T) {
		resp := env.upload(t, "text", []byte("just some text"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("bad id", func(t *testing.T) {
		resp := env.upload(t, "../escape", testJPEG(t, 8, 8))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("too large", func(t *testing.T) {
		resp := env.upload(t, "big", bytes.Repeat([]byte{0xFF}, 8<<10))
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		resp.Body.Close()
	})

	resp := env.do(t, http.MethodGet, "/photos", nil)
	var list []model.PhotoRecord
	decodeResponse(t, resp, &list)
	assert.Empty(t, list)
}

func TestServeVersion(t *testing.T) {
	env := testServer(t)
	original := testJPEG(t, 80, 60)
	resp := env.upload(t, "p1", original)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/photos/p1/original", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, original, data)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "inline")

	resp = env.do(t, http.MethodGet, "/photos/p1/thumb?download=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="p1_thumb.jpg"`)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/photos/p1/huge", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/photos/missing/thumb", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateMetadataAndKeywords(t *testing.T) {
	env := testServer(t)
	env.mustUpload(t, "p1")
	env.mustUpload(t, "p2")

	resp := env.do(t, http.MethodPut, "/photos/p1/metadata", map[string]interface{}{
		"description": "Sunrise",
		"make":        "Fujifilm",
		"rating":      4,
		"keywords":    []string{" lake ", "mountain", "lake"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec model.PhotoRecord
	decodeResponse(t, resp, &rec)
	require.NotNil(t, rec.Photo.Description)
	assert.Equal(t, "Sunrise", *rec.Photo.Description)
	require.NotNil(t, rec.CommonExif)
	assert.Equal(t, "Fujifilm", rec.CommonExif.CameraMake)
	assert.Equal(t, 4, *rec.CommonExif.Rating)
	assert.Equal(t, []string{"lake", "mountain"}, rec.Keywords)

	resp = env.do(t, http.MethodPut, "/photos/p1/metadata", map[string]interface{}{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPut, "/photos/missing/metadata", map[string]interface{}{"rating": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPut, "/photos/p2/keywords", map[string][]string{"keywords": {"lake"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &rec)
	assert.Equal(t, []string{"lake"}, rec.Keywords)

	resp = env.do(t, http.MethodPut, "/photos/p2/keywords", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var kws []model.Keyword
	resp = env.do(t, http.MethodGet, "/keywords", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &kws)
	require.Len(t, kws, 2)
	assert.Equal(t, "lake", kws[0].Keyword)
	assert.Equal(t, 2, kws[0].Count)
	assert.Equal(t, "mountain", kws[1].Keyword)
	assert.Equal(t, 1, kws[1].Count)
}

func TestDownloadZip(t *testing.T) {
	env := testServer(t)
	env.mustUpload(t, "p1")
	env.mustUpload(t, "p2")

	resp := env.do(t, http.MethodPost, "/photos/download", map[string][]string{"photoIds": {"p1", "p2"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"original/p1.jpg", "optimized/p1_optimized.jpg",
		"original/p2.jpg", "optimized/p2_optimized.jpg",
	}, names)

	resp = env.do(t, http.MethodPost, "/photos/download", map[string][]string{"photoIds": {"p1", "missing"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/photos/download", map[string][]string{"photoIds": {}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGenerateKeywords(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := testServer(t)
		resp := env.do(t, http.MethodPost, "/photos/keywords", map[string][]string{"photoIds": {"p1"}})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		resp.Body.Close()
	})

	env := testServer(t, withTagger(stubTagger{}))
	env.mustUpload(t, "p1")

	resp := env.do(t, http.MethodPost, "/photos/keywords", map[string][]string{"photoIds": {"p1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Photos []struct {
			ID       string   `json:"id"`
			Keywords []string `json:"keywords"`
		} `json:"photos"`
	}
	decodeResponse(t, resp, &result)
	require.Len(t, result.Photos, 1)
	assert.Equal(t, []string{"outdoors", "p1"}, result.Photos[0].Keywords)

	var rec model.PhotoRecord
	decodeResponse(t, env.do(t, http.MethodGet, "/photos/p1", nil), &rec)
	assert.Equal(t, []string{"outdoors", "p1"}, rec.Keywords)

	resp = env.do(t, http.MethodPost, "/photos/keywords", map[string][]string{"photoIds": {"missing"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
