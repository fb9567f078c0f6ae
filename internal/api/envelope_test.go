package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/photophriend/internal/model"
)

func TestSuccessResponse(t *testing.T) {
	result := map[string]string{"id": "abc-123"}
	resp := SuccessResponse(result)

	assert.True(t, resp.Success)
	assert.Equal(t, result, resp.Result)
	assert.Empty(t, resp.Errors)
	assert.Empty(t, resp.Messages)
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(400, "bad request")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Result)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 400, resp.Errors[0].Code)
	assert.Equal(t, "bad request", resp.Errors[0].Message)
	assert.Empty(t, resp.Messages)
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, map[string]int{"deletedCount": 2})

	res := w.Result()
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var raw map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&raw))
	assert.Equal(t, true, raw["success"])
	assert.Equal(t, map[string]interface{}{"deletedCount": float64(2)}, raw["result"])
	assert.Equal(t, []interface{}{}, raw["errors"])
	assert.Equal(t, []interface{}{}, raw["messages"])
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		PhotoIDs []string `json:"photoIds"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"photoIds":["a","b"]}`))
	require.NoError(t, DecodeJSON(r, &body))
	assert.Equal(t, []string{"a", "b"}, body.PhotoIDs)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{\"photoIds\":[\"c\"]}\n"))
	require.NoError(t, DecodeJSON(r, &body), "trailing whitespace is fine")

	for name, in := range map[string]string{
		"empty":         "",
		"malformed":     `{"photoIds":`,
		"unknown field": `{"photoIDs":["a"]}`,
		"wrong type":    `{"photoIds":"a"}`,
		"trailing junk": `{"photoIds":["a"]} junk`,
		"second value":  `{"photoIds":["a"]}{"photoIds":["b"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(in))
			assert.True(t, model.ErrValidation.Has(DecodeJSON(r, &body)))
		})
	}
}
